package task

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/YitingChang/eye-tracking/tracker"
)

// DataFile is the flat gaze log: a begin marker per trial followed by the
// trial's samples, one comma-separated record per line.
type DataFile struct {
	w      *bufio.Writer
	closer io.Closer

	last    uint64
	hasLast bool
}

// OpenDataFile opens path for appending, creating it if needed.
func OpenDataFile(path string) (*DataFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	d := NewDataFile(f)
	d.closer = f
	return d, nil
}

func NewDataFile(w io.Writer) *DataFile {
	return &DataFile{w: bufio.NewWriter(w)}
}

// BeginTrial writes the "<index>, nan, nan, nan" marker.
func (d *DataFile) BeginTrial(index int) error {
	d.hasLast = false
	_, err := fmt.Fprintf(d.w, "%d, nan, nan, nan\n", index)
	return err
}

// Sample appends s unless its timestamp does not advance past the previous
// sample of the trial. It reports whether a line was written.
func (d *DataFile) Sample(s tracker.Sample) (bool, error) {
	if d.hasLast && s.Time <= d.last {
		return false, nil
	}
	d.last, d.hasLast = s.Time, true

	buf := make([]byte, 0, 64)
	buf = strconv.AppendUint(buf, s.Time, 10)
	for _, v := range [...]float64{s.X, s.Y, s.Pupil} {
		buf = append(buf, ", "...)
		buf = strconv.AppendFloat(buf, v, 'f', -1, 64)
	}
	buf = append(buf, '\n')
	if _, err := d.w.Write(buf); err != nil {
		return false, err
	}
	return true, nil
}

func (d *DataFile) Flush() error {
	return d.w.Flush()
}

func (d *DataFile) Close() error {
	err := d.w.Flush()
	if d.closer != nil {
		if cerr := d.closer.Close(); err == nil {
			err = cerr
		}
		d.closer = nil
	}
	return err
}
