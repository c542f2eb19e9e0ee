package task

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var ErrNoTrials = errors.New("trial block has no trials")

// Trial is one row of the trial block.
type Trial struct {
	Index  int
	ImageA string
	ImageB string
}

type Block struct {
	Path   string
	Trials []Trial
}

func LoadBlock(path string) (*Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := ParseBlock(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.Path = path
	return b, nil
}

// ParseBlock reads "index, imageA, imageB" rows. A first row whose index
// field is not an integer is taken as a header.
func ParseBlock(r io.Reader) (*Block, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var trials []Trial
	for i, record := range records {
		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: want 3 fields, got %d", i+1, len(record))
		}

		index, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid trial index: %v", i+1, err)
		}

		a, b := strings.TrimSpace(record[1]), strings.TrimSpace(record[2])
		if a == "" || b == "" {
			return nil, fmt.Errorf("line %d: empty image name", i+1)
		}
		trials = append(trials, Trial{Index: index, ImageA: a, ImageB: b})
	}

	if len(trials) == 0 {
		return nil, ErrNoTrials
	}
	return &Block{Trials: trials}, nil
}

// Images lists every distinct image the block references, in first-use order.
func (b *Block) Images() []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range b.Trials {
		for _, n := range [...]string{t.ImageA, t.ImageB} {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
