package device

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	DefaultMarkerBaud = 9600
	pingTimeout       = 500 * time.Millisecond
)

// Marker lines on the DLP-IO8-G box. Set and Unset take one or more of
// them concatenated.
const (
	LineImageA = "1"
	LineImageB = "2"
	LineReward = "3"
)

var errNoPong = errors.New("device did not respond to ping correctly")

// DLP drives a DLP-IO8-G TTL box. A nil DLP ignores every call.
type DLP struct {
	port   io.ReadWriteCloser
	logger *slog.Logger
}

// OpenDLP opens the box, checks it answers the ping and switches it to
// binary mode.
func OpenDLP(device string, baudrate int, logger *slog.Logger) (*DLP, error) {
	port, err := openPort(device, baudrate)
	if err != nil {
		return nil, fmt.Errorf("open marker port %s: %w", device, err)
	}
	if err := port.SetReadTimeout(pingTimeout); err != nil {
		port.Close()
		return nil, err
	}
	d, err := NewDLP(port, logger)
	if err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

func NewDLP(port io.ReadWriteCloser, logger *slog.Logger) (*DLP, error) {
	d := &DLP{port: port, logger: logger}
	if !d.Ping() {
		return nil, errNoPong
	}
	// Binary mode
	if _, err := port.Write([]byte{0x5C}); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DLP) Ping() bool {
	if _, err := d.port.Write([]byte{0x27}); err != nil {
		return false
	}
	buf := make([]byte, 1)
	n, err := d.port.Read(buf)
	return err == nil && n == 1 && buf[0] == 'Q'
}

// Set raises the given lines, e.g. "13".
func (d *DLP) Set(lines string) {
	if d == nil || d.port == nil {
		return
	}
	if _, err := d.port.Write([]byte(lines)); err != nil {
		d.logger.Warn("marker set failed", "lines", lines, "err", err)
	}
}

// Unset lowers the given lines.
func (d *DLP) Unset(lines string) {
	if d == nil || d.port == nil {
		return
	}
	cmd := []byte(lines)
	for i := range cmd {
		if cmd[i] >= '1' && cmd[i] <= '8' {
			cmd[i] = "QWERTYUI"[cmd[i]-'1']
		}
	}
	if _, err := d.port.Write(cmd); err != nil {
		d.logger.Warn("marker unset failed", "lines", lines, "err", err)
	}
}

// Pulse raises lines for width then lowers them.
func (d *DLP) Pulse(lines string, width time.Duration) {
	if d == nil {
		return
	}
	d.Set(lines)
	time.Sleep(width)
	d.Unset(lines)
}

func (d *DLP) Close() error {
	if d == nil || d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}
