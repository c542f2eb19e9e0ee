// Package device drives the serial hardware around the task: the reward
// pump and the DLP-IO8-G TTL marker box.
package device

import (
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"
)

const (
	DefaultRewardDevice = "/dev/ttyACM0"
	DefaultRewardBaud   = 115200
	DefaultPulseMS      = 200
)

func openPort(device string, baudrate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(device, mode)
}

// Reward sends a pulse-width command to the reward controller. A nil or
// port-less Reward is a no-op.
type Reward struct {
	port    io.WriteCloser
	payload []byte
	logger  *slog.Logger
}

// OpenReward opens the reward controller. The payload is the pulse width in
// milliseconds followed by the newline the controller requires.
func OpenReward(device string, baudrate, pulseMS int, logger *slog.Logger) (*Reward, error) {
	port, err := openPort(device, baudrate)
	if err != nil {
		return nil, fmt.Errorf("open reward port %s: %w", device, err)
	}
	return NewReward(port, pulseMS, logger), nil
}

func NewReward(port io.WriteCloser, pulseMS int, logger *slog.Logger) *Reward {
	return &Reward{
		port:    port,
		payload: []byte(fmt.Sprintf("%d\n", pulseMS)),
		logger:  logger,
	}
}

// Fire writes the pulse command once. Failures are logged, never returned.
func (r *Reward) Fire() {
	if r == nil || r.port == nil {
		return
	}
	if _, err := r.port.Write(r.payload); err != nil {
		r.logger.Warn("reward write failed", "err", err)
	}
}

func (r *Reward) Close() error {
	if r == nil || r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	return err
}
