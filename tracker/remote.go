package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultPort      = "8765"
	handshakeTimeout = 2 * time.Second
	writeTimeout     = time.Second
)

// message is the JSON envelope in both directions of the host link.
type message struct {
	Op      string  `json:"op,omitempty"`
	Arg     string  `json:"arg,omitempty"`
	Type    string  `json:"type,omitempty"`
	Time    uint64  `json:"time,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Pupil   float64 `json:"pupil,omitempty"`
	// Missing marks a sample without gaze (blink, lost eye).
	Missing bool    `json:"missing,omitempty"`
	State   bool    `json:"state,omitempty"`
	Visible bool    `json:"visible,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Remote is a websocket link to the tracker host bridge. A reader goroutine
// keeps only the newest sample; everything else runs on the caller.
type Remote struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	newest    Sample
	hasSample bool
	recording bool
	lost      bool
	closed    bool
	target    struct {
		x, y    float64
		visible bool
	}
	setupDone bool

	done chan struct{}
}

// LinkURL turns a host, host:port or ws:// address into the link URL.
func LinkURL(address string) (string, error) {
	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}
	host := address
	if _, _, err := net.SplitHostPort(address); err != nil {
		host = net.JoinHostPort(address, DefaultPort)
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/link"}
	return u.String(), nil
}

// Dial opens the link. The caller owns the returned Remote and must Close it.
func Dial(ctx context.Context, address string, logger *slog.Logger) (*Remote, error) {
	link, err := LinkURL(address)
	if err != nil {
		return nil, fmt.Errorf("tracker address %q: %w", address, err)
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, link, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", link, err)
	}

	r := &Remote{
		conn:   conn,
		logger: logger.With("tracker", link),
		done:   make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *Remote) readLoop() {
	defer close(r.done)
	for {
		var m message
		if err := r.conn.ReadJSON(&m); err != nil {
			r.mu.Lock()
			if !r.closed {
				r.lost = true
				r.logger.Error("tracker link closed", "err", err)
			}
			r.recording = false
			r.mu.Unlock()
			return
		}
		r.handle(m)
	}
}

func (r *Remote) handle(m message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch m.Type {
	case "sample":
		if !r.recording {
			return
		}
		r.newest = Sample{Time: m.Time, X: m.X, Y: m.Y, Pupil: m.Pupil}
		if m.Missing {
			r.newest.X, r.newest.Y = math.NaN(), math.NaN()
		}
		r.hasSample = true
	case "recording":
		r.recording = m.State
	case "cal_target":
		r.target.x, r.target.y, r.target.visible = m.X, m.Y, m.Visible
	case "setup_done":
		r.setupDone = true
	case "error":
		r.logger.Warn("tracker host error", "message", m.Message)
	}
}

func (r *Remote) send(m message) error {
	r.mu.Lock()
	lost, closed := r.lost, r.closed
	r.mu.Unlock()
	if lost || closed {
		return ErrConnectionLost
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := r.conn.WriteJSON(m); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

func (r *Remote) SendCommand(cmd string) error {
	return r.send(message{Op: "command", Arg: cmd})
}

func (r *Remote) StartRecording() error {
	// Samples may arrive before send returns.
	r.mu.Lock()
	r.recording = true
	r.hasSample = false
	r.mu.Unlock()
	if err := r.send(message{Op: "start_recording"}); err != nil {
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Remote) StopRecording() error {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
	return r.send(message{Op: "stop_recording"})
}

func (r *Remote) IsRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.lost || r.closed:
		return ErrConnectionLost
	case !r.recording:
		return ErrNotRecording
	}
	return nil
}

func (r *Remote) NewestSample() (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || !r.hasSample {
		return Sample{}, false
	}
	return r.newest, true
}

func (r *Remote) StartSetup() error {
	r.mu.Lock()
	r.setupDone = false
	r.target.visible = false
	r.mu.Unlock()
	return r.send(message{Op: "setup_start"})
}

func (r *Remote) SetupKey(k SetupKey) error {
	return r.send(message{Op: "setup_key", Arg: k.String()})
}

func (r *Remote) CalibrationTarget() (float64, float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target.x, r.target.y, r.target.visible
}

func (r *Remote) SetupDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setupDone
}

func (r *Remote) ExitSetup() error {
	r.mu.Lock()
	r.target.visible = false
	r.mu.Unlock()
	return r.send(message{Op: "setup_exit"})
}

func (r *Remote) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.lost && !r.closed
}

// Close stops recording if needed and shuts the link down.
func (r *Remote) Close() error {
	if r.IsRecording() == nil {
		r.StopRecording()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.writeMu.Lock()
	r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	r.writeMu.Unlock()

	err := r.conn.Close()
	<-r.done
	return err
}
