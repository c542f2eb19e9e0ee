package tracker

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ now uint64 }

func (c *manualClock) Ticks() uint64 { return c.now }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestReadSamples(t *testing.T) {
	data := `1, nan, nan, nan
100, 960.5, 540.0, 812.0
100, 961.0, 541.0, 812.0
102, 900, 500, 800
2, nan, nan, nan
104, 1, 2, 3
`
	samples, err := ReadSamples(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, Sample{Time: 100, X: 960.5, Y: 540, Pupil: 812}, samples[0])
	assert.Equal(t, uint64(102), samples[1].Time)
	assert.Equal(t, uint64(104), samples[2].Time)
}

func TestReadSamplesRejectsGarbage(t *testing.T) {
	_, err := ReadSamples(strings.NewReader("abc, 1, 2, 3\n"))
	assert.Error(t, err)
}

func TestReplayFollowsClock(t *testing.T) {
	clock := &manualClock{now: 5000}
	r := NewReplay([]Sample{
		{Time: 10, X: 1}, {Time: 12, X: 2}, {Time: 20, X: 3},
	}, clock)

	_, ok := r.NewestSample()
	assert.False(t, ok, "no samples before recording")
	assert.ErrorIs(t, r.IsRecording(), ErrNotRecording)

	require.NoError(t, r.StartRecording())
	require.NoError(t, r.IsRecording())

	s, ok := r.NewestSample()
	require.True(t, ok)
	assert.Equal(t, 1.0, s.X)

	clock.now += 3
	s, _ = r.NewestSample()
	assert.Equal(t, 2.0, s.X)

	clock.now += 100
	s, _ = r.NewestSample()
	assert.Equal(t, 3.0, s.X)

	// Playback restarts with every recording window.
	require.NoError(t, r.StopRecording())
	require.NoError(t, r.StartRecording())
	s, _ = r.NewestSample()
	assert.Equal(t, 1.0, s.X)

	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.IsRecording(), ErrConnectionLost)
	assert.ErrorIs(t, r.StartRecording(), ErrConnectionLost)
}

func TestLoopbackQuantisesToSampleRate(t *testing.T) {
	clock := &manualClock{now: 1001}
	px, py := 10.0, 20.0
	l := NewLoopback(func() (float64, float64) { return px, py }, clock)
	require.NoError(t, l.SendCommand("sample_rate 250"))

	_, ok := l.NewestSample()
	assert.False(t, ok)

	require.NoError(t, l.StartRecording())
	s1, ok := l.NewestSample()
	require.True(t, ok)
	assert.Equal(t, uint64(1000), s1.Time)
	assert.Equal(t, 10.0, s1.X)
	assert.Equal(t, 20.0, s1.Y)

	clock.now = 1003
	s2, _ := l.NewestSample()
	assert.Equal(t, s1.Time, s2.Time, "same sample period")

	clock.now = 1004
	s3, _ := l.NewestSample()
	assert.Equal(t, uint64(1004), s3.Time)
}

func TestLoopbackCommands(t *testing.T) {
	l := NewLoopback(nil, &manualClock{})
	assert.Error(t, l.SendCommand("sample_rate fast"))
	assert.Error(t, l.SendCommand("calibration_type = HV7"))
	assert.NoError(t, l.SendCommand("calibration_type = H3"))
	assert.NoError(t, l.SendCommand("screen_pixel_coords = 0 0 799 599"))
	assert.NoError(t, l.SendCommand("clear_screen 0"))
}

func TestLoopbackCalibrationWalk(t *testing.T) {
	l := NewLoopback(nil, &manualClock{})
	require.NoError(t, Configure(l, Options{
		CalibrationType: "H3",
		ScreenWidth:     800,
		ScreenHeight:    600,
	}))

	assert.Error(t, l.SetupKey(SetupCalibrate), "outside setup")

	require.NoError(t, l.StartSetup())
	_, _, visible := l.CalibrationTarget()
	assert.False(t, visible)

	require.NoError(t, l.SetupKey(SetupCalibrate))
	x, y, visible := l.CalibrationTarget()
	require.True(t, visible)
	assert.Equal(t, 400.0, x)
	assert.Equal(t, 300.0, y)

	require.NoError(t, l.SetupKey(SetupAccept))
	x, _, _ = l.CalibrationTarget()
	assert.Equal(t, 80.0, x)

	require.NoError(t, l.SetupKey(SetupAccept))
	assert.False(t, l.SetupDone())
	require.NoError(t, l.SetupKey(SetupAccept))
	assert.True(t, l.SetupDone())
	_, _, visible = l.CalibrationTarget()
	assert.False(t, visible)

	require.NoError(t, l.ExitSetup())
}

func TestSampleValid(t *testing.T) {
	assert.True(t, Sample{X: 1, Y: 2}.Valid())
	assert.False(t, Sample{X: math.NaN(), Y: 2}.Valid())
}

func TestLinkURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"100.1.1.1", "ws://100.1.1.1:8765/link"},
		{"100.1.1.1:9000", "ws://100.1.1.1:9000/link"},
		{"ws://host:1/x", "ws://host:1/x"},
	}
	for _, tt := range tests {
		got, err := LinkURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestOpenFallsBackToLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tr := Open(ctx, Options{Address: "127.0.0.1:1", SampleRate: 500}, nil, &manualClock{}, discard)
	defer tr.Close()
	_, ok := tr.(*Loopback)
	assert.True(t, ok)
}

func TestRemoteLink(t *testing.T) {
	ops := make(chan message, 16)
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var m message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			ops <- m
			switch m.Op {
			case "start_recording":
				conn.WriteJSON(message{Type: "sample", Time: 7, X: 3, Y: 4, Pupil: 900})
			case "setup_start":
				conn.WriteJSON(message{Type: "cal_target", X: 50, Y: 60, Visible: true})
			case "setup_key":
				conn.WriteJSON(message{Type: "setup_done"})
			case "command":
				if m.Arg == "blink" {
					conn.WriteJSON(message{Type: "sample", Time: 9, Pupil: 0, Missing: true})
				}
				if m.Arg == "drop" {
					<-release
					return
				}
			}
		}
	}))
	defer srv.Close()

	addr := "ws" + strings.TrimPrefix(srv.URL, "http")
	r, err := Dial(context.Background(), addr, discard)
	require.NoError(t, err)

	require.NoError(t, r.SendCommand("sample_rate 500"))
	assert.Equal(t, message{Op: "command", Arg: "sample_rate 500"}, <-ops)

	require.NoError(t, r.StartRecording())
	assert.Equal(t, "start_recording", (<-ops).Op)
	require.Eventually(t, func() bool {
		_, ok := r.NewestSample()
		return ok
	}, time.Second, 5*time.Millisecond)
	s, _ := r.NewestSample()
	assert.Equal(t, Sample{Time: 7, X: 3, Y: 4, Pupil: 900}, s)
	assert.NoError(t, r.IsRecording())

	require.NoError(t, r.SendCommand("blink"))
	<-ops
	require.Eventually(t, func() bool {
		s, _ := r.NewestSample()
		return s.Time == 9
	}, time.Second, 5*time.Millisecond)
	s, _ = r.NewestSample()
	assert.False(t, s.Valid(), "missing gaze arrives as NaN")

	require.NoError(t, r.StartSetup())
	<-ops
	require.Eventually(t, func() bool {
		_, _, visible := r.CalibrationTarget()
		return visible
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, r.SetupKey(SetupAccept))
	assert.Equal(t, message{Op: "setup_key", Arg: "accept"}, <-ops)
	require.Eventually(t, r.SetupDone, time.Second, 5*time.Millisecond)

	require.NoError(t, r.SendCommand("drop"))
	<-ops
	close(release)
	require.Eventually(t, func() bool {
		return !r.Connected()
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, r.IsRecording(), ErrConnectionLost)
	assert.ErrorIs(t, r.StartRecording(), ErrConnectionLost)
	r.Close()
}
