package twrfsk

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock moves on by one sample interval every time it is read, so
// each poll is due.
type stepClock struct {
	now  time.Duration
	step time.Duration
}

func (c *stepClock) Now() time.Duration {
	var t = c.now
	c.now += c.step

	return t
}

// toneInput is a square wave of the given period, in samples, read off
// the clock's last reading.
func toneInput(c *stepClock, period time.Duration) AnalogInput {
	return AnalogFunc(func() int {
		var t = c.now - c.step
		if (t/(100*time.Microsecond))%(period/(100*time.Microsecond)) < period/(200*time.Microsecond) {
			return 2548
		}

		return 1548
	})
}

func TestReceiver_PollDecodes(t *testing.T) {
	var clock = &stepClock{now: 5 * time.Second, step: 100 * time.Microsecond}
	var rec = new(BitRecorder)
	var d = newTestDemod(t, rec)

	var windows []Window

	var r = NewReceiver(d, toneInput(clock, 500*time.Microsecond), clock, log.New(&bytes.Buffer{}),
		WithWindowHook(func(w Window) { windows = append(windows, w) }))

	for range 8001 {
		r.poll()
	}

	require.Len(t, windows, 8)
	assert.Equal(t, []Bit{1, 1, 1, 1, 1, 1, 1, 1}, rec.Bits())
	assert.Equal(t, []Bit{1, 1, 1, 1, 1, 1, 1, 1}, windows[7].Flushed)
}

func TestReceiver_NotDue(t *testing.T) {
	// A clock that never moves only gets the first sample.
	var d = newTestDemod(t, new(BitRecorder))
	var r = NewReceiver(d, NewLatch(900), ClockFunc(func() time.Duration { return time.Second }), log.New(&bytes.Buffer{}))

	for range 10 {
		r.poll()
	}

	assert.Equal(t, int64(1), d.Stats().Samples)
}

func TestReceiver_ButtonStatus(t *testing.T) {
	var clock = &stepClock{now: 0, step: 100 * time.Microsecond}
	var d = newTestDemod(t, new(BitRecorder))
	var events = make(chan ButtonEvent, 4)

	var buf bytes.Buffer
	var r = NewReceiver(d, toneInput(clock, time.Millisecond), clock, log.New(&buf), WithButtons(events))

	for range 1001 {
		r.poll()
	}

	events <- ButtonEvent{Name: "select", Pressed: false, At: 0}
	events <- ButtonEvent{Name: "select", Pressed: true, At: time.Millisecond}

	r.poll()

	assert.Empty(t, events)
	assert.Contains(t, buf.String(), "Status")
	assert.Contains(t, buf.String(), "button=select")
	assert.Contains(t, buf.String(), "pending=1")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Status")))
}

func TestReceiver_RunWarnsAboutPendingBits(t *testing.T) {
	var clock = &stepClock{now: 0, step: 100 * time.Microsecond}
	var rec = new(BitRecorder)
	var d = newTestDemod(t, rec)

	var buf bytes.Buffer
	var r = NewReceiver(d, toneInput(clock, time.Millisecond), clock, log.New(&buf))

	for range 3001 {
		r.poll()
	}

	require.Len(t, d.Pending(), 3)

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	require.NoError(t, r.Run(ctx))

	assert.Empty(t, rec.Bits())
	assert.Contains(t, buf.String(), "Discarding bits short of a full group")
	assert.Contains(t, buf.String(), "pending=3")
	assert.Contains(t, buf.String(), "bits=000")
}

func TestReceiver_RunLive(t *testing.T) {
	var d = newTestDemod(t, new(BitRecorder))
	var latch = NewLatch(700)

	var r = NewReceiver(d, latch, MonotonicClock{}, log.New(&bytes.Buffer{}))

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan error, 1)

	go func() {
		done <- r.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not stop")
	}

	assert.Positive(t, d.Stats().Samples)
}
