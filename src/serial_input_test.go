package twrfsk

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialInput_Pty(t *testing.T) {
	var ptmx, tty, err = pty.Open()
	require.NoError(t, err)

	defer ptmx.Close()
	defer tty.Close()

	var latch = NewLatch(700)

	var in, openErr = OpenSerialInput(tty.Name(), 0, latch, log.New(io.Discard))
	require.NoError(t, openErr)

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan error, 1)

	go func() {
		done <- in.Run(ctx)
	}()

	_, err = ptmx.Write([]byte("ets Jun  8 2016 00:22:57\r\n1234\r\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return latch.Read() == 1234
	}, 2*time.Second, 10*time.Millisecond)

	// A partial line is held until its newline arrives.
	_, err = ptmx.Write([]byte("40"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1234, latch.Read())

	_, err = ptmx.Write([]byte("95\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return latch.Read() == 4095
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serial input did not stop")
	}
}

func TestSerialInput_OpenMissing(t *testing.T) {
	var _, err = OpenSerialInput("/dev/does-not-exist-twrfsk", 115200, NewLatch(0), log.New(io.Discard))
	require.Error(t, err)
}

type scriptedPort struct {
	reads []string
	err   error
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, p.err
	}

	var n = copy(b, p.reads[0])
	p.reads = p.reads[1:]

	return n, nil
}

func (p *scriptedPort) Close() error {
	return nil
}

func TestSerialInput_LostPort(t *testing.T) {
	var port = &scriptedPort{reads: []string{"12\n", "", "3", "4\nx\n"}, err: io.ErrClosedPipe}
	var latch = NewLatch(0)

	var err = NewSerialInput(port, latch, log.New(io.Discard)).Run(context.Background())
	require.ErrorIs(t, err, io.ErrClosedPipe)

	assert.Equal(t, 34, latch.Read())
}
