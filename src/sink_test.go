package twrfsk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFileSink_Appends(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "received_image.bin")

	var s, err = NewTextFileSink(path)
	require.NoError(t, err)

	require.NoError(t, s.WriteBits([]Bit{1, 0, 1, 1, 0, 0, 0, 1}))
	require.NoError(t, s.WriteBits([]Bit{0, 0, 0, 0, 1, 1, 1, 1}))

	var got, readErr = os.ReadFile(path)
	require.NoError(t, readErr)

	assert.Equal(t, "1011000100001111", string(got))
}

func TestTextFileSink_KeepsExisting(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("11"), 0o600))

	var s, err = NewTextFileSink(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteBits([]Bit{0}))

	var got, _ = os.ReadFile(path)
	assert.Equal(t, "110", string(got))
}

func TestTextFileSink_MissingDirectory(t *testing.T) {
	var s, err = NewTextFileSink(filepath.Join(t.TempDir(), "nope", "out.txt"))
	require.NoError(t, err)

	require.Error(t, s.WriteBits([]Bit{1}))
}

func TestByteFileSink(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "out.bin")

	var s, err = NewByteFileSink(path)
	require.NoError(t, err)

	require.NoError(t, s.WriteBits(UnpackBits([]byte{0x48})))
	require.NoError(t, s.WriteBits(UnpackBits([]byte{0x69, 0x21})))
	require.ErrorIs(t, s.WriteBits([]Bit{1, 0, 1}), ErrGroupSize)

	var got, _ = os.ReadFile(path)
	assert.Equal(t, []byte("Hi!"), got)
}

func TestExpandPath(t *testing.T) {
	var when = time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	var p, err = ExpandPath("/data/rx-%Y%m%d-%H%M.bin", when)
	require.NoError(t, err)
	assert.Equal(t, "/data/rx-20240309-1405.bin", p)

	p, err = ExpandPath("plain.bin", when)
	require.NoError(t, err)
	assert.Equal(t, "plain.bin", p)
}

func TestPackBits(t *testing.T) {
	var data, err = PackBits([]Bit{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x01}, data)

	data, err = PackBits(nil)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = PackBits([]Bit{1})
	require.ErrorIs(t, err, ErrGroupSize)

	assert.Equal(t, []Bit{0, 1, 0, 1, 0, 1, 0, 1}, UnpackBits([]byte{0x55}))
}

func TestBitRecorder(t *testing.T) {
	var r = new(BitRecorder)

	require.NoError(t, r.WriteBits(UnpackBits([]byte{0xAB})))
	require.NoError(t, r.WriteBits([]Bit{1, 1}))

	assert.Len(t, r.Groups(), 2)
	assert.Len(t, r.Bits(), 10)
	assert.Equal(t, []byte{0xAB}, r.Bytes())

	// The recorder keeps its own copy.
	var in = []Bit{0}
	require.NoError(t, r.WriteBits(in))
	in[0] = 1
	assert.Equal(t, []Bit{0}, r.Groups()[2])
}

func TestTeeSink(t *testing.T) {
	var a, b = new(BitRecorder), new(BitRecorder)
	var boom = errors.New("boom")

	var tee = TeeSink{a, failingSink{err: boom}, b}

	require.ErrorIs(t, tee.WriteBits([]Bit{1, 0}), boom)

	assert.Equal(t, []Bit{1, 0}, a.Bits())
	assert.Equal(t, []Bit{1, 0}, b.Bits())
}
