package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Read and write .WAV files.
 *
 * Description:	Only uncompressed PCM is handled: 16 bit signed or
 *		8 bit unsigned samples, one or two channels.  When reading
 *		stereo, only the left channel is used.
 *
 *		Samples read are scaled to the range of the 12 bit ADC
 *		on the receiver so recorded audio goes through the
 *		demodulator exactly like the live analog input.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

type wavHeader struct {
	Riff     [4]byte /* "RIFF" */
	FileSize uint32  /* file length - 8 */
	Wave     [4]byte /* "WAVE" */
}

type wavChunk struct {
	ID       [4]byte /* "LIST" or "fmt " or "data" */
	DataSize uint32
}

type wavFormat struct {
	FormatTag      uint16 /* 1 for PCM. */
	NumChannels    uint16 /* 1 for mono, 2 for stereo. */
	SamplesPerSec  uint32 /* sampling freq, Hz. */
	AvgBytesPerSec uint32 /* = BlockAlign*SamplesPerSec. */
	BlockAlign     uint16 /* = BitsPerSample/8 * NumChannels. */
	BitsPerSample  uint16 /* 16 or 8. */
}

const wavFormatPCM = 1

// WriteWAV writes 16 bit mono PCM samples as a complete .WAV file.
func WriteWAV(w io.Writer, samples []int16, sampleRate int) error {
	var dataSize = uint32(len(samples) * 2) //nolint:gosec

	var header = wavHeader{
		Riff:     [4]byte{'R', 'I', 'F', 'F'},
		FileSize: 4 + 8 + 16 + 8 + dataSize,
		Wave:     [4]byte{'W', 'A', 'V', 'E'},
	}

	var format = wavFormat{
		FormatTag:      wavFormatPCM,
		NumChannels:    1,
		SamplesPerSec:  uint32(sampleRate), //nolint:gosec
		AvgBytesPerSec: uint32(sampleRate * 2), //nolint:gosec
		BlockAlign:     2,
		BitsPerSample:  16,
	}

	var bw = bufio.NewWriter(w)

	var parts = []any{
		header,
		wavChunk{ID: [4]byte{'f', 'm', 't', ' '}, DataSize: 16},
		format,
		wavChunk{ID: [4]byte{'d', 'a', 't', 'a'}, DataSize: dataSize},
		samples,
	}

	for _, p := range parts {
		if err := binary.Write(bw, binary.LittleEndian, p); err != nil {
			return fmt.Errorf("write wav: %w", err)
		}
	}

	return bw.Flush()
}

// WAVReader reads PCM samples from a .WAV stream.
type WAVReader struct {
	r          *bufio.Reader
	format     wavFormat
	remaining  uint32 // Bytes left in the data chunk.
	frameBytes int
	frame      []byte
}

/*------------------------------------------------------------------
 *
 * Name:        NewWAVReader
 *
 * Purpose:     Parse the header of a .WAV stream and position at the
 *		first sample.
 *
 * Description:	Chunks other than "fmt " and "data" (e.g. "LIST") are
 *		skipped.  The "fmt " chunk must come before "data".
 *
 *----------------------------------------------------------------*/

func NewWAVReader(r io.Reader) (*WAVReader, error) {
	var br = bufio.NewReader(r)

	var header wavHeader
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}

	if string(header.Riff[:]) != "RIFF" || string(header.Wave[:]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF WAVE stream", ErrUnsupportedWAV)
	}

	var wr = &WAVReader{r: br} //nolint:exhaustruct
	var haveFormat = false

	for {
		var chunk wavChunk
		if err := binary.Read(br, binary.LittleEndian, &chunk); err != nil {
			return nil, fmt.Errorf("read wav chunk: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			if chunk.DataSize < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk of %d bytes", ErrUnsupportedWAV, chunk.DataSize)
			}

			if err := binary.Read(br, binary.LittleEndian, &wr.format); err != nil {
				return nil, fmt.Errorf("read wav format: %w", err)
			}

			if err := skip(br, int64(chunk.DataSize-16)+int64(chunk.DataSize&1)); err != nil {
				return nil, err
			}

			if err := wr.checkFormat(); err != nil {
				return nil, err
			}

			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedWAV)
			}

			wr.remaining = chunk.DataSize

			return wr, nil
		default:
			if err := skip(br, int64(chunk.DataSize)+int64(chunk.DataSize&1)); err != nil {
				return nil, err
			}
		}
	}
}

func (wr *WAVReader) checkFormat() error {
	var f = wr.format

	if f.FormatTag != wavFormatPCM {
		return fmt.Errorf("%w: format tag %d, only PCM (1) is supported", ErrUnsupportedWAV, f.FormatTag)
	}

	if f.NumChannels != 1 && f.NumChannels != 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedWAV, f.NumChannels)
	}

	if f.BitsPerSample != 8 && f.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, f.BitsPerSample)
	}

	if f.SamplesPerSec == 0 {
		return fmt.Errorf("%w: sample rate of 0", ErrUnsupportedWAV)
	}

	wr.frameBytes = int(f.BitsPerSample/8) * int(f.NumChannels)
	wr.frame = make([]byte, wr.frameBytes)

	return nil
}

func skip(r io.Reader, n int64) error {
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("skip wav chunk: %w", err)
	}

	return nil
}

// SampleRate is the rate from the fmt chunk, in Hz.
func (wr *WAVReader) SampleRate() int {
	return int(wr.format.SamplesPerSec)
}

// Channels is 1 or 2.
func (wr *WAVReader) Channels() int {
	return int(wr.format.NumChannels)
}

// BitsPerSample is 8 or 16.
func (wr *WAVReader) BitsPerSample() int {
	return int(wr.format.BitsPerSample)
}

// ReadSample returns the next left channel sample scaled to 12 bits.
func (wr *WAVReader) ReadSample() (int, error) {
	if wr.remaining < uint32(wr.frameBytes) { //nolint:gosec
		return 0, io.EOF
	}

	if _, err := io.ReadFull(wr.r, wr.frame); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}

		return 0, err
	}

	wr.remaining -= uint32(wr.frameBytes) //nolint:gosec

	if wr.format.BitsPerSample == 8 {
		return PCM8ToADC(wr.frame[0]), nil
	}

	return PCM16ToADC(int16(binary.LittleEndian.Uint16(wr.frame))), nil //nolint:gosec
}
