package twrfsk

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

/*-------------------------------------------------------------------
 *
 * Name:        GenMain
 *
 * Purpose:     Main program for twrfsk-gen, which makes a .WAV file
 *		the transmitter would have sent.
 *
 *--------------------------------------------------------------------*/

func GenMain() {
	var def = DefaultFSKConfig()

	var outputFile = pflag.StringP("output-file", "o", "", "Send output to .wav file.")
	var sampleRate = pflag.IntP("rate", "r", def.SampleRate, "Audio sample rate.")
	var bitMs = pflag.IntP("bit-ms", "B", int(def.BitDuration/time.Millisecond), "Milliseconds per bit.")
	var zeroFreq = pflag.Float64("zero", def.ZeroFreq, "Tone for a 0 bit, Hz.")
	var oneFreq = pflag.Float64("one", def.OneFreq, "Tone for a 1 bit, Hz.")
	var amplitude = pflag.IntP("amplitude", "a", def.Amplitude, "Signal amplitude in range of 1 - 100%.")
	var markerFreq = pflag.Float64("marker", def.MarkerFreq, "Marker tone before and after the data, Hz.  0 for silence.")
	var markerMs = pflag.Int("marker-ms", int(def.MarkerDuration/time.Millisecond), "Milliseconds of marker tone.")
	var imageFile = pflag.String("image", "", "Send this PNG, scaled down and converted to gray.")
	var imageSize = pflag.Int("image-size", DefaultImageSize, "Width and height to scale the image to.")
	var hexData = pflag.StringP("hex", "x", "", "Send these bytes, given in hexadecimal.")
	var dump = pflag.BoolP("dump", "d", false, "Print the bytes being sent in hexadecimal.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Generate audio file of two tone FSK data.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] -o file.wav [text | -]\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Data comes from --image, --hex, the text arguments, or stdin for \"-\".\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  %s -o hi.wav Hello\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example:  %s -o picture.wav --image cat.png --image-size 50\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *version {
		printVersion("twrfsk-gen", false)
		os.Exit(0)
	}

	if *outputFile == "" {
		fmt.Fprintf(os.Stderr, "ERROR: The -o output file option must be specified.\n")
		pflag.Usage()
		os.Exit(1)
	}

	var data, err = genData(*imageFile, *imageSize, *hexData, pflag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}

	if len(data) == 0 {
		fmt.Fprintf(os.Stderr, "ERROR: Nothing to send.\n")
		pflag.Usage()
		os.Exit(1)
	}

	if *dump {
		HexDump(os.Stdout, data)
	}

	var cfg = FSKConfig{
		SampleRate:     *sampleRate,
		BitDuration:    time.Duration(*bitMs) * time.Millisecond,
		ZeroFreq:       *zeroFreq,
		OneFreq:        *oneFreq,
		Amplitude:      *amplitude,
		MarkerFreq:     *markerFreq,
		MarkerDuration: time.Duration(*markerMs) * time.Millisecond,
	}

	var samples, genErr = GenerateFSK(data, cfg)
	if genErr != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", genErr)
		os.Exit(1)
	}

	if err := writeWAVFile(*outputFile, samples, cfg.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}

	var seconds = float64(len(samples)) / float64(cfg.SampleRate)
	fmt.Printf("Wrote %d bytes as %d samples (%.1f seconds) to %s\n", len(data), len(samples), seconds, *outputFile)
}

// Image first, then hex, then text arguments.  "-" reads stdin.
func genData(imageFile string, imageSize int, hexData string, args []string) ([]byte, error) {
	switch {
	case imageFile != "":
		var f, err = os.Open(imageFile) //nolint:gosec
		if err != nil {
			return nil, fmt.Errorf("can't open %s for read: %w", imageFile, err)
		}
		defer f.Close()

		var img, decodeErr = ReadImage(f)
		if decodeErr != nil {
			return nil, fmt.Errorf("%s: %w", imageFile, decodeErr)
		}

		return ImageToBytes(img, imageSize)
	case hexData != "":
		var data, err = hex.DecodeString(strings.ReplaceAll(hexData, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("bad hex data: %w", err)
		}

		return data, nil
	case len(args) == 1 && args[0] == "-":
		var data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return data, nil
	default:
		return []byte(strings.Join(args, " ")), nil
	}
}

func writeWAVFile(path string, samples []int16, sampleRate int) error {
	var f, err = os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("can't open %s for write: %w", path, err)
	}

	if err := WriteWAV(f, samples, sampleRate); err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}
