package twrfsk

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pflag (not unreasonably) assumes it only ever gets called once. But lots of
// test infrastructure was built around "call this command then this command".
// Running it in Go tests (for coverage analysis and convenience etc.) means
// doing some slight bodges.
func setupPflag(args []string) {
	os.Args = args
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
}

func Test_GenThenReceiveText(t *testing.T) {
	var tmpdir = t.TempDir()
	var wav = filepath.Join(tmpdir, "hi.wav")
	var out = filepath.Join(tmpdir, "received_image.bin")

	setupPflag([]string{"twrfsk-gen", "-o", wav, "Hi"})
	GenMain()

	setupPflag([]string{"twrfsk-rx", "-i", "wav:" + wav, "-o", out, "-l", "warn"})
	RxMain()

	var got, err = os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, "0100100001101001", string(got))
}

func Test_GenThenReceiveBinary(t *testing.T) {
	var tmpdir = t.TempDir()
	var wav = filepath.Join(tmpdir, "hex.wav")
	var out = filepath.Join(tmpdir, "out.bin")
	var windows = filepath.Join(tmpdir, "windows")

	setupPflag([]string{"twrfsk-gen", "-o", wav, "-x", "de ad be ef", "-a", "30", "--marker", "0"})
	GenMain()

	setupPflag([]string{
		"twrfsk-rx", "--input", "wav:" + wav, "--output", out, "--format", "binary",
		"--window-log-dir", windows, "--log-level", "error",
	})
	RxMain()

	var got, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, got)

	var logs, _ = filepath.Glob(filepath.Join(windows, "*.csv"))
	assert.NotEmpty(t, logs)
}

func Test_GenThenReceiveImage(t *testing.T) {
	var tmpdir = t.TempDir()
	var png = filepath.Join(tmpdir, "in.png")
	var wav = filepath.Join(tmpdir, "img.wav")
	var out = filepath.Join(tmpdir, "img.bin")

	// Four quadrants of gray.
	var src = image.NewGray(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			src.SetGray(x, y, color.Gray{Y: uint8(40*(y/4) + 100*(x/4))}) //nolint:gosec
		}
	}

	var f, err = os.Create(png)
	require.NoError(t, err)
	require.NoError(t, WriteImage(f, src))
	require.NoError(t, f.Close())

	setupPflag([]string{"twrfsk-gen", "-o", wav, "--image", png, "--image-size", "2"})
	GenMain()

	var cfg = DefaultConfig()
	cfg.Input.Source = "wav:" + wav
	cfg.Output.Path = out
	cfg.Output.Format = FormatBinary
	cfg.Output.ImageWidth = 2
	cfg.LogLevel = "warn"

	var configFile = filepath.Join(tmpdir, "twrfsk.yaml")
	require.NoError(t, cfg.Save(configFile))

	setupPflag([]string{"twrfsk-rx", "-c", configFile})
	RxMain()

	var got, readErr = os.ReadFile(out)
	require.NoError(t, readErr)
	assert.Equal(t, []byte{0, 100, 40, 140}, got)

	assert.FileExists(t, out+".png")
}

func Test_GenDump(t *testing.T) {
	var wav = filepath.Join(t.TempDir(), "dump.wav")

	AssertOutputContains(t, func() {
		setupPflag([]string{"twrfsk-gen", "-d", "-o", wav, "OK"})
		GenMain()
	}, "  000:  4f 4b")

	AssertOutputContains(t, func() {
		setupPflag([]string{"twrfsk-gen", "-o", wav, "-x", "00ff"})
		GenMain()
	}, "Wrote 2 bytes")
}
