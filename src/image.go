package twrfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Send small grayscale pictures over the link.
 *
 * Description:	A picture is scaled down to a square, converted to
 *		8 bit gray, and sent one byte per pixel, row by row.
 *		At 10 bits per second a 50x50 picture takes a little
 *		over half an hour.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// DefaultImageSize is the width and height pictures are scaled to.
const DefaultImageSize = 50

// ImageToBytes scales img to size x size and returns its gray levels row
// by row.
func ImageToBytes(img image.Image, size int) ([]byte, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: image size must be positive, got %d", ErrInvalidConfig, size)
	}

	var gray = image.NewGray(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)

	return gray.Pix, nil
}

// BytesToImage lays data out as rows of width gray pixels.  A short last
// row is padded with black.
func BytesToImage(data []byte, width int) (*image.Gray, error) {
	if width < 1 {
		return nil, fmt.Errorf("%w: image width must be positive, got %d", ErrInvalidConfig, width)
	}

	var rows = (len(data) + width - 1) / width
	var img = image.NewGray(image.Rect(0, 0, width, rows))

	copy(img.Pix, data)

	return img, nil
}

// ReadImage decodes a PNG.
func ReadImage(r io.Reader) (image.Image, error) {
	var img, err = png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return img, nil
}

// WriteImage encodes img as PNG.
func WriteImage(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}

	return nil
}
