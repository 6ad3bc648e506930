package imagestore

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Info describes a decoded image.
type Info struct {
	Format string
	Width  int
	Height int
	Bytes  int
}

// Describe decodes data and reports its format and dimensions.
func Describe(data []byte) (Info, error) {
	// imaging registers the png, jpeg, gif, bmp and tiff decoders.
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("decode image config: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	return Info{
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Bytes:  len(data),
	}, nil
}

// Thumbnail scales data down to fit within width x height and encodes the
// result as PNG, keeping transparency.
func Thumbnail(data []byte, width, height int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(img, width, height, imaging.Lanczos)

	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
