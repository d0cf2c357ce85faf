package assets

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/san-kum/robodesc/internal/model"
)

var ErrBadTexture = fmt.Errorf("assets: texture cannot be decoded: %w", model.ErrMalformed)

type configDecoder func(io.Reader) (image.Config, error)

// TGA has no magic number, so formats are picked by extension rather than
// sniffed.
var decoders = map[string]configDecoder{
	"png":  png.DecodeConfig,
	"jpg":  jpeg.DecodeConfig,
	"jpeg": jpeg.DecodeConfig,
	"bmp":  bmp.DecodeConfig,
	"tif":  tiff.DecodeConfig,
	"tiff": tiff.DecodeConfig,
	"webp": webp.DecodeConfig,
	"tga":  tga.DecodeConfig,
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// probe reads the image header of a texture file.
func probe(r io.Reader, name string) (image.Config, string, error) {
	ext := extension(name)
	if dec, ok := decoders[ext]; ok {
		cfg, err := dec(r)
		if err != nil {
			return image.Config{}, ext, fmt.Errorf("%w: %s: %w", ErrBadTexture, name, err)
		}
		if ext == "jpg" {
			ext = "jpeg"
		}
		if ext == "tif" {
			ext = "tiff"
		}
		return cfg, ext, nil
	}
	cfg, format, err := image.DecodeConfig(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, ext, fmt.Errorf("%w: %s: %w", ErrBadTexture, name, err)
	}
	return cfg, format, nil
}
