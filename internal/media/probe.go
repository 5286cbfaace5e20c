package media

import (
	"image"
	"os"
	"path/filepath"
	"strings"
)

var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// IsImage reports whether the path's extension is a supported photo
// format.
func IsImage(path string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// MimeType returns the MIME type for a supported photo extension, or
// empty for anything else.
func MimeType(path string) string {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// Probe reads the image header and returns its natural dimensions
// without decoding the pixel data. Unreadable or unsupported files
// report zero dimensions and the error.
func Probe(path string) (width, height int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
