package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultExtensions are the image file extensions scanned by default.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// UnsupportedImageError reports an image that could not be opened or decoded.
type UnsupportedImageError struct {
	Path string
	Err  error
}

func (e *UnsupportedImageError) Error() string {
	return fmt.Sprintf("unsupported image %s: %v", e.Path, e.Err)
}

func (e *UnsupportedImageError) Unwrap() error { return e.Err }

// Load opens and decodes the image at path. Any failure is reported as an
// *UnsupportedImageError.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &UnsupportedImageError{Path: path, Err: errors.Wrap(err, "failed to open image")}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &UnsupportedImageError{Path: path, Err: errors.Wrap(err, "failed to decode image")}
	}
	return img, nil
}

// ListImages returns the files in dir whose lower-cased extension is in
// exts, sorted by path. Subdirectories are not searched. A nil exts uses
// DefaultExtensions.
func ListImages(dir string, exts []string) ([]string, error) {
	if exts == nil {
		exts = DefaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allowed[e] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list images in %s", dir)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if allowed[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
