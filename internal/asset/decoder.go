package asset

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"
)

// FileDecoder reads images from the local file system. Relative urls are
// resolved against Dir. Supported formats: PNG, JPEG, WebP, AVIF.
type FileDecoder struct {
	Dir string
}

func (d FileDecoder) Decode(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return nil, fmt.Errorf("remote images are not fetched, download %s next to the manifest", ref)
	}

	path := filepath.FromSlash(strings.TrimPrefix(ref, "file://"))
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.Dir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}
