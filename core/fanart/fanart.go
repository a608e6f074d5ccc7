// Package fanart resolves the album/container art and embedded-cover
// fallback chain used to synthesize CONTAINERART/FANART resources (spec
// §3 "container image" note, §4.D's ContainerArt hook).
package fanart

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/maruel/natural"
	"golang.org/x/crypto/sha3"

	"github.com/navidrome/mediaserver/model"
)

// Source produces an art byte-stream lazily; nil is returned when the
// source has nothing to offer (e.g. no embedded tag, no sibling image).
type Source func(ctx context.Context) (io.ReadCloser, error)

// Resolver picks art for a container or item following a configurable
// priority chain, grounded on the embedded/external/file-pattern/any-file
// chain idiom.
type Resolver struct {
	// Priority is a lowercase comma list like "embedded,cover,folder,any".
	// "embedded" consults EmbeddedReader against the object's own file;
	// any other token is matched case-insensitively against an image
	// file's base name (without extension) in the object's directory.
	Priority string

	// EmbeddedReader extracts embedded cover art from a media file's tags,
	// e.g. ID3/FLAC picture frames. Returns nil, nil when the file carries
	// no embedded picture.
	EmbeddedReader func(ctx context.Context, mediaPath string) (io.ReadCloser, error)
}

func NewResolver(priority string, embeddedReader func(ctx context.Context, mediaPath string) (io.ReadCloser, error)) *Resolver {
	if priority == "" {
		priority = "embedded,cover,folder,any"
	}
	return &Resolver{Priority: priority, EmbeddedReader: embeddedReader}
}

// Resolve returns the first source in priority order that yields a stream
// for obj, searching siblingDir for image files when a container/folder
// resolution is needed.
func (r *Resolver) Resolve(ctx context.Context, obj *model.CdsObject, siblingDir string) (io.ReadCloser, error) {
	imgFiles := findImageFiles(siblingDir)
	for _, pattern := range strings.Split(strings.ToLower(r.Priority), ",") {
		pattern = strings.TrimSpace(pattern)
		switch pattern {
		case "":
			continue
		case "embedded":
			if r.EmbeddedReader == nil || obj.Location == "" {
				continue
			}
			rc, err := r.EmbeddedReader(ctx, obj.Location)
			if err == nil && rc != nil {
				return rc, nil
			}
		case "any":
			if len(imgFiles) > 0 {
				return os.Open(imgFiles[0])
			}
		default:
			if match := matchByBaseName(imgFiles, pattern); match != "" {
				return os.Open(match)
			}
		}
	}
	return nil, fmt.Errorf("fanart: no art found for %s", obj.ID)
}

// CacheKey derives a stable key for the resolved art from the object id and
// priority string (not from the art's content) so that callers can memoize
// the (expensive) embedded-tag extraction.
func CacheKey(obj *model.CdsObject, priority string) string {
	full := sha3.Sum256([]byte(obj.ID + "|" + priority))
	return fmt.Sprintf("%x", full[:16])
}

// findImageFiles lists image files directly inside dir, naturally sorted so
// "cover.jpg" is preferred over "cover.1.jpg" when patterns tie.
func findImageFiles(dir string) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isImageExt(filepath.Ext(e.Name())) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	slices.SortFunc(out, compareImageFiles)
	return out
}

func matchByBaseName(files []string, pattern string) string {
	for _, f := range files {
		base := strings.ToLower(strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)))
		if strings.Contains(base, pattern) {
			return f
		}
	}
	return ""
}

// compareImageFiles orders by base filename (natural/numeric-aware), then
// full path, so "cover.jpg" sorts ahead of "cover.1.jpg".
func compareImageFiles(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	baseA := strings.TrimSuffix(filepath.Base(a), filepath.Ext(a))
	baseB := strings.TrimSuffix(filepath.Base(b), filepath.Ext(b))
	return cmp.Or(
		natural.Compare(baseA, baseB),
		natural.Compare(a, b),
	)
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

func isImageExt(ext string) bool {
	return imageExts[strings.ToLower(ext)]
}
