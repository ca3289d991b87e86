package imagecache

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bulkmart/go-aggregator/utils"
)

// ImageCache mirrors remote listing images into a local directory keyed on
// the md5 of the source url, so repeated exports never re-download.
type ImageCache struct {
	Dir    string
	client *http.Client
}

func New(dir string) (*ImageCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("IMAGECACHE_MKDIRERR: (%s) %v", dir, err)
	}
	return &ImageCache{
		Dir:    dir,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Path returns the deterministic local path for a source url
func (ic *ImageCache) Path(url string) string {
	return filepath.Join(ic.Dir, utils.Md5Hash(url)+extension(url))
}

// Get returns the cached path if the image is already present
func (ic *ImageCache) Get(url string) (string, bool) {
	path := ic.Path(url)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Ensure returns the cached path, downloading the image first when needed.
// The write goes through a temp file so a partial download never surfaces
// as a cached image.
func (ic *ImageCache) Ensure(url string) (string, error) {
	if path, ok := ic.Get(url); ok {
		return path, nil
	}

	resp, err := ic.client.Get(url)
	if err != nil {
		return "", fmt.Errorf("IMAGECACHE_FETCHERR: (%s) %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("IMAGECACHE_FETCHERR: (%s) status %d", url, resp.StatusCode)
	}

	path := ic.Path(url)
	tmp, err := os.CreateTemp(ic.Dir, "dl-*")
	if err != nil {
		return "", fmt.Errorf("IMAGECACHE_TMPERR: (%s) %v", url, err)
	}
	if _, err = io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("IMAGECACHE_WRITEERR: (%s) %v", url, err)
	}
	tmp.Close()
	if err = os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("IMAGECACHE_RENAMEERR: (%s) %v", url, err)
	}
	log.Printf("IMAGECACHE_STORE: (%s) -> %s\n", url, path)
	return path, nil
}

// EnsureAll warms the cache for a batch, logging and skipping failures
func (ic *ImageCache) EnsureAll(urls []string) (cached int) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, err := ic.Ensure(u); err != nil {
			log.Printf("IMAGECACHE_SKIP: %v\n", err)
			continue
		}
		cached++
	}
	return cached
}

func extension(url string) string {
	base := url
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	ext := strings.ToLower(filepath.Ext(base))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	}
	return ".jpg"
}
