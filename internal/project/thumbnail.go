package project

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

const thumbWidth = 160

type thumbEntry struct {
	path string
	mod  time.Time
	data string
}

// thumbCache keeps one thumbnail per project, rebuilt when the newest
// picture changes. Failed decodes are cached as empty thumbnails.
type thumbCache struct {
	mu      sync.Mutex
	entries map[string]thumbEntry
}

func newThumbCache() *thumbCache {
	return &thumbCache{entries: make(map[string]thumbEntry)}
}

func (c *thumbCache) get(project, path string, mod time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[project]; ok && e.path == path && e.mod.Equal(mod) {
		return e.data
	}
	data, err := thumbnail(path)
	if err != nil {
		data = ""
	}
	c.entries[project] = thumbEntry{path: path, mod: mod, data: data}
	return data
}

func (c *thumbCache) forget(project string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, project)
}

// thumbnail scales the JPEG at path to thumbWidth and returns it base64
// encoded.
func thumbnail(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	src, err := jpeg.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return "", fmt.Errorf("empty image %s", path)
	}
	width := min(thumbWidth, b.Dx())
	height := max(1, b.Dy()*width/b.Dx())

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 75}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
