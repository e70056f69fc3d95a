package datasets

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/peterbourgon/diskv"
)

// Cache stores downloaded files on disk, keyed by the sha256 of their URL.
// Each entry is prefixed with the sha256 of its content, which is verified
// on every read.
type Cache struct {
	dv *diskv.Diskv
}

// NewCache opens (or creates) a gzip-compressed cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dv: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    blockTransform(8),
		CacheSizeMax: 4096 * 1024,
		Compression:  diskv.NewGzipCompression(),
	})}
}

// blockTransform spreads keys over nested directories of blockSize
// characters each.
func blockTransform(blockSize int) func(string) []string {
	return func(s string) []string {
		sliceSize := len(s) / blockSize
		pathSlice := make([]string, sliceSize)
		for i := 0; i < sliceSize; i++ {
			from, to := i*blockSize, (i*blockSize)+blockSize
			pathSlice[i] = s[from:to]
		}
		return pathSlice
	}
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached body for url. A missing or corrupted entry is a
// miss; corrupted entries are erased.
func (c *Cache) Get(url string) ([]byte, bool) {
	key := cacheKey(url)
	if !c.dv.Has(key) {
		return nil, false
	}
	raw, err := c.dv.Read(key)
	if err != nil {
		return nil, false
	}
	nl := bytes.IndexByte(raw, '\n')
	if nl < 0 {
		_ = c.dv.Erase(key)
		return nil, false
	}
	stored, body := string(raw[:nl]), raw[nl+1:]
	if stored != contentHash(body) {
		_ = c.dv.Erase(key)
		return nil, false
	}
	return body, true
}

// Put stores body for url.
func (c *Cache) Put(url string, body []byte) error {
	entry := make([]byte, 0, len(body)+65)
	entry = append(entry, contentHash(body)...)
	entry = append(entry, '\n')
	entry = append(entry, body...)
	return c.dv.Write(cacheKey(url), entry)
}

// Remove drops the entry for url.
func (c *Cache) Remove(url string) error {
	key := cacheKey(url)
	if !c.dv.Has(key) {
		return nil
	}
	return c.dv.Erase(key)
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	return c.dv.EraseAll()
}
