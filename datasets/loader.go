// Package datasets fetches CSV files over HTTP or from disk, caches them and
// resolves the registered datasets (iris, wine) into features and target.
package datasets

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	pb "github.com/cheggaaa/pb/v3"
	lru "github.com/hashicorp/golang-lru"

	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultMemoryEntries = 16
)

// Loader downloads, caches and parses CSV files.
type Loader struct {
	cache    *Cache
	client   *http.Client
	logger   log.Logger
	progress io.Writer
	memo     *lru.Cache
	entries  int

	remoteOnly bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache enables the on-disk download cache.
func WithCache(c *Cache) Option {
	return func(l *Loader) { l.cache = c }
}

// WithCacheDir enables the on-disk cache rooted at dir.
func WithCacheDir(dir string) Option {
	return func(l *Loader) {
		if dir != "" {
			l.cache = NewCache(dir)
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.client = &http.Client{Timeout: d} }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithProgress renders a download progress bar to w.
func WithProgress(w io.Writer) Option {
	return func(l *Loader) { l.progress = w }
}

// WithMemoryEntries sets how many parsed frames are memoised.
func WithMemoryEntries(n int) Option {
	return func(l *Loader) { l.entries = n }
}

// WithRemoteOnly rejects local paths and file:// URLs. Services that load
// sources chosen by their clients use it.
func WithRemoteOnly() Option {
	return func(l *Loader) { l.remoteOnly = true }
}

// NewLoader creates a Loader. Without WithCache the loader downloads on
// every cold call but still memoises parsed frames.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{
		client:  &http.Client{Timeout: defaultTimeout},
		entries: defaultMemoryEntries,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.GetLogger()
	}
	l.logger = l.logger.With(log.ComponentKey, "datasets")

	memo, err := lru.New(l.entries)
	if err != nil {
		return nil, errors.Wrap(err, "create frame cache")
	}
	l.memo = memo
	return l, nil
}

// LoadOptions controls LoadCSV.
type LoadOptions struct {
	dataset.CSVOptions

	// KnownHash is "sha256:<hex>", "sha1:<hex>", "md5:<hex>" or a bare
	// sha256 hex digest. When set, the downloaded bytes must match.
	KnownHash string
}

// memoKey includes KnownHash so that a frame parsed without verification
// is never returned to a caller that asked for one.
func memoKey(source string, opts LoadOptions) string {
	return strings.Join([]string{
		source,
		opts.Sep,
		strconv.FormatBool(opts.Header),
		strings.Join(opts.Names, "\x1f"),
		opts.KnownHash,
	}, "\x00")
}

// LoadCSV loads and parses source, which is an http(s) URL, a file:// URL or
// a local path.
func (l *Loader) LoadCSV(ctx context.Context, source string, opts LoadOptions) (*dataset.Frame, error) {
	key := memoKey(source, opts)
	if v, ok := l.memo.Get(key); ok {
		return v.(*dataset.Frame), nil
	}

	body, err := l.fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	if opts.KnownHash != "" {
		if err := verifyHash(source, body, opts.KnownHash); err != nil {
			if l.cache != nil {
				_ = l.cache.Remove(source)
			}
			return nil, err
		}
	}

	frame, err := dataset.ReadCSV(bytes.NewReader(body), opts.CSVOptions)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", source)
	}
	l.memo.Add(key, frame)

	l.logger.Debug("CSV parsed",
		log.URLKey, source,
		log.SamplesKey, frame.Rows(),
		log.FeaturesKey, frame.Cols(),
	)
	return frame, nil
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.download(ctx, source)
	}

	if l.remoteOnly {
		return nil, errors.WithHint(
			errors.NewValidationError("url", "only http and https sources are allowed", schemeOf(u)),
			"pass an http(s) URL or a registered dataset name",
		)
	}

	path := source
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithHint(errors.Wrapf(err, "read %s", path), "pass an http(s) URL or an existing file path")
	}
	return body, nil
}

func schemeOf(u *url.URL) string {
	if u == nil || u.Scheme == "" {
		return "local path"
	}
	return u.Scheme
}

func (l *Loader) download(ctx context.Context, source string) ([]byte, error) {
	if l.cache != nil {
		if body, ok := l.cache.Get(source); ok {
			l.logger.Info("Dataset served from cache", log.URLKey, source, log.CacheHitKey, true)
			return body, nil
		}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errors.NewDownloadError(source, 0, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.NewDownloadError(source, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewDownloadError(source, resp.StatusCode, nil)
	}

	var r io.Reader = resp.Body
	if l.progress != nil {
		bar := pb.New64(resp.ContentLength).
			SetTemplate(pb.Full).
			SetWriter(l.progress).
			Set(pb.Bytes, true).
			Start()
		defer bar.Finish()
		r = bar.NewProxyReader(resp.Body)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewDownloadError(source, 0, err)
	}

	if l.cache != nil {
		if err := l.cache.Put(source, body); err != nil {
			l.logger.Warn("Could not write dataset cache", err, log.URLKey, source)
		}
	}
	l.logger.Info("Dataset downloaded",
		log.URLKey, source,
		log.CacheHitKey, false,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return body, nil
}

func verifyHash(source string, body []byte, known string) error {
	algorithm, expected := "sha256", known
	if i := strings.IndexByte(known, ':'); i >= 0 {
		algorithm, expected = strings.ToLower(known[:i]), known[i+1:]
	}
	expected = strings.ToLower(expected)

	var h hash.Hash
	switch algorithm {
	case "sha256":
		h = sha256.New()
	case "sha1":
		h = sha1.New()
	case "md5":
		h = md5.New()
	default:
		return errors.NewValidationError("known_hash", "algorithm must be sha256, sha1 or md5", algorithm)
	}
	h.Write(body)
	got := hex.EncodeToString(h.Sum(nil))
	if got != expected {
		return errors.NewIntegrityError(source, algorithm, expected, got)
	}
	return nil
}

// Request identifies a dataset: either a registered Name or a URL plus
// Target. Sep is detected from the URL when empty.
type Request struct {
	Name      string
	URL       string
	Target    string
	Sep       string
	KnownHash string
}

// LoadDataset resolves req and returns the feature frame and target column.
func (l *Loader) LoadDataset(ctx context.Context, req Request) (*dataset.Frame, *dataset.Column, error) {
	source, target := req.URL, req.Target
	opts := LoadOptions{KnownHash: req.KnownHash}
	opts.Sep = req.Sep

	if spec, ok := Lookup(strings.ToLower(req.Name)); ok {
		source = spec.URL
		if target == "" {
			target = spec.Target
		}
		if opts.Sep == "" {
			opts.Sep = spec.Sep
		}
		opts.Names = spec.Names
	} else if source == "" || target == "" {
		err := errors.NewValidationError("dataset", "specify a known dataset name or a url and target", req.Name)
		return nil, nil, errors.WithHint(err, "known datasets: "+strings.Join(Known(), ", "))
	}
	if opts.Sep == "" {
		opts.Sep = dataset.DetectSeparator(source)
	}

	frame, err := l.LoadCSV(ctx, source, opts)
	if err != nil {
		return nil, nil, err
	}
	y, err := frame.Column(target)
	if err != nil {
		return nil, nil, err
	}
	X, err := frame.Drop(target)
	if err != nil {
		return nil, nil, err
	}

	l.logger.Info("Dataset loaded",
		log.DatasetKey, req.Name,
		log.URLKey, source,
		log.TargetKey, target,
		log.SamplesKey, X.Rows(),
		log.FeaturesKey, X.Cols(),
	)
	return X, y, nil
}
