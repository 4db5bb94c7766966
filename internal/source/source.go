// Package source opens edge-list inputs. A source is a local path or an
// s3://bucket/key object; either may be gzip, zstd or lz4 compressed, which is
// detected from the file extension.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pierrec/lz4/v4"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
)

const s3Scheme = "s3://"

// Compression identifies how a source is encoded.
type Compression string

const (
	None Compression = ""
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
	LZ4  Compression = "lz4"
)

// Location is a parsed source URI.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// Remote reports whether the location refers to object storage.
func (l Location) Remote() bool {
	return l.Bucket != ""
}

// Parse splits a source URI. Anything without the s3:// scheme is a local
// path.
func Parse(uri string) (Location, error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		if uri == "" {
			return Location{}, fmt.Errorf("%w: empty source path", apperrors.ErrIO)
		}
		return Location{Path: uri}, nil
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Location{}, fmt.Errorf("%w: malformed object uri %q, want s3://bucket/key", apperrors.ErrIO, uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// DetectCompression maps a file name to its compression by extension.
func DetectCompression(name string) Compression {
	switch strings.ToLower(path.Ext(name)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

// Opener opens sources for reading.
type Opener struct {
	s3         *minio.Client
	localRoot  string
	remoteOnly bool
	logger     *slog.Logger
}

type Option func(*Opener)

// RemoteOnly refuses every local path. The rank worker uses it when no
// source.localRoot is configured.
func RemoteOnly() Option { return func(o *Opener) { o.remoteOnly = true } }

// NewOpener creates an Opener. Object storage is available only when
// cfg.S3.Endpoint is set; local paths are confined to cfg.LocalRoot when it
// is set.
func NewOpener(cfg config.SourceConfig, opts ...Option) (*Opener, error) {
	o := &Opener{
		localRoot: cfg.LocalRoot,
		logger:    slog.Default().With("component", "source"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if cfg.S3.Endpoint == "" {
		return o, nil
	}
	client, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		Secure: cfg.S3.UseSSL,
		Region: cfg.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object storage client: %w", err)
	}
	o.s3 = client
	return o, nil
}

// Open returns a reader over the decompressed contents of uri. The caller
// must close it.
func (o *Opener) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	var (
		raw  io.ReadCloser
		name string
	)
	if loc.Remote() {
		raw, err = o.openObject(ctx, loc)
		name = loc.Key
	} else {
		if err := o.allowLocal(loc.Path); err != nil {
			return nil, err
		}
		raw, err = o.openLocal(loc.Path)
		name = loc.Path
	}
	if err != nil {
		return nil, apperrors.IO("opening "+uri, err)
	}

	comp := DetectCompression(name)
	rc, err := decompress(raw, comp)
	if err != nil {
		raw.Close()
		return nil, apperrors.IO(fmt.Sprintf("reading %s stream from %s", comp, uri), err)
	}
	o.logger.Debug("source opened", "uri", uri, "compression", string(comp), "remote", loc.Remote())
	return rc, nil
}

func (o *Opener) allowLocal(p string) error {
	switch {
	case o.remoteOnly:
		return fmt.Errorf("%w: local sources are disabled", apperrors.ErrSourceDenied)
	case o.localRoot == "":
		return nil
	case filepath.IsAbs(p) || !filepath.IsLocal(p):
		return fmt.Errorf("%w: %q is outside the source root", apperrors.ErrSourceDenied, p)
	}
	return nil
}

// openLocal opens p, resolving it inside the source root when one is set so
// that symlinks cannot lead out of it either.
func (o *Opener) openLocal(p string) (*os.File, error) {
	if o.localRoot == "" {
		return os.Open(p)
	}
	return os.OpenInRoot(o.localRoot, p)
}

func (o *Opener) openObject(ctx context.Context, loc Location) (io.ReadCloser, error) {
	if o.s3 == nil {
		return nil, fmt.Errorf("object storage is not configured (set source.s3.endpoint)")
	}
	obj, err := o.s3.GetObject(ctx, loc.Bucket, loc.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces missing buckets or keys up front.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: %s/%s", os.ErrNotExist, loc.Bucket, loc.Key)
		}
		return nil, err
	}
	return obj, nil
}

func decompress(raw io.ReadCloser, comp Compression) (io.ReadCloser, error) {
	switch comp {
	case Gzip:
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, err
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, raw}}, nil
	case Zstd:
		dec, err := zstd.NewReader(raw)
		if err != nil {
			return nil, err
		}
		zr := dec.IOReadCloser()
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, raw}}, nil
	case LZ4:
		return &stackedReader{Reader: lz4.NewReader(raw), closers: []io.Closer{raw}}, nil
	default:
		return raw, nil
	}
}

// stackedReader closes a decoder and the stream beneath it, in order.
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
