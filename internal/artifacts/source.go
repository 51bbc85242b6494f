package artifacts

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

// maxBlobSize bounds a decompressed artifact.
const maxBlobSize = 512 << 20

// ErrNotFound signals that an artifact key does not exist in the source.
var ErrNotFound = errors.New("artifact not found")

// BlobSource fetches raw artifact bytes by key.
type BlobSource interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// FileSource reads artifacts from a local directory.
type FileSource struct {
	dir string
}

// NewFileSource returns a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Get reads dir/key.
func (s *FileSource) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := key
	if !filepath.IsAbs(key) {
		path = filepath.Join(s.dir, key)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Close is a no-op for files.
func (s *FileSource) Close() error { return nil }

// RedisConfig holds connection parameters for a Redis/Valkey artifact store.
type RedisConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
	ReadTimeout time.Duration
	TLS         bool
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// RedisSource reads artifacts stored as string values under KeyPrefix+key.
type RedisSource struct {
	client redisGetter
	prefix string
}

// NewRedisSource connects to Redis and pings it so bad credentials fail at startup.
func NewRedisSource(cfg RedisConfig) (*RedisSource, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}

	opts := &redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &RedisSource{client: client, prefix: cfg.KeyPrefix}, nil
}

// Get fetches KeyPrefix+key.
func (s *RedisSource) Get(ctx context.Context, key string) ([]byte, error) {
	full := s.prefix + key
	data, err := s.client.Get(ctx, full).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis key %s: %w", full, ErrNotFound)
		}
		return nil, fmt.Errorf("redis get %s: %w", full, err)
	}
	return data, nil
}

// Close releases the client.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// decompress inflates zstd or gzip blobs, detected by magic bytes; anything else
// is returned unchanged.
func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBlobSize))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, maxBlobSize+1))
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		if len(out) > maxBlobSize {
			return nil, fmt.Errorf("gzip artifact exceeds %d bytes", maxBlobSize)
		}
		return out, nil
	}
	return data, nil
}
