package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/miradorstack/attrition-predictor/internal/utils"
)

// Store loads the two trained artifacts. Implementations decide where they live
// and how they are serialised; the pipeline only sees the decoded interfaces.
type Store interface {
	LoadScaler(ctx context.Context) (Scaler, error)
	LoadClassifier(ctx context.Context) (Classifier, error)
}

// Info describes a loaded artifact.
type Info struct {
	Kind        string `json:"kind"`
	Key         string `json:"key"`
	Fingerprint string `json:"fingerprint"`
	Bytes       int    `json:"bytes"`
}

// BlobStore decodes artifacts fetched from a BlobSource.
type BlobStore struct {
	logger        *slog.Logger
	source        BlobSource
	scalerKey     string
	classifierKey string

	mu       sync.Mutex
	manifest []Info
}

// NewBlobStore constructs a store reading scalerKey and classifierKey from source.
func NewBlobStore(logger *slog.Logger, source BlobSource, scalerKey, classifierKey string) *BlobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobStore{
		logger:        logger,
		source:        source,
		scalerKey:     scalerKey,
		classifierKey: classifierKey,
	}
}

// LoadScaler fetches and decodes the scaler.
func (s *BlobStore) LoadScaler(ctx context.Context) (Scaler, error) {
	data, err := s.fetch(ctx, "scaler", s.scalerKey)
	if err != nil {
		return nil, err
	}
	scaler, err := DecodeScaler(data)
	if err != nil {
		return nil, loadError("scaler", s.scalerKey, err)
	}
	return scaler, nil
}

// LoadClassifier fetches and decodes the classifier.
func (s *BlobStore) LoadClassifier(ctx context.Context) (Classifier, error) {
	data, err := s.fetch(ctx, "classifier", s.classifierKey)
	if err != nil {
		return nil, err
	}
	classifier, err := DecodeClassifier(data)
	if err != nil {
		return nil, loadError("classifier", s.classifierKey, err)
	}
	return classifier, nil
}

// Manifest lists the artifacts loaded so far.
func (s *BlobStore) Manifest() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Info(nil), s.manifest...)
}

// Close releases the underlying source.
func (s *BlobStore) Close() error {
	if s.source == nil {
		return nil
	}
	return s.source.Close()
}

func (s *BlobStore) fetch(ctx context.Context, kind, key string) ([]byte, error) {
	if s.source == nil {
		return nil, loadError(kind, key, fmt.Errorf("no artifact source configured"))
	}
	if key == "" {
		return nil, loadError(kind, key, fmt.Errorf("no %s key configured", kind))
	}
	raw, err := s.source.Get(ctx, key)
	if err != nil {
		return nil, loadError(kind, key, err)
	}
	data, err := decompress(raw)
	if err != nil {
		return nil, loadError(kind, key, err)
	}

	info := Info{Kind: kind, Key: key, Fingerprint: Fingerprint(data), Bytes: len(data)}
	s.mu.Lock()
	s.manifest = append(s.manifest, info)
	s.mu.Unlock()

	s.logger.Info("artifact fetched",
		slog.String("kind", kind),
		slog.String("key", key),
		slog.String("fingerprint", info.Fingerprint),
		slog.Int("bytes", info.Bytes))
	return data, nil
}

// Fingerprint is a stable content hash used to tell deployed artifacts apart.
func Fingerprint(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

func loadError(kind, key string, err error) error {
	return &utils.AppError{
		Kind: utils.KindArtifactLoad,
		Op:   "artifacts.load",
		Msg:  fmt.Sprintf("%s %q", kind, key),
		Err:  err,
	}
}
