package loaders

import (
	"PharmaChat/backend/go/internal/database/minio"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	phttp "PharmaChat/backend/go/pkg/http"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrSourceUnavailable means the catalog location could not be read.
	ErrSourceUnavailable = errors.New("catalog source unavailable")
	// ErrUnsupportedFormat means the fetched bytes are neither text nor a workbook.
	ErrUnsupportedFormat = errors.New("unsupported catalog format")
)

const (
	xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxBytes = 32 << 20
)

// SourceFetcher reads catalog bytes from http(s) URLs, file:// URLs, local
// paths and minio://bucket/object keys.
type SourceFetcher struct {
	http  *phttp.Client
	minio minio.ObjectReader
}

// NewSourceFetcher creates a fetcher. minioClient may be nil when MinIO is not configured.
func NewSourceFetcher(httpClient *phttp.Client, minioClient minio.ObjectReader) *SourceFetcher {
	return &SourceFetcher{http: httpClient, minio: minioClient}
}

// Fetch returns the raw bytes at location. Every failure wraps ErrSourceUnavailable.
func (s *SourceFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case location == "":
		err = errors.New("no catalog location configured")
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		data, err = s.http.Fetch(ctx, location)
	case strings.HasPrefix(location, "minio://"):
		data, err = s.fetchObject(ctx, strings.TrimPrefix(location, "minio://"))
	default:
		data, err = os.ReadFile(LocalPath(location))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return data, nil
}

func (s *SourceFetcher) fetchObject(ctx context.Context, ref string) ([]byte, error) {
	if s.minio == nil {
		return nil, errors.New("minio is not configured")
	}
	bucket, key, ok := strings.Cut(ref, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid object reference %q", ref)
	}
	return minio.FetchObject(ctx, s.minio, bucket, key, maxBytes)
}

// LocalPath returns the filesystem path of a file:// URL or plain path, or ""
// for remote locations.
func LocalPath(location string) string {
	switch {
	case strings.HasPrefix(location, "file://"):
		return strings.TrimPrefix(location, "file://")
	case strings.Contains(location, "://"):
		return ""
	default:
		return location
	}
}

// LoaderFor picks a RowLoader by sniffing the content type of data.
func LoaderFor(data []byte) (interfaces.RowLoader, error) {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is(xlsxMIME), m.Is("application/zip"):
			return NewXlsxLoader(), nil
		case m.Is("text/plain"):
			return NewCSVLoader(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
}
