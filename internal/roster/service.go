package roster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/roster-scan/internal/scanning"
)

// Service ties the scanner to session caches: it extracts uploads at most
// once per identity and exposes editing and export over the cached sets.
type Service struct {
	scanner        scanning.Scanner
	credential     string
	extractTimeout time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithExtractTimeout bounds each extraction call. Zero leaves the caller's
// context as the only limit.
func WithExtractTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.extractTimeout = d
	}
}

// NewService creates a Service. credential is the configured default used
// when a request does not bring its own; it may be empty.
func NewService(scanner scanning.Scanner, credential string, opts ...Option) *Service {
	s := &Service{
		scanner:    scanner,
		credential: strings.TrimSpace(credential),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload is one image handed in by the interactive surface
type Upload struct {
	Filename    string
	Data        []byte
	ContentType string
	// Credential overrides the configured credential when set
	Credential string
	// Refresh forces re-extraction even when the identity is cached
	Refresh bool
}

// Status describes whether extraction can run
type Status struct {
	ExtractionEnabled bool   `json:"extraction_enabled"`
	Backend           string `json:"backend"`
	PromptVersion     string `json:"prompt_version"`
}

func (s *Service) credentialFor(override string) string {
	if c := strings.TrimSpace(override); c != "" {
		return c
	}
	return s.credential
}

// Status reports whether extraction is enabled for the given request credential
func (s *Service) Status(credential string) Status {
	return Status{
		ExtractionEnabled: s.scanner.Enabled(s.credentialFor(credential)),
		Backend:           s.scanner.Backend(),
		PromptVersion:     scanning.PromptVersion,
	}
}

// Extract returns the record set for an upload, calling the scanner only
// when the session has no entry for the upload's identity (or on Refresh)
func (s *Service) Extract(ctx context.Context, cache *Cache, upload Upload) (string, scanning.RecordSet, error) {
	identity := Identity(upload.Filename)
	credential := s.credentialFor(upload.Credential)

	compute := func(ctx context.Context) (scanning.RecordSet, error) {
		if s.extractTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.extractTimeout)
			defer cancel()
		}
		start := time.Now()
		records, err := s.scanner.Extract(ctx, upload.Data, upload.ContentType, credential)
		if err != nil {
			return nil, err
		}
		slog.Info("Extraction stored",
			"session", cache.Namespace(),
			"identity", identity,
			"rows", len(records),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return records, nil
	}

	var (
		records scanning.RecordSet
		err     error
	)
	if upload.Refresh {
		records, err = cache.Refresh(ctx, identity, compute)
	} else {
		records, err = cache.GetOrCompute(ctx, identity, compute)
	}
	if err != nil {
		return identity, nil, err
	}
	return identity, records, nil
}

// Records returns the current record set of identity
func (s *Service) Records(cache *Cache, identity string) (scanning.RecordSet, error) {
	return cache.Editor(identity).Snapshot()
}

// Export renders the current record set of identity in the given format
// ("csv" or "xlsx") and returns the bytes with a download filename
func (s *Service) Export(cache *Cache, identity string, format string) ([]byte, string, error) {
	records, err := cache.Editor(identity).Snapshot()
	if err != nil {
		return nil, "", err
	}

	switch format {
	case "csv":
		data, err := ToCSV(records)
		if err != nil {
			return nil, "", fmt.Errorf("exporting csv: %w", err)
		}
		return data, ExportFilename(identity, ".csv"), nil
	case "xlsx":
		data, err := ToXLSX(records)
		if err != nil {
			return nil, "", fmt.Errorf("exporting xlsx: %w", err)
		}
		return data, ExportFilename(identity, ".xlsx"), nil
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
