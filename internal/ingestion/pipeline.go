// Package ingestion implements the upload pipeline: extract text from the
// uploaded file, archive the original, and load the text into the retrieval
// session. It is shared by the HTTP upload handler and the CLI.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/docqa-go/internal/archive"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/session"
)

// MaxUploadBytes is the default upper bound on an uploaded file.
const MaxUploadBytes = 32 << 20

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = errors.New("ingestion: file exceeds size limit")

// Loader replaces the active document. *session.Session satisfies it.
type Loader interface {
	LoadNamedDocument(ctx context.Context, doc session.Document, text string) (int, error)
}

// Recorder persists a descriptor of each ingested document.
type Recorder interface {
	RecordDocument(ctx context.Context, res *Result) error
}

// Upload is a single file to ingest.
type Upload struct {
	Name string
	Data []byte
}

// Result describes a successfully ingested document.
type Result struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	Location   string `json:"location,omitempty"`
	ChunkCount int    `json:"chunkCount"`
	Bytes      int    `json:"bytes"`
}

// Config holds optional pipeline settings.
type Config struct {
	// MaxBytes caps the upload size. Defaults to MaxUploadBytes.
	MaxBytes int64
	// HTTPTimeout bounds IngestURL fetches. Defaults to 30s.
	HTTPTimeout time.Duration
	// UserAgent is sent with IngestURL fetches.
	UserAgent string
	// Recorder, when set, is told about every ingested document. Its
	// failures are logged and do not fail the upload.
	Recorder Recorder
}

// Pipeline orchestrates extract → archive → load for one upload at a time.
type Pipeline struct {
	extractor  extract.Extractor
	archive    archive.Archive
	loader     Loader
	cfg        Config
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline. A nil archive disables archiving.
func NewPipeline(extractor extract.Extractor, arc archive.Archive, loader Loader, cfg *Config) (*Pipeline, error) {
	if extractor == nil {
		return nil, fmt.Errorf("ingestion: extractor must not be nil")
	}
	if loader == nil {
		return nil, fmt.Errorf("ingestion: loader must not be nil")
	}
	if arc == nil {
		arc = archive.None{}
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = MaxUploadBytes
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "docqa-go/1.0 (document ingestion)"
	}
	return &Pipeline{
		extractor:  extractor,
		archive:    arc,
		loader:     loader,
		cfg:        c,
		httpClient: &http.Client{Timeout: c.HTTPTimeout},
	}, nil
}

// MaxBytes returns the effective upload size limit.
func (p *Pipeline) MaxBytes() int64 { return p.cfg.MaxBytes }

// Ingest extracts text from up, archives the original and loads the text as
// the active document.
//
// Errors from the extractor, the archive and the loader are returned wrapped
// so callers can match extract.ErrUnsupportedType, session.ErrNoChunksProduced
// and the like with errors.Is.
func (p *Pipeline) Ingest(ctx context.Context, up Upload) (*Result, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	if int64(len(up.Data)) > p.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(up.Data), p.cfg.MaxBytes)
	}

	text, err := p.extractor.Extract(ctx, up.Name, up.Data)
	if err != nil {
		return nil, fmt.Errorf("ingestion: extract %s: %w", up.Name, err)
	}
	log.Debug("ingestion: extracted text",
		slog.String("name", up.Name),
		slog.Int("bytes", len(up.Data)),
		slog.Int("text_chars", len(text)),
	)

	location, err := p.archive.Put(ctx, up.Name, up.Data)
	if err != nil {
		return nil, &ArchiveError{Err: err}
	}

	doc := session.Document{ID: uuid.NewString(), Name: up.Name, Location: location}
	n, err := p.loader.LoadNamedDocument(ctx, doc, text)
	if err != nil {
		p.discard(ctx, location)
		return nil, fmt.Errorf("ingestion: load %s: %w", up.Name, err)
	}

	res := &Result{
		DocumentID: doc.ID,
		Name:       up.Name,
		Location:   location,
		ChunkCount: n,
		Bytes:      len(up.Data),
	}
	if p.cfg.Recorder != nil {
		if err := p.cfg.Recorder.RecordDocument(ctx, res); err != nil {
			log.Warn("ingestion: failed to record document", slog.String("error", err.Error()))
		}
	}

	log.Info("ingestion: document ingested",
		slog.String("document_id", res.DocumentID),
		slog.String("name", res.Name),
		slog.Int("chunks", res.ChunkCount),
		slog.String("location", res.Location),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// discard removes an archived copy whose load failed. The request context may
// already be done, so the delete gets its own deadline.
func (p *Pipeline) discard(ctx context.Context, location string) {
	if location == "" {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.archive.Delete(dctx, location); err != nil {
		logging.FromContext(ctx).Warn("ingestion: failed to remove archived upload",
			slog.String("location", location),
			slog.String("error", err.Error()),
		)
	}
}

// IngestURL downloads rawURL and ingests it under the last path segment.
func (p *Pipeline) IngestURL(ctx context.Context, rawURL string) (*Result, error) {
	data, err := p.fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("ingestion: fetch %s: %w", rawURL, err)
	}
	return p.Ingest(ctx, Upload{Name: nameFromURL(rawURL), Data: data})
}

// fetch retrieves the raw bytes behind rawURL, bounded by the size limit.
func (p *Pipeline) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > p.cfg.MaxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "download"
	}
	return path.Base(u.Path)
}

// ArchiveError reports a failed archive write.
type ArchiveError struct {
	Err error
}

func (e *ArchiveError) Error() string { return "ingestion: archive upload: " + e.Err.Error() }

func (e *ArchiveError) Unwrap() error { return e.Err }
