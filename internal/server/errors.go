package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/session"
)

// Outcome label values for the upload and ask metrics.
const (
	outcomeOK            = "ok"
	outcomeClientError   = "client_error"
	outcomeUpstreamError = "upstream_error"
	outcomeTimeout       = "timeout"
	outcomeError         = "error"
)

// statusFor maps a session or ingestion error to an HTTP status code.
func statusFor(err error) int {
	var archiveErr *ingestion.ArchiveError
	switch {
	case errors.Is(err, ingestion.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrEmptyFile),
		errors.Is(err, extract.ErrMalformed),
		errors.Is(err, session.ErrNoChunksProduced):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrSessionNotReady):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, session.ErrEmbeddingFailure),
		errors.Is(err, session.ErrGenerationFailure),
		errors.As(err, &archiveErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// outcomeFor collapses a status code into a metric outcome label.
func outcomeFor(status int) string {
	switch {
	case status < 400:
		return outcomeOK
	case status == http.StatusGatewayTimeout:
		return outcomeTimeout
	case status == http.StatusBadGateway:
		return outcomeUpstreamError
	case status < 500:
		return outcomeClientError
	default:
		return outcomeError
	}
}
