package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/session"
	"github.com/54b3r/docqa-go/internal/store"
)

const (
	// multipartOverhead is the slack allowed on top of MaxUploadBytes for
	// multipart boundaries and part headers.
	multipartOverhead = 1 << 20
	// maxQuestionBodyBytes caps JSON and form bodies on ask/search.
	maxQuestionBodyBytes = 1 << 20
	// defaultHistoryLimit and maxHistoryLimit bound GET /api/history.
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	// historyWriteTimeout bounds a single exchange insert.
	historyWriteTimeout = 5 * time.Second
)

// handleUpload handles POST /api/upload (and the /upload-pdf alias). The
// file arrives in the multipart field "file" and replaces the loaded
// document on success.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()
	outcome := outcomeError
	defer func() {
		s.metrics.uploadsTotal.WithLabelValues(outcome).Inc()
		s.metrics.uploadDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			outcome = outcomeClientError
			writeError(w, r, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		case errors.Is(err, http.ErrMissingFile):
			outcome = outcomeClientError
			writeError(w, r, http.StatusBadRequest, "multipart field \"file\" is required")
		default:
			outcome = outcomeClientError
			writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		log.Error("upload: read file", slog.Any("error", err))
		writeError(w, r, http.StatusBadRequest, "could not read uploaded file")
		outcome = outcomeClientError
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		outcome = outcomeClientError
		writeError(w, r, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.UploadTimeout)
	defer cancel()

	res, err := s.ingester.Ingest(ctx, ingestion.Upload{Name: header.Filename, Data: data})
	if err != nil {
		status := statusFor(err)
		outcome = outcomeFor(status)
		log.Warn("upload failed",
			slog.String("name", header.Filename),
			slog.Int("status", status),
			slog.Any("error", err),
		)
		writeError(w, r, status, err.Error())
		return
	}

	outcome = outcomeOK
	s.metrics.documentChunks.Set(float64(res.ChunkCount))
	writeJSON(w, r, http.StatusOK, uploadResponse{
		Message:    "document uploaded and processed successfully",
		DocumentID: res.DocumentID,
		Name:       res.Name,
		ChunkCount: res.ChunkCount,
		Location:   res.Location,
	})
}

// handleAsk handles POST /api/ask (and the /ask alias).
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()
	outcome := outcomeError
	defer func() {
		s.metrics.askTotal.WithLabelValues(outcome).Inc()
		s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	req, msg := decodeQuestion(w, r)
	if msg != "" {
		outcome = outcomeClientError
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	answer, err := s.session.Answer(ctx, req.Question, req.K)
	s.recordExchange(r.Context(), req.Question, answer, err, time.Since(start))
	if err != nil {
		status := statusFor(err)
		outcome = outcomeFor(status)
		log.Warn("ask failed", slog.Int("status", status), slog.Any("error", err))
		writeError(w, r, status, err.Error())
		return
	}

	outcome = outcomeOK
	writeJSON(w, r, http.StatusOK, askResponse{Answer: answer})
}

// handleSearch handles POST /api/search. It returns the nearest passages
// without calling the generator.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, msg := decodeQuestion(w, r)
	if msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	passages, err := s.session.Retrieve(ctx, req.Question, req.K)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	if passages == nil {
		passages = []session.Passage{}
	}
	writeJSON(w, r, http.StatusOK, searchResponse{Passages: passages})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.session.Status())
}

// handleResetDocument handles DELETE /api/document. It unloads the active
// document and always succeeds.
func (s *Server) handleResetDocument(w http.ResponseWriter, r *http.Request) {
	s.session.Reset()
	s.metrics.documentChunks.Set(0)
	logging.FromContext(r.Context()).Info("document unloaded")
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory handles GET /api/history?limit=n.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	exchanges, err := s.history.RecentExchanges(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("history query failed", slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, "could not read history")
		return
	}
	if exchanges == nil {
		exchanges = []store.Exchange{}
	}
	writeJSON(w, r, http.StatusOK, historyResponse{Exchanges: exchanges})
}

// decodeQuestion reads a question from a JSON body or from form fields.
// It returns a non-empty message when the request is malformed.
func decodeQuestion(w http.ResponseWriter, r *http.Request) (askRequest, string) {
	var req askRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxQuestionBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, "invalid request body"
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, "invalid form body"
		}
		req.Question = r.PostFormValue("question")
		if raw := r.PostFormValue("k"); raw != "" {
			k, err := strconv.Atoi(raw)
			if err != nil {
				return req, "k must be an integer"
			}
			req.K = k
		}
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return req, "question is required"
	}
	if req.K < 0 {
		return req, "k must not be negative"
	}
	return req, ""
}

// recordExchange stores the outcome of a question when history is enabled.
// Failures are logged and never reach the client.
func (s *Server) recordExchange(ctx context.Context, question, answer string, askErr error, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	ex := store.Exchange{
		Question:   question,
		Answer:     answer,
		DurationMS: elapsed.Milliseconds(),
	}
	if askErr != nil {
		ex.Error = askErr.Error()
	}
	if doc := s.session.Status().Document; doc != nil {
		ex.DocumentID = doc.ID
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()
	if err := s.history.RecordExchange(writeCtx, ex); err != nil {
		logging.FromContext(ctx).Warn("history: failed to record exchange", slog.Any("error", err))
	}
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}
