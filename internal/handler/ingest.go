package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/ragcore/internal/apperr"
)

// MaxUploadBytes bounds the multipart body read for POST /api/process/upload.
const MaxUploadBytes = 32 << 20 // 32 MiB

// Ingester is the interface handler.Upload/Summaries/Paragraphs depend on.
type Ingester interface {
	UploadAndBasicIngest(ctx context.Context, filename, text string, force bool, chunkSize, chunkOverlap int) (int, error)
	IngestLogicalSummaries(ctx context.Context, filename string) (int, error)
	IngestParagraphSummaries(ctx context.Context, filename string) (int, error)
}

// IngestConfig carries the chunker defaults used when a request
// omits them.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// ObjectMirror is the optional raw-bytes mirror a document is uploaded
// to alongside ingestion, satisfied by *gcpclient.StorageAdapter. A nil
// mirror disables the feature entirely.
type ObjectMirror interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) error
}

// Upload returns a handler for POST /api/process/upload: multipart
// file + optional force flag, runs the basic ingest step. mirror may be
// nil; when set, the raw bytes are mirrored best-effort after a
// successful ingest, never blocking or failing the response.
func Upload(pipeline Ingester, cfg IngestConfig, mirror ObjectMirror) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			writeError(w, apperr.Stage(apperr.ErrInvalidQuery, "upload", fmt.Errorf("parse multipart form: %w", err)))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, apperr.Stage(apperr.ErrInvalidQuery, "upload", fmt.Errorf("missing file field: %w", err)))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, apperr.Stage(apperr.ErrInvalidQuery, "upload", fmt.Errorf("read file: %w", err)))
			return
		}

		force, _ := strconv.ParseBool(r.FormValue("force"))

		nChunks, err := pipeline.UploadAndBasicIngest(r.Context(), header.Filename, string(data), force, cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			writeError(w, err)
			return
		}

		if mirror != nil {
			contentType := header.Header.Get("Content-Type")
			if err := mirror.Upload(r.Context(), header.Filename, data, contentType); err != nil {
				slog.Warn("object mirror upload failed", "filename", header.Filename, "error", err.Error())
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{"filename": header.Filename, "chunks": nChunks})
	}
}

// Summaries returns a handler for POST /api/process/{filename}/summaries.
func Summaries(pipeline Ingester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		n, err := pipeline.IngestLogicalSummaries(r.Context(), filename)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"filename": filename, "summaries": n})
	}
}

// Paragraphs returns a handler for POST /api/process/{filename}/paragraphs.
func Paragraphs(pipeline Ingester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		n, err := pipeline.IngestParagraphSummaries(r.Context(), filename)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"filename": filename, "paragraphs": n})
	}
}
