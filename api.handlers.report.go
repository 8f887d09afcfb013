package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// ExportFlushEvery controls how often the export stream is flushed.
const ExportFlushEvery = 100

// GetBookStats serves the aggregated reporting view of the collection.
func (api *APIHandler) GetBookStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	stats, err := api.bookService.Stats(r.Context())
	if err != nil {
		api.logger.Error("failed to compute books statistics", zap.String("request.id", requestID), zap.Error(err))
		errResp := NewAPIError(requestID, http.StatusInternalServerError, "failed to compute books statistics", EmptyData)
		if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
			api.logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(err))
		}
		return
	}
	api.logger.Info("success to compute books statistics", zap.String("request.id", requestID))
	resp := GenericResponse(requestID, http.StatusOK, "Books statistics computed successfully.", nil, stats)
	if err = WriteResponse(r.Context(), w, resp); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// GetBookshelves serves the distinct free-text shelf tags in use.
func (api *APIHandler) GetBookshelves(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	shelves, err := api.bookService.Bookshelves(r.Context())
	if err != nil {
		api.logger.Error("failed to get bookshelves", zap.String("request.id", requestID), zap.Error(err))
		errResp := NewAPIError(requestID, http.StatusInternalServerError, "failed to get bookshelves", EmptyData)
		if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
			api.logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(err))
		}
		return
	}
	api.logger.Info("success to get bookshelves", zap.String("request.id", requestID))
	total := len(shelves)
	resp := GenericResponse(requestID, http.StatusOK, "Bookshelves fetched successfully.", &total, shelves)
	if err = WriteResponse(r.Context(), w, resp); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// ImportBooks stores a batch of records carried as a JSON array and reports
// per-item failures without aborting the whole batch.
func (api *APIHandler) ImportBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	var books []Book
	err := DecodeImportPayload(r, &books)
	if err != nil {
		api.logger.Error("failed to import books", zap.String("request.id", requestID), zap.Error(err))
		errResp := NewAPIError(requestID, http.StatusBadRequest, "failed to import books", EmptyData)
		if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
			api.logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(err))
		}
		return
	}
	if len(books) == 0 {
		errResp := NewAPIError(requestID, http.StatusBadRequest, "import payload must be a non-empty array of books", EmptyData)
		if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
			api.logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(err))
		}
		return
	}

	report := api.bookService.Import(r.Context(), books)
	api.logger.Info("books import completed",
		zap.String("request.id", requestID),
		zap.Int("import.ok", report.Imported),
		zap.Int("import.failed", report.Failed),
	)
	resp := GenericResponse(requestID, http.StatusOK, "Books import completed.", nil, report)
	if err = WriteResponse(r.Context(), w, resp); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// ExportBooks streams the whole collection as one JSON array, flushing
// incrementally so large exports do not buffer in memory.
//
//nolint:bodyclose
func (api *APIHandler) ExportBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(api.config.Server.LongRequestWriteTimeout)); err != nil {
		api.logger.Error("http: failed to update the write deadline", zap.String("request.id", requestID), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	if _, err := w.Write([]byte("[")); err != nil {
		api.logger.Error("failed to start export stream", zap.String("request.id", requestID), zap.Error(err))
		return
	}

	count := 0
	err := api.bookService.Export(r.Context(), func(book Book) error {
		raw, err := json.Marshal(book)
		if err != nil {
			return err
		}
		if count > 0 {
			if _, err = w.Write([]byte(",")); err != nil {
				return err
			}
		}
		if _, err = w.Write(raw); err != nil {
			return err
		}
		count++
		if count%ExportFlushEvery == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// the array is closed regardless so the client sees valid json
		// even when the stream stopped early.
		api.logger.Error("failed to export books", zap.String("request.id", requestID), zap.Int("export.count", count), zap.Error(err))
	}

	if _, err = w.Write([]byte("]")); err != nil {
		api.logger.Error("failed to close export stream", zap.String("request.id", requestID), zap.Error(err))
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
	api.logger.Info("books export completed", zap.String("request.id", requestID), zap.Int("export.count", count))
}
