package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"message": "Title is required and should be at least 3 characters long."}
//
// The frontend only ever has to read one field, whatever the status code.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippet-share/internal/apperror"
)

// maxBodyBytes caps request bodies. Snippet code is the largest field.
const maxBodyBytes = 1 << 20

const msgInternal = "Internal Server Error"

// MessageResponse is the body of every error and of plain acknowledgements.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body is written. Once Encode
// calls w.Write(), later header changes are silently ignored.
//
// A nil data is encoded as the JSON literal null. The single-snippet reads
// rely on that to answer "no such snippet" with 200 and a null body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent, so logging is all we can do.
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
// The service layer returns apperror sentinels wrapped in *AppError, often
// with extra fmt.Errorf context on top. errors.Is walks the whole chain, so
//
//	fmt.Errorf("creating tag: %w", apperror.DuplicateKey(...))
//
// still matches ErrDuplicateKey and becomes a 400.
//
// Anything unrecognised is a 500 with a generic message. The raw error can
// contain SQL or file paths, so it goes to the log, tagged with the request
// id, and never to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeMessage(w, status, msgInternal)
		return
	}

	message := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	writeMessage(w, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrDuplicateKey):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into dst. Malformed or oversized bodies are a
// validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "Request body is required")
		}
		return apperror.ValidationFailed("body", "Invalid request body")
	}
	return nil
}
