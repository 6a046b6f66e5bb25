// Package respond holds the JSON request and response helpers shared by the
// API handlers.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	contentTypeJSON = "application/json"
	noStore         = "no-cache, no-store, must-revalidate"

	// maxBodyBytes bounds request bodies accepted by DecodeJSON.
	maxBodyBytes = 1 << 20
)

// ErrorBody carries a machine-readable code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorResponse is the envelope every API error is wrapped in.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes a cached JSON payload with ETag and Cache-Control headers.
// X-Cache reports whether the payload came from the response cache.
func WriteJSON(w http.ResponseWriter, data []byte, etag string, ttl time.Duration, cacheHit bool) {
	h := w.Header()
	h.Set("Content-Type", contentTypeJSON)
	h.Set("ETag", etag)
	h.Set("Vary", "Accept-Encoding")
	if cacheHit {
		h.Set("X-Cache", "HIT")
	} else {
		h.Set("X-Cache", "MISS")
	}

	maxAge := int(ttl.Seconds())
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge/2))

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// WriteNotModified answers a conditional GET whose ETag still matches.
func WriteNotModified(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusNotModified)
}

// WriteError sends an error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, ErrorBody{Code: code, Message: message})
}

// WriteErrorDetail sends an error envelope with a detail string, usually the
// underlying error text.
func WriteErrorDetail(w http.ResponseWriter, status int, code, message, detail string) {
	writeError(w, status, ErrorBody{Code: code, Message: message, Detail: detail})
}

func writeError(w http.ResponseWriter, status int, body ErrorBody) {
	w.Header().Set("Cache-Control", noStore)
	WriteJSONObject(w, status, ErrorResponse{Error: body})
}

// WriteJSONObject encodes v as the response body. Used for everything that
// is not a cached byte payload.
func WriteJSONObject(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteNoContent sends a 204.
func WriteNoContent(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", noStore)
	w.WriteHeader(http.StatusNoContent)
}

// DecodeJSON decodes exactly one JSON object from the request body into v.
// Unknown fields, trailing data and bodies over 1 MiB are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("decode request body: unexpected trailing data")
	}
	return nil
}
