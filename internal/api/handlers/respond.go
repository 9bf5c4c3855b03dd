package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/rs/zerolog/log"
)

// maxFormBytes caps request bodies read by the form and JSON helpers.
const maxFormBytes = 1 << 20

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeMessage answers with a {"message": ...} body.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeText answers with a plain-text body.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// readFields extracts the named fields from either a JSON object or a
// form-encoded body. Missing fields and non-string JSON values come back empty.
func readFields(w http.ResponseWriter, r *http.Request, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		raw := make(map[string]interface{})
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding JSON body: %w", err)
		}
		for _, k := range keys {
			if s, ok := raw[k].(string); ok {
				out[k] = s
			}
		}
		return out, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parsing form: %w", err)
	}
	for _, k := range keys {
		out[k] = r.PostFormValue(k)
	}
	return out, nil
}

// bodyStatus picks the status for a body readFields could not read.
func bodyStatus(err error) int {
	if errors.As(err, new(*http.MaxBytesError)) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
