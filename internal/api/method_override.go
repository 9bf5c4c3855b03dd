package api

import (
	"errors"
	"mime"
	"net/http"
	"strings"
)

const maxOverrideBytes = 1 << 20

// MethodOverride lets HTML forms issue DELETE requests. A form-encoded
// POST under prefix whose _method field is DELETE is routed as a DELETE.
// Other requests pass through with their body unread.
func MethodOverride(prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
			mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if mediaType == "application/x-www-form-urlencoded" {
				r.Body = http.MaxBytesReader(w, r.Body, maxOverrideBytes)
				if err := r.ParseForm(); err != nil {
					status := http.StatusBadRequest
					if errors.As(err, new(*http.MaxBytesError)) {
						status = http.StatusRequestEntityTooLarge
					}
					http.Error(w, http.StatusText(status), status)
					return
				}
				if strings.EqualFold(r.PostForm.Get("_method"), http.MethodDelete) {
					r.Method = http.MethodDelete
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
