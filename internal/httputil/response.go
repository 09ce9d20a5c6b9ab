// Package httputil holds the response helpers shared by the debug and
// dashboard handlers.
package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/banshee-data/mpc.driver/internal/monitoring"
)

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("httputil: encode json response: %v", err)
	}
}

// WriteJSONError writes {"error": msg} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// AllowMethods writes a 405 unless r uses one of the allowed methods,
// and reports whether the handler may continue.
func AllowMethods(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	for _, m := range allowed {
		if r.Method == m {
			return true
		}
	}
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// QueryInt parses an integer query parameter, returning def when it is
// absent and an error when it is malformed or outside [min, max].
func QueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %q", key, raw)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s: %d outside [%d, %d]", key, v, min, max)
	}
	return v, nil
}

// Renderer is anything that renders a full document, such as a go-echarts
// chart or page.
type Renderer interface {
	Render(w io.Writer) error
}

// WriteHTML renders r into a buffer first so a failure can still become a
// clean 500.
func WriteHTML(w http.ResponseWriter, r Renderer) {
	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
