package handler

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/klauspost/compress/gzhttp"
)

// Compression decides which responses are gzipped. Map SVGs compress far
// better than the JSON bodies, so both are listed.
type Compression struct {
	MinSize      int
	Level        int
	ContentTypes []string
}

func DefaultCompression() Compression {
	return Compression{
		MinSize:      1024,
		Level:        6,
		ContentTypes: []string{"application/json", "image/svg+xml"},
	}
}

// Wrap builds the gzip handler around next.
func (c Compression) Wrap(next http.Handler) (http.Handler, error) {
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(c.MinSize),
		gzhttp.CompressionLevel(c.Level),
		gzhttp.ContentTypes(c.ContentTypes),
	)
	if err != nil {
		return nil, fmt.Errorf("gzip wrapper: %w", err)
	}
	return wrapper(next), nil
}

// CORS answers cross-origin requests. An empty Origins list allows any origin.
type CORS struct {
	Origins []string
	MaxAge  int
}

func (c CORS) allowOrigin(origin string) string {
	if len(c.Origins) == 0 || slices.Contains(c.Origins, "*") {
		return "*"
	}
	if slices.Contains(c.Origins, origin) {
		return origin
	}
	return ""
}

func (c CORS) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		allowed := c.allowOrigin(r.Header.Get("Origin"))
		if allowed != "*" {
			h.Add("Vary", "Origin")
		}
		if allowed != "" {
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			// If-None-Match lets map clients revalidate against the ETag
			h.Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
			h.Set("Access-Control-Expose-Headers", "ETag")
			if c.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
