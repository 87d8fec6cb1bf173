// Package swagger serves the OpenAPI document of the read API.
package swagger

import (
	"context"
	_ "embed"
	"net/http"
	"strconv"

	"github.com/segmentio/fasthash/jody"
)

// OpenAPI contains the embedded OpenAPI YAML document.
//
//go:embed openapi.yaml
var OpenAPI []byte

// etag identifies the embedded document; it changes only with a rebuild.
var etag = `"` + strconv.FormatUint(jody.HashString64(string(OpenAPI)), 16) + `"`

// Register attaches GET /openapi.yaml to mux. Clients revalidating with
// If-None-Match get 304 while the binary is unchanged.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/openapi.yaml", serveDocument)
}

func serveDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(OpenAPI)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(OpenAPI)
}
