package dlna

import (
	"net/http"
	"strings"

	"github.com/navidrome/mediaserver/core/dispatch"
	"github.com/navidrome/mediaserver/log"
)

// handleResource implements the two-phase getInfo/open contract of spec
// §4.C over HTTP: it resolves the opaque resource path, stats it without
// opening a stream, sets the DLNA transport headers getInfo produced, and
// only then opens the byte stream for http.ServeContent to range over.
func (r *Router) handleResource(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	path := strings.TrimPrefix(req.URL.Path, "/resource")

	key, err := dispatch.ParseURL(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.quirksForRequest(req)
	info, err := r.dispatcher.GetInfo(ctx, key, q, "")
	if err != nil {
		log.Warn(ctx, "resource getInfo failed", "path", path, "error", err.Error())
		http.NotFound(w, req)
		return
	}

	for name, values := range info.Headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set("Content-Type", info.ContentType)

	stream, err := r.dispatcher.Open(ctx, key)
	if err != nil {
		log.Error(ctx, "resource open failed", err, "path", path)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	if info.Length == dispatch.ChunkedLength {
		w.WriteHeader(http.StatusOK)
		copyStream(w, stream)
		return
	}

	http.ServeContent(w, req, key.Filename, info.LastModified, stream)
}

func copyStream(w http.ResponseWriter, r interface{ Read([]byte) (int, error) }) {
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
