package web

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"sync"
)

type asset struct {
	body        []byte
	contentType string
	etag        string
}

// StaticHandler serves the embedded stylesheet and script. Files are read
// once and cached with a content hash as ETag.
type StaticHandler struct {
	fsys    fs.FS
	cache   map[string]asset
	cacheMu sync.RWMutex
}

// NewStaticHandler creates a handler serving files from fsys.
func NewStaticHandler(fsys fs.FS) *StaticHandler {
	return &StaticHandler{
		fsys:  fsys,
		cache: make(map[string]asset),
	}
}

// ServeHTTP serves GET /web/static/{file}.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if name == "" || !fs.ValidPath(name) {
		http.NotFound(w, r)
		return
	}

	a, err := h.readCached(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", a.contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", a.etag)
	if r.Header.Get("If-None-Match") == a.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	_, _ = w.Write(a.body)
}

func (h *StaticHandler) readCached(name string) (asset, error) {
	h.cacheMu.RLock()
	a, ok := h.cache[name]
	h.cacheMu.RUnlock()
	if ok {
		return a, nil
	}

	body, err := fs.ReadFile(h.fsys, name)
	if err != nil {
		return asset{}, err
	}
	sum := sha256.Sum256(body)
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	a = asset{body: body, contentType: ct, etag: `"` + hex.EncodeToString(sum[:8]) + `"`}

	h.cacheMu.Lock()
	h.cache[name] = a
	h.cacheMu.Unlock()
	return a, nil
}
