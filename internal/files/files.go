// Package files serves a directory tree over HTTP.
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

const indexPage = "/index.html"

// Open opens dir as a traversal resistant root. Paths served from the
// returned root can never resolve outside dir, including through symlinks.
func Open(dir string) (*os.Root, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open serve directory: %w", err)
	}
	return root, nil
}

// Handler serves the files under root with the standard library file
// server: content type inference, range and conditional requests,
// index.html and directory listings.
//
// Unlike http.FileServer, an explicit request for an index.html file is
// answered with the file rather than a redirect to its directory.
func Handler(root *os.Root) http.Handler {
	fsys := root.FS()
	return &handler{
		fsys:  fsys,
		files: http.FileServerFS(fsys),
	}
}

type handler struct {
	fsys  fs.FS
	files http.Handler
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, indexPage) && h.serveIndex(w, r) {
		return
	}
	h.files.ServeHTTP(w, r)
}

// serveIndex reports false when name is a directory, leaving it to the
// file server.
func (h *handler) serveIndex(w http.ResponseWriter, r *http.Request) bool {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")

	f, err := h.fsys.Open(name)
	if err != nil {
		writeError(w, err)
		return true
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, err)
		return true
	}
	if info.IsDir() {
		return false
	}

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		return true
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "404 page not found", http.StatusNotFound)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "403 Forbidden", http.StatusForbidden)
	default:
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
	}
}
