package server

import (
	"net/http"
	"os"
	"path/filepath"
)

// spaHandler serves the frontend UI. Requests that do not match a file fall
// back to index.html so client-side routes survive a page reload.
type spaHandler struct {
	root string
}

func newSPAHandler(root string) spaHandler {
	return spaHandler{root: root}
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(h.root, filepath.Clean("/"+r.URL.Path))

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.ServeFile(w, r, filepath.Join(h.root, "index.html"))
		return
	}
	http.ServeFile(w, r, path)
}
