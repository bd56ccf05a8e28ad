package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SiteHandler serves the built site from dir. URLs are resolved the way
// the generated links expect: "/guide/intro" serves "guide/intro.html" and
// a directory serves its index.html. Requests outside baseURL are not
// found.
func SiteHandler(dir, baseURL string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean("/" + r.URL.Path)
		if baseURL != "" {
			if p != baseURL && !strings.HasPrefix(p, baseURL+"/") {
				http.NotFound(w, r)
				return
			}
			p = path.Clean("/" + strings.TrimPrefix(p, baseURL))
		}

		file := resolve(dir, p)
		if file == "" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, file)
	})
}

func resolve(dir, p string) string {
	base := filepath.Join(dir, filepath.FromSlash(p))
	candidates := []string{base, base + ".html", filepath.Join(base, "index.html")}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c
		}
	}
	return ""
}
