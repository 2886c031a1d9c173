package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const defaultAvatarSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" rx="100" fill="#e8eef5"/><circle cx="100" cy="80" r="36" fill="#9aa8b8"/><path d="M36 168c8-34 36-52 64-52s56 18 64 52" fill="#9aa8b8"/></svg>`

// AvatarFileServer serves member avatars from dir and falls back to a
// placeholder silhouette when a file is missing.
func AvatarFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(defaultAvatarSVG))
	})
}
