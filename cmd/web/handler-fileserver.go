package main

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/myrjola/lockedin/internal/errors"
)

// fileServerHandler serves ui/static and falls back to the not found page for missing files.
func (app *application) fileServerHandler() (http.Handler, error) {
	fileRoot := path.Join(".", "ui", "static")
	if _, err := os.Stat(fileRoot); os.IsNotExist(err) {
		dir, dirErr := findModuleDir()
		if dirErr != nil {
			return nil, errors.Wrap(dirErr, "find module dir")
		}
		fileRoot = path.Join(dir, "ui", "static")
	}
	if stat, err := os.Stat(fileRoot); err != nil || !stat.IsDir() {
		return nil, errors.New("file server root does not exist or is not a directory: " + fileRoot)
	}
	fileServer := http.FileServer(http.Dir(fileRoot))

	// The not found page shows the navigation of signed in users, so it needs the session.
	notFound := app.recoverPanic(noCache(app.sessionManager.LoadAndSave(
		app.webAuthnHandler.AuthenticateMiddleware(app.logAndTraceRequest(secureHeaders(
			commonContext(http.HandlerFunc(app.notFound))))))))

	static := app.recoverPanic(app.logAndTraceRequest(secureHeaders(cacheForever(fileServer))))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanPath := filepath.Clean(r.URL.Path)
		if strings.Contains(cleanPath, "..") {
			notFound.ServeHTTP(w, r)
			return
		}
		stat, err := os.Stat(filepath.Join(fileRoot, cleanPath))
		if err != nil || stat.IsDir() {
			notFound.ServeHTTP(w, r)
			return
		}
		static.ServeHTTP(w, r)
	}), nil
}
