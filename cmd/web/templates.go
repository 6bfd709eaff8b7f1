package main

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/myrjola/lockedin/internal/calendar"
	"github.com/myrjola/lockedin/internal/contexthelpers"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

type BaseTemplateData struct {
	Authenticated bool
	CurrentPath   string
	Flash         string
	FlashError    string
}

func newBaseTemplateData(r *http.Request) BaseTemplateData {
	return BaseTemplateData{
		Authenticated: contexthelpers.IsAuthenticated(r.Context()),
		CurrentPath:   contexthelpers.CurrentPath(r.Context()),
		Flash:         "",
		FlashError:    "",
	}
}

// baseData is newBaseTemplateData with the pending flash messages, which are consumed.
func (app *application) baseData(r *http.Request) BaseTemplateData {
	data := newBaseTemplateData(r)
	data.Flash = app.sessionManager.PopString(r.Context(), flashSessionKey)
	data.FlashError = app.sessionManager.PopString(r.Context(), flashErrorSessionKey)
	return data
}

// newMarkdown renders CommonMark with GitHub flavoured extensions. Raw HTML in the source is omitted.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

func (app *application) renderMarkdownToHTML(ctx context.Context, markdown string) template.HTML {
	var buf bytes.Buffer
	if err := app.markdown.Convert([]byte(markdown), &buf); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "render markdown", errors.SlogError(err))
		return template.HTML(template.HTMLEscapeString(markdown)) //nolint:gosec // escaped above.
	}
	return template.HTML(buf.String()) //nolint:gosec // goldmark drops raw HTML by default.
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 15:04")
}

// baseTemplateFuncs returns the base template.FuncMap with placeholder implementations.
// Context-dependent functions (nonce, mdToHTML) must be overridden with actual implementations.
func (app *application) baseTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"nonce": func() string {
			panic("not implemented")
		},
		"mdToHTML": func() string {
			panic("not implemented")
		},
		"formatTimestamp": formatTimestamp,
		"displayDate":     calendar.Date.Display,
	}
}

// contextTemplateFuncs returns template.FuncMap with context-dependent function implementations.
func (app *application) contextTemplateFuncs(ctx context.Context) template.FuncMap {
	nonce := fmt.Sprintf("nonce=\"%s\"", contexthelpers.CSPNonce(ctx))
	return template.FuncMap{
		"nonce": func() template.HTMLAttr {
			return template.HTMLAttr(nonce) //nolint:gosec // we trust the nonce since it's not provided by user.
		},
		"mdToHTML": func(markdown string) template.HTML {
			return app.renderMarkdownToHTML(ctx, markdown)
		},
	}
}

// pageTemplate returns a template for the given page name.
//
// pageName corresponds to directory inside ui/templates/pages folder. It has to include a template named "page".
func (app *application) pageTemplate(pageName string) (*template.Template, error) {
	t := template.New(pageName).Funcs(app.baseTemplateFuncs())
	t, err := t.ParseFS(app.templateFS, "base.gohtml", fmt.Sprintf("pages/%s/*.gohtml", pageName))
	if err != nil {
		return nil, errors.Wrap(err, "parse templates", slog.String("page", pageName))
	}
	return t, nil
}

func (app *application) renderToBuf(ctx context.Context, pageName string, data any) (*bytes.Buffer, error) {
	t, err := app.pageTemplate(pageName)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	t.Funcs(app.contextTemplateFuncs(ctx))
	if err = t.ExecuteTemplate(buf, "base", data); err != nil {
		return nil, errors.Wrap(err, "execute template", slog.String("page", pageName))
	}

	return buf, nil
}

// render renders the template residing in the ui/templates/pages/{pageName} folder and writes it to the response.
func (app *application) render(w http.ResponseWriter, r *http.Request, status int, pageName string, data any) {
	buf, err := app.renderToBuf(r.Context(), pageName, data)
	if err != nil {
		if pageName == "error" {
			// The error page itself is broken. Avoid recursing through serverError.
			app.logger.LogAttrs(r.Context(), slog.LevelError, "render error page", errors.SlogError(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		app.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	_, _ = buf.WriteTo(w)
}

// findModuleDir locates the directory containing the go.mod file.
func findModuleDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "get working directory")
	}

	for {
		if _, err = os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parentDir := filepath.Dir(dir)
		if parentDir == dir {
			break
		}
		dir = parentDir
	}

	return "", os.ErrNotExist
}

// resolveAndVerifyTemplatePath resolves the template path and verifies it.
//
// If the templatePath is empty, it will attempt to find it from the module root.
func resolveAndVerifyTemplatePath(templatePath string) (string, error) {
	if templatePath == "" {
		modulePath, err := findModuleDir()
		if err != nil {
			return "", errors.Wrap(err, "find module dir")
		}
		templatePath = filepath.Join(modulePath, "ui", "templates")
	}
	stat, err := os.Stat(templatePath)
	if err != nil {
		return "", errors.Wrap(err, "template path not found", slog.String("path", templatePath))
	}
	if !stat.IsDir() {
		return "", errors.New("template path is not a directory: " + templatePath)
	}
	return templatePath, nil
}
