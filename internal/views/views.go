package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed templates/*.html
var files embed.FS

// Pages rendered inside the admin layout.
const (
	Login     = "login.html"
	Dashboard = "dashboard.html"
	AddPost   = "add-post.html"
	EditPost  = "edit-post.html"
	Messages  = "messages.html"
)

var pages = []string{Login, Dashboard, AddPost, EditPost, Messages}

// Locals carries the page title and description shown in the layout head.
type Locals struct {
	Title       string
	Description string
}

// Renderer executes the embedded admin templates.
type Renderer struct {
	templates map[string]*template.Template
}

// New parses every page together with the shared layout.
func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"datetime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("Jan 2, 2006 15:04")
		},
	}

	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		r.templates[page] = tmpl
	}
	return r, nil
}

// Render executes page into w. Output is buffered so a failing template
// never leaves a half-written response behind.
func (r *Renderer) Render(w io.Writer, page string, data any) error {
	tmpl, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown template %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("executing template %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
