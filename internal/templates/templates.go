package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"sort"
	"strings"
	texttemplate "text/template"

	"github.com/gin-gonic/gin/render"
)

//go:embed all:html mail static
var files embed.FS

const (
	layoutName   = "_layout.html"
	partialsGlob = "html/_*.html"
)

var funcs = template.FuncMap{
	"add":  func(a, b int) int { return a + b },
	"sub":  func(a, b int) int { return a - b },
	"join": strings.Join,
}

// Renderer holds one parsed template set per page. It implements gin's
// render.HTMLRender so handlers can use c.HTML.
type Renderer struct {
	pages map[string]*template.Template
	mails *texttemplate.Template
}

// New parses every embedded page and mail template.
func New() (*Renderer, error) {
	base, errBase := template.New(layoutName).Funcs(funcs).ParseFS(files, partialsGlob)
	if errBase != nil {
		return nil, fmt.Errorf("templates: parse layout: %w", errBase)
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	errWalk := fs.WalkDir(files, "html", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" || strings.HasPrefix(path.Base(p), "_") {
			return nil
		}
		page, errClone := base.Clone()
		if errClone != nil {
			return errClone
		}
		if _, errParse := page.ParseFS(files, p); errParse != nil {
			return fmt.Errorf("templates: parse %s: %w", p, errParse)
		}
		r.pages[strings.TrimPrefix(p, "html/")] = page
		return nil
	})
	if errWalk != nil {
		return nil, errWalk
	}

	mails, errMails := texttemplate.New("mail").ParseFS(files, "mail/*.txt")
	if errMails != nil {
		return nil, fmt.Errorf("templates: parse mails: %w", errMails)
	}
	r.mails = mails
	return r, nil
}

// Static returns the embedded assets.
func Static() fs.FS {
	sub, errSub := fs.Sub(files, "static")
	if errSub != nil {
		panic(errSub)
	}
	return sub
}

// Pages lists the page names.
func (r *Renderer) Pages() []string {
	out := make([]string, 0, len(r.pages))
	for name := range r.pages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether name is a known page.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Instance implements render.HTMLRender.
func (r *Renderer) Instance(name string, data any) render.Render {
	page, ok := r.pages[name]
	if !ok {
		return missingPage{name: name}
	}
	return render.HTML{Template: page, Name: layoutName, Data: data}
}

// RenderPage executes a page into a buffer.
func (r *Renderer) RenderPage(name string, data any) ([]byte, error) {
	page, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("templates: unknown page %q", name)
	}
	var buf bytes.Buffer
	if errExec := page.ExecuteTemplate(&buf, layoutName, data); errExec != nil {
		return nil, fmt.Errorf("templates: render %s: %w", name, errExec)
	}
	return buf.Bytes(), nil
}

// RenderMail executes a mail template, e.g. "activate_account.txt".
func (r *Renderer) RenderMail(name string, data any) (string, error) {
	var buf bytes.Buffer
	if errExec := r.mails.ExecuteTemplate(&buf, name, data); errExec != nil {
		return "", fmt.Errorf("templates: render mail %s: %w", name, errExec)
	}
	return buf.String(), nil
}
