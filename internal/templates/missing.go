package templates

import (
	"fmt"
	"net/http"
)

type missingPage struct {
	name string
}

func (m missingPage) Render(w http.ResponseWriter) error {
	return fmt.Errorf("templates: unknown page %q", m.name)
}

func (m missingPage) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "text/html; charset=utf-8")
	}
}
