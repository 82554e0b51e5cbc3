// Package pages holds the embedded HTML templates for the dashboard.
package pages

import (
	"embed"
	"html/template"
)

//go:embed *.html partials/*.html
var files embed.FS

// Templates parses every embedded page and partial into one template set.
func Templates(funcs template.FuncMap) (*template.Template, error) {
	t := template.New("pages").Funcs(funcs)
	t, err := t.ParseFS(files, "*.html", "partials/*.html")
	if err != nil {
		return nil, err
	}
	return t, nil
}
