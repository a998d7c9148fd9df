package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"

	"xarc/config"
	"xarc/content"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	Title      string
	Slug       string
	ID         string
	Date       string
	SourceFile string
}

// buildSlug derives a file system friendly name from the article title. When
// title produces nothing usable article ID takes its place, it is always set
// after content preparation.
func buildSlug(c *content.Content) string {
	if s := slug.Make(c.Doc.Title); len(s) > 0 {
		return s
	}
	return c.Doc.ID
}

func buildDate(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return at.Format("2006-01-02")
}

func expandTemplate(c *content.Content, name config.TemplateFieldName, field string) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:    string(name),
		Title:      c.Doc.Title,
		Slug:       buildSlug(c),
		ID:         c.Doc.ID,
		Date:       buildDate(c.ArchivedAt),
		SourceFile: strings.TrimSuffix(filepath.Base(c.SrcName), filepath.Ext(c.SrcName)),
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
