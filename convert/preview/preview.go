// Package preview renders a standalone HTML companion next to markdown
// output so the archived article can be eyeballed in a browser.
package preview

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/beevik/etree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

//go:embed preview.css
var previewStylesheet string

// converter turns markdown into an XHTML fragment. Raw HTML passthrough
// stays off, rendered output must be well formed XML for document assembly.
var converter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(ghtml.WithXHTML()),
)

// Generate writes an XHTML preview of the markdown document.
func Generate(md, title, outputPath string, log *zap.Logger) error {
	log.Debug("Rendering HTML preview", zap.String("output", outputPath))

	var buf bytes.Buffer
	if err := converter.Convert([]byte(md), &buf); err != nil {
		return fmt.Errorf("unable to convert markdown: %w", err)
	}

	fragment := etree.NewDocument()
	if err := fragment.ReadFromString("<div>" + buf.String() + "</div>"); err != nil {
		return fmt.Errorf("unable to parse rendered markdown: %w", err)
	}

	doc := buildPreviewDocument(title, fragment.Root())

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("unable to create preview file: %w", err)
	}
	defer f.Close()

	if _, err := doc.WriteTo(f); err != nil {
		return fmt.Errorf("unable to write preview file: %w", err)
	}
	return f.Close()
}

// buildPreviewDocument creates a standard XHTML document structure with head
// elements and moves rendered fragment into its body.
func buildPreviewDocument(title string, fragment *etree.Element) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")

	head := html.CreateElement("head")

	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")

	style := head.CreateElement("style")
	style.CreateAttr("type", "text/css")
	style.SetText(previewStylesheet)

	titleElem := head.CreateElement("title")
	titleElem.SetText(title)

	body := html.CreateElement("body")

	if fragment != nil {
		// reparenting mutates the child list, copy it first
		children := append([]etree.Token(nil), fragment.Child...)
		for _, child := range children {
			body.AddChild(child)
		}
	}

	return doc
}
