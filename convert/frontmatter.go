package convert

import (
	"time"

	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"xarc/content"
	"xarc/convert/markdown"
)

type frontMatter struct {
	Title       string `yaml:"title,omitempty"`
	ID          string `yaml:"id"`
	URL         string `yaml:"url,omitempty"`
	ArchivedAt  string `yaml:"archived_at"`
	Description string `yaml:"description,omitempty"`
}

// isRestID tells apart X snowflake identifiers from IDs we generate for
// payloads saved without one. Only the former have a canonical URL.
func isRestID(id string) bool {
	if len(id) == 0 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// buildFrontMatter serializes article metadata into a YAML front matter
// block. Returns empty string when serialization is not possible, output is
// still usable without it.
func buildFrontMatter(c *content.Content, sentences int, log *zap.Logger) string {
	fm := frontMatter{
		Title:       c.Doc.Title,
		ID:          c.Doc.ID,
		ArchivedAt:  c.ArchivedAt.UTC().Format(time.RFC3339),
		Description: c.Excerpt(sentences),
	}
	if isRestID(c.Doc.ID) {
		fm.URL = markdown.GenericTweetURL(c.Doc.ID)
	}

	data, err := yaml.Marshal(fm)
	if err != nil {
		log.Warn("Unable to serialize front matter", zap.Error(err))
		return ""
	}
	return "---\n" + string(data) + "---\n\n"
}
