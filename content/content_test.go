package content

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"xarc/article"
	"xarc/config"
	"xarc/state"
)

const samplePayload = `{
	"data": {
		"twitter_article_by_rest_id": {
			"rest_id": "1845",
			"title": "Field Notes",
			"preview_text": "Short teaser.",
			"plain_text": "First sentence here. Second sentence follows. Third one closes it out.",
			"media_entities": [
				{"media_id": "m1", "media_info": {"original_img_url": "https://pic/1"}}
			],
			"content_state": {
				"blocks": [
					{"key": "h", "text": "Intro", "type": "header-two"},
					{"key": "p", "text": "body", "type": "unstyled"}
				],
				"entityMap": {}
			}
		}
	}
}`

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	return ctx, env
}

func TestPrepare_ParsesArticle(t *testing.T) {
	ctx, env := setupTestEnv(t)

	c, err := Prepare(ctx, strings.NewReader(samplePayload), "sample.json", env.Log)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if c.Doc.ID != "1845" {
		t.Errorf("id = %q, want %q", c.Doc.ID, "1845")
	}
	if c.Doc.Title != "Field Notes" {
		t.Errorf("title = %q, want %q", c.Doc.Title, "Field Notes")
	}
	if !c.Doc.Recognized() {
		t.Error("payload must be recognized as an article")
	}
	if c.SrcName != "sample.json" {
		t.Errorf("source = %q, want %q", c.SrcName, "sample.json")
	}
	if c.ArchivedAt.IsZero() {
		t.Error("archive timestamp must be set")
	}
	if c.Splitter != nil {
		t.Error("splitter must stay nil while excerpts are disabled")
	}
	if c.WorkDir != "" {
		t.Errorf("no work directory expected without a report, got %q", c.WorkDir)
	}
}

func TestPrepare_GeneratesMissingID(t *testing.T) {
	ctx, env := setupTestEnv(t)

	c, err := Prepare(ctx, strings.NewReader(`{"title":"No ID"}`), "noid.json", env.Log)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(c.Doc.ID) == 0 {
		t.Fatal("expected a generated article ID")
	}
	if _, err := uuid.Parse(c.Doc.ID); err != nil {
		t.Errorf("generated ID %q is not a UUID: %v", c.Doc.ID, err)
	}
}

func TestPrepare_UnrecognizedPayload(t *testing.T) {
	ctx, env := setupTestEnv(t)

	c, err := Prepare(ctx, strings.NewReader(`{"something":"else"}`), "dump.json", env.Log)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if c.Doc.Recognized() {
		t.Error("payload must not be recognized as an article")
	}
	if len(c.Doc.Raw) == 0 {
		t.Error("raw payload must be preserved for fallback rendering")
	}
}

func TestPrepare_InvalidJSON(t *testing.T) {
	ctx, env := setupTestEnv(t)

	if _, err := Prepare(ctx, strings.NewReader("not json"), "bad.json", env.Log); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}

func TestPrepare_ReadFailure(t *testing.T) {
	ctx, env := setupTestEnv(t)

	if _, err := Prepare(ctx, failingReader{}, "stream", env.Log); err == nil {
		t.Fatal("expected a read error")
	}
}

func TestPrepare_CancelledContext(t *testing.T) {
	ctx, env := setupTestEnv(t)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Prepare(cancelled, strings.NewReader(samplePayload), "x.json", env.Log); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPrepare_WithReport(t *testing.T) {
	ctx, env := setupTestEnv(t)

	rpt, err := (&config.ReporterConfig{Destination: filepath.Join(t.TempDir(), "report.zip")}).Prepare()
	if err != nil {
		t.Fatalf("prepare report: %v", err)
	}
	env.Rpt = rpt
	defer func() {
		if err := rpt.Close(); err != nil {
			t.Errorf("close report: %v", err)
		}
	}()

	c, err := Prepare(ctx, strings.NewReader(samplePayload), filepath.Join("some", "dir", "sample.json"), env.Log)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if c.WorkDir == "" {
		t.Fatal("expected a work directory when a report is active")
	}
	raw, err := os.ReadFile(filepath.Join(c.WorkDir, "sample.json"))
	if err != nil {
		t.Fatalf("raw payload dump: %v", err)
	}
	if string(raw) != samplePayload {
		t.Error("raw dump must match the input payload")
	}
	prepared, err := os.ReadFile(filepath.Join(c.WorkDir, "sample.json_prepared"))
	if err != nil {
		t.Fatalf("prepared model dump: %v", err)
	}
	if !bytes.Contains(prepared, []byte(`"Field Notes"`)) {
		t.Error("prepared dump must describe the parsed article")
	}
}

func TestContent_PlainText(t *testing.T) {
	tests := []struct {
		name string
		c    *Content
		want string
	}{
		{"nil content", nil, ""},
		{"nil document", &Content{}, ""},
		{"plain text wins", &Content{Doc: &article.Document{PlainText: "body", PreviewText: "teaser"}}, "body"},
		{"preview fallback", &Content{Doc: &article.Document{PreviewText: "teaser"}}, "teaser"},
		{"both empty", &Content{Doc: &article.Document{}}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.PlainText(); got != tc.want {
				t.Errorf("got = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestContent_Excerpt(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Document.Excerpt.Enable = true

	c, err := Prepare(ctx, strings.NewReader(samplePayload), "sample.json", env.Log)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if c.Splitter == nil {
		t.Fatal("expected a splitter with excerpts enabled")
	}
	got := c.Excerpt(2)
	want := "First sentence here. Second sentence follows."
	if got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
}

func TestContent_ExcerptWithoutSplitter(t *testing.T) {
	c := &Content{Doc: &article.Document{PlainText: "Some text."}}
	if got := c.Excerpt(3); got != "" {
		t.Errorf("got = %q, want empty without a splitter", got)
	}
	var nilContent *Content
	if got := nilContent.Excerpt(3); got != "" {
		t.Errorf("got = %q, want empty on nil receiver", got)
	}
}

func TestContent_String(t *testing.T) {
	t.Run("nil receiver", func(t *testing.T) {
		var c *Content
		if got := c.String(); got != "<nil Content>" {
			t.Errorf("got = %q", got)
		}
	})

	t.Run("full dump", func(t *testing.T) {
		ctx, env := setupTestEnv(t)
		c, err := Prepare(ctx, strings.NewReader(samplePayload), "sample.json", env.Log)
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		c.Tweets = map[string]article.TweetInfo{
			"42": {ID: "42", Name: "User", Handle: "u", URL: "https://x.com/u/status/42", Text: "hi"},
		}
		dump := c.String()
		for _, want := range []string{
			`Article "1845" (recognized: true)`,
			`Title: "Field Notes"`,
			"Media side-table: 1",
			"https://pic/1",
			"Blocks: 2",
			`Block[0] key="h" type="header-two" depth=0`,
			"Resolved tweets: 1",
			`handle="u"`,
		} {
			if !strings.Contains(dump, want) {
				t.Errorf("dump missing %q:\n%s", want, dump)
			}
		}
	})

	t.Run("entities and ranges", func(t *testing.T) {
		c := &Content{Doc: &article.Document{
			ID: "7",
			Content: &article.ContentState{
				Blocks: []article.Block{{
					Key: "p", Type: article.BlockUnstyled, Text: "see this",
					EntityRanges: []article.EntityRange{{
						Key:    article.LooseInt{Value: 0, Valid: true},
						Offset: article.LooseInt{},
						Length: article.LooseInt{Value: 3, Valid: true},
					}},
				}},
				Entities: article.EntityMap{Entries: []article.EntityMapEntry{
					{Key: "0", HasKey: true, Entity: article.MediaEntity{
						Items:   []article.MediaItem{{MediaID: "m1"}},
						Caption: "shot",
					}},
					{Entity: article.LinkEntity{URL: "https://l"}},
					{Key: "2", HasKey: true, Entity: article.UnknownEntity{Type: "POLL"}},
				}},
			},
		}}
		dump := c.String()
		for _, want := range []string{
			"Range key=0 offset=<invalid> length=3",
			`Entity[0] key=0 MEDIA items=1`,
			`Caption: "shot"`,
			`Entity[1] key=<positional> LINK url="https://l"`,
			`Entity[2] key=2 UNKNOWN type="POLL"`,
		} {
			if !strings.Contains(dump, want) {
				t.Errorf("dump missing %q:\n%s", want, dump)
			}
		}
	})
}
