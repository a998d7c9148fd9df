package article

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestParseEnvelopes(t *testing.T) {
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))

	t.Run("graphql response envelope", func(t *testing.T) {
		payload := `{"data":{"twitter_article_by_rest_id":{"rest_id":"175","title":"Hello","content_state":{"blocks":[{"key":"b1","text":"hi","type":"unstyled"}],"entityMap":{}}}}}`
		doc, err := Parse([]byte(payload), log)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if doc.ID != "175" {
			t.Fatalf("id = %q, want %q", doc.ID, "175")
		}
		if doc.Title != "Hello" {
			t.Fatalf("title = %q, want %q", doc.Title, "Hello")
		}
		if doc.Content == nil || len(doc.Content.Blocks) != 1 {
			t.Fatalf("expected 1 block, got %+v", doc.Content)
		}
		if !doc.Recognized() {
			t.Fatalf("document should be recognized")
		}
	})

	t.Run("nested article_results result", func(t *testing.T) {
		payload := `{"data":{"article_results":{"result":{"title":"Nested","id":42}}}}`
		doc, err := Parse([]byte(payload), log)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if doc.Title != "Nested" {
			t.Fatalf("title = %q, want %q", doc.Title, "Nested")
		}
		if doc.ID != "42" {
			t.Fatalf("id = %q, want %q (numeric ids must decode)", doc.ID, "42")
		}
	})

	t.Run("bare article object", func(t *testing.T) {
		payload := `{"title":"Plain","preview_text":"teaser"}`
		doc, err := Parse([]byte(payload), log)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if doc.Title != "Plain" || doc.PreviewText != "teaser" {
			t.Fatalf("unexpected doc: %+v", doc)
		}
	})

	t.Run("bare content state", func(t *testing.T) {
		payload := `{"blocks":[{"key":"a","text":"x","type":"unstyled"}],"entityMap":{}}`
		doc, err := Parse([]byte(payload), log)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if doc.Content == nil || len(doc.Content.Blocks) != 1 {
			t.Fatalf("expected bare content state to be adopted, got %+v", doc.Content)
		}
	})

	t.Run("empty object is kept for fallback", func(t *testing.T) {
		doc, err := Parse([]byte(`{}`), log)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if doc.Recognized() {
			t.Fatalf("empty object must not be recognized")
		}
		if string(doc.Raw) != `{}` {
			t.Fatalf("raw = %q, want %q", doc.Raw, `{}`)
		}
	})

	t.Run("array payload degrades instead of failing", func(t *testing.T) {
		doc, err := Parse([]byte(`[1,2,3]`), log)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if doc.Recognized() {
			t.Fatalf("array payload must not be recognized")
		}
		if string(doc.Raw) != `[1,2,3]` {
			t.Fatalf("raw = %q", doc.Raw)
		}
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		if _, err := Parse([]byte(`{"title":`), log); err == nil {
			t.Fatalf("expected error for truncated JSON")
		}
	})
}

func TestEntityMapShapes(t *testing.T) {
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))

	t.Run("object form keeps declaration order", func(t *testing.T) {
		payload := `{"content_state":{"blocks":[],"entityMap":{"2":{"type":"LINK","data":{"url":"https://a"}},"0":{"type":"LINK","data":{"url":"https://b"}}}}}`
		doc, err := Parse([]byte(payload), log)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		entries := doc.Content.Entities.Entries
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Key != "2" || entries[1].Key != "0" {
			t.Fatalf("declaration order lost: %q, %q", entries[0].Key, entries[1].Key)
		}
		first, ok := entries[0].Entity.(LinkEntity)
		if !ok || first.URL != "https://a" {
			t.Fatalf("first entry = %#v", entries[0].Entity)
		}
	})

	t.Run("array form with key value pairs", func(t *testing.T) {
		payload := `{"content_state":{"blocks":[],"entityMap":[{"key":"5","value":{"type":"TWEET","data":{"tweetId":"99"}}},{"key":3,"value":{"type":"LINK","data":{"url":"https://c"}}}]}}`
		doc, err := Parse([]byte(payload), log)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		entries := doc.Content.Entities.Entries
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Key != "5" || !entries[0].HasKey {
			t.Fatalf("first key = %q", entries[0].Key)
		}
		if entries[1].Key != "3" {
			t.Fatalf("numeric keys must decode to their decimal form, got %q", entries[1].Key)
		}
		tweet, ok := entries[0].Entity.(TweetEntity)
		if !ok || tweet.TweetID != "99" {
			t.Fatalf("first entity = %#v", entries[0].Entity)
		}
	})

	t.Run("array form without wrapper", func(t *testing.T) {
		payload := `{"content_state":{"blocks":[],"entityMap":[{"type":"LINK","data":{"url":"https://d"}}]}}`
		doc, err := Parse([]byte(payload), log)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		entries := doc.Content.Entities.Entries
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		if entries[0].HasKey {
			t.Fatalf("entry without key must report HasKey=false")
		}
		link, ok := entries[0].Entity.(LinkEntity)
		if !ok || link.URL != "https://d" {
			t.Fatalf("entity = %#v", entries[0].Entity)
		}
	})
}

func TestDecodeEntityVariants(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want func(Entity) bool
	}{
		{
			name: "media with items and caption",
			in:   `{"type":"MEDIA","data":{"mediaItems":[{"mediaId":"m1"},{"mediaId":"m2"}],"caption":"two shots"}}`,
			want: func(e Entity) bool {
				m, ok := e.(MediaEntity)
				return ok && len(m.Items) == 2 && m.Items[0].MediaID == "m1" && m.Caption == "two shots"
			},
		},
		{
			name: "image treated as media",
			in:   `{"type":"IMAGE","data":{"mediaItems":[{"mediaId":"m3"}],"url":"https://fallback"}}`,
			want: func(e Entity) bool {
				m, ok := e.(MediaEntity)
				return ok && m.FallbackURL == "https://fallback"
			},
		},
		{
			name: "lowercase link",
			in:   `{"type":"link","data":{"url":"https://e"}}`,
			want: func(e Entity) bool {
				l, ok := e.(LinkEntity)
				return ok && l.URL == "https://e"
			},
		},
		{
			name: "tweet with numeric id",
			in:   `{"type":"TWEET","data":{"tweetId":1844440000000000000}}`,
			want: func(e Entity) bool {
				tw, ok := e.(TweetEntity)
				return ok && tw.TweetID == "1844440000000000000"
			},
		},
		{
			name: "unknown type preserved",
			in:   `{"type":"POLL","data":{}}`,
			want: func(e Entity) bool {
				u, ok := e.(UnknownEntity)
				return ok && u.Type == "POLL"
			},
		},
		{
			name: "data fields inlined",
			in:   `{"type":"LINK","url":"https://inline"}`,
			want: func(e Entity) bool {
				l, ok := e.(LinkEntity)
				return ok && l.URL == "https://inline"
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeEntity([]byte(tc.in))
			if !tc.want(got) {
				t.Fatalf("decodeEntity(%s) = %#v", tc.in, got)
			}
		})
	}
}

func TestLooseInt(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		value int
		valid bool
	}{
		{"number", `{"key":3}`, 3, true},
		{"stringified", `{"key":"7"}`, 7, true},
		{"float with integral value", `{"key":4.0}`, 4, true},
		{"fractional", `{"key":4.5}`, 0, false},
		{"garbage string", `{"key":"abc"}`, 0, false},
		{"null", `{"key":null}`, 0, false},
		{"missing", `{}`, 0, false},
		{"object", `{"key":{"x":1}}`, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var r EntityRange
			if err := json.Unmarshal([]byte(tc.in), &r); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if r.Key.Valid != tc.valid || r.Key.Value != tc.value {
				t.Fatalf("got {%d %v}, want {%d %v}", r.Key.Value, r.Key.Valid, tc.value, tc.valid)
			}
		})
	}
}

func TestMediaRecordLookup(t *testing.T) {
	doc := &Document{
		CoverMedia: &MediaEntityRecord{MediaID: "cover"},
		MediaEntities: []MediaEntityRecord{
			{MediaID: "a"},
			{MediaID: "b"},
		},
	}
	if rec := doc.MediaRecord("b"); rec == nil || rec.MediaID != "b" {
		t.Fatalf("lookup b = %+v", rec)
	}
	if rec := doc.MediaRecord("cover"); rec == nil {
		t.Fatalf("cover record must be reachable by id")
	}
	if rec := doc.MediaRecord("nope"); rec != nil {
		t.Fatalf("unknown id must return nil, got %+v", rec)
	}
	if rec := doc.MediaRecord(""); rec != nil {
		t.Fatalf("empty id must return nil, got %+v", rec)
	}
}
