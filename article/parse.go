package article

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// JSON decoding for article payloads.
// We want tolerant parsing: payloads come from several GraphQL deployments
// and from files saved by older tools, and they disagree about envelopes,
// entity map shape and numeric encodings. Anything we cannot make sense of
// degrades to an unrecognized value instead of failing the conversion.

// Envelope keys the article object may hide behind, probed in order at every
// nesting level. Covers live GraphQL responses and saved dumps alike.
var envelopeKeys = []string{
	"data",
	"twitter_article_by_rest_id",
	"twitter_article",
	"article_by_rest_id",
	"article_results",
	"article",
	"result",
}

const maxEnvelopeDepth = 8

// Parse decodes an article payload. The input may be the article object
// itself or any known response envelope around it. A syntactically valid
// payload without a single article field still parses; it just reports
// !Recognized() and keeps the raw JSON for fallback rendering.
func Parse(data []byte, log *zap.Logger) (*Document, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}

	body, depth := unwrap(data)
	if depth > 0 {
		log.Debug("Unwrapped article envelope", zap.Int("levels", depth))
	}

	var payload struct {
		RestID        json.RawMessage     `json:"rest_id"`
		ID            json.RawMessage     `json:"id"`
		Title         string              `json:"title"`
		PreviewText   string              `json:"preview_text"`
		PlainText     string              `json:"plain_text"`
		CoverMedia    *MediaEntityRecord  `json:"cover_media"`
		MediaEntities []MediaEntityRecord `json:"media_entities"`
		ContentState  *ContentState       `json:"content_state"`
		ContentAlt    *ContentState       `json:"contentState"`

		// Some tools save the bare content state as the whole file.
		Blocks    []Block    `json:"blocks"`
		EntityMap *EntityMap `json:"entityMap"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Debug("Payload does not decode as an article", zap.Error(err))
		return &Document{Raw: append(json.RawMessage(nil), body...)}, nil
	}

	doc := &Document{
		ID:            firstString(payload.RestID, payload.ID),
		Title:         payload.Title,
		PreviewText:   payload.PreviewText,
		PlainText:     payload.PlainText,
		CoverMedia:    payload.CoverMedia,
		MediaEntities: payload.MediaEntities,
		Content:       payload.ContentState,
		Raw:           append(json.RawMessage(nil), body...),
	}
	if doc.Content == nil {
		doc.Content = payload.ContentAlt
	}
	if doc.Content == nil && (len(payload.Blocks) > 0 || payload.EntityMap != nil) {
		cs := &ContentState{Blocks: payload.Blocks}
		if payload.EntityMap != nil {
			cs.Entities = *payload.EntityMap
		}
		doc.Content = cs
	}
	return doc, nil
}

// unwrap peels known envelope objects off the payload and returns the bytes
// of the innermost candidate together with the number of levels descended.
func unwrap(data []byte) (json.RawMessage, int) {
	body := json.RawMessage(bytes.TrimSpace(data))
	depth := 0
	for depth < maxEnvelopeDepth {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			break
		}
		descended := false
		for _, key := range envelopeKeys {
			inner, ok := obj[key]
			if !ok {
				continue
			}
			inner = bytes.TrimSpace(inner)
			if len(inner) == 0 || inner[0] != '{' {
				continue
			}
			body = inner
			depth++
			descended = true
			break
		}
		if !descended {
			break
		}
	}
	return body, depth
}

// UnmarshalJSON accepts both serializations of the entity side-table: a JSON
// object keyed by stringified indexes and an array of {key, value} pairs.
// Declaration order is preserved either way, which matters because entries
// are also addressable by position.
func (m *EntityMap) UnmarshalJSON(data []byte) error {
	m.Entries = nil
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	switch delim {
	case '{':
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := keyTok.(string)
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			m.Entries = append(m.Entries, EntityMapEntry{Key: key, HasKey: true, Entity: decodeEntity(raw)})
		}
	case '[':
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			m.Entries = append(m.Entries, decodeMapElement(raw))
		}
	}
	return nil
}

// decodeMapElement handles one element of the array-form entity map. The
// entity sits under "value" when the pair wrapper is present, otherwise the
// element is the entity itself.
func decodeMapElement(raw json.RawMessage) EntityMapEntry {
	var wrap struct {
		Key   json.RawMessage `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	entry := EntityMapEntry{Entity: UnknownEntity{}}
	if err := json.Unmarshal(raw, &wrap); err != nil {
		return entry
	}
	if key, ok := looseString(wrap.Key); ok {
		entry.Key, entry.HasKey = key, true
	}
	body := raw
	if len(bytes.TrimSpace(wrap.Value)) > 0 {
		body = wrap.Value
	}
	entry.Entity = decodeEntity(body)
	return entry
}

// decodeEntity turns a single entity-map value into its concrete variant.
// Entities of unexpected type or shape become UnknownEntity so that a single
// bad entry never poisons the rest of the map.
func decodeEntity(raw json.RawMessage) Entity {
	var head struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return UnknownEntity{}
	}
	body := head.Data
	if len(bytes.TrimSpace(body)) == 0 {
		body = raw
	}
	switch strings.ToUpper(head.Type) {
	case "MEDIA", "IMAGE":
		var data struct {
			MediaItems  []MediaItem `json:"mediaItems"`
			Caption     string      `json:"caption"`
			FallbackURL string      `json:"url"`
		}
		if err := json.Unmarshal(body, &data); err != nil {
			return UnknownEntity{Type: head.Type}
		}
		return MediaEntity{Items: data.MediaItems, Caption: data.Caption, FallbackURL: data.FallbackURL}
	case "LINK":
		var data struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(body, &data); err != nil {
			return UnknownEntity{Type: head.Type}
		}
		return LinkEntity{URL: data.URL}
	case "TWEET":
		var data struct {
			TweetID json.RawMessage `json:"tweetId"`
		}
		if err := json.Unmarshal(body, &data); err != nil {
			return UnknownEntity{Type: head.Type}
		}
		id, _ := looseString(data.TweetID)
		return TweetEntity{TweetID: id}
	default:
		return UnknownEntity{Type: head.Type}
	}
}

// LooseInt is an integer that decodes from a JSON number, a stringified
// number, or survives anything else as invalid. Range annotations need this:
// a single garbage offset must drop one range, not the document.
type LooseInt struct {
	Value int
	Valid bool
}

func (l *LooseInt) UnmarshalJSON(data []byte) error {
	l.Value, l.Valid = 0, false
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	switch n := v.(type) {
	case json.Number:
		l.Value, l.Valid = looseAtoi(n.String())
	case string:
		l.Value, l.Valid = looseAtoi(strings.TrimSpace(n))
	}
	return nil
}

func looseAtoi(s string) (int, bool) {
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return int(f), true
	}
	return 0, false
}

// looseString extracts a string from a raw value that may be a JSON string
// or a number. IDs in these payloads flip between the two encodings.
func looseString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func firstString(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if s, ok := looseString(raw); ok && s != "" {
			return s
		}
	}
	return ""
}
