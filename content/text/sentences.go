// Package text holds helpers for working with article plain text.
package text

import (
	"iter"
	"strings"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
)

type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

// NewSplitter returns sentence splitter for article text. Long-form articles
// are presently English only and tokenizer training data is compiled in.
func NewSplitter(log *zap.Logger) *Splitter {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentence tokenizer data, turning off sentence splitting", zap.Error(err))
		return nil
	}
	return &Splitter{tok}
}

// Split returns slice of sentences.
// For memory-efficient streaming, use Sentences iterator instead.
func (s *Splitter) Split(in string) []string {

	var sentences []string
	if s == nil {
		// sentenses tokenizer is off
		return append(sentences, in)
	}

	for _, sentence := range s.Tokenize(in) {
		sentences = append(sentences, sentence.Text)
	}

	// Sentences tokenizer has a funny way of working - sentence trailing
	// spaces belong to the next sentence. Joining such sentences back would
	// produce mangled spacing. I do not want to change external
	// "github.com/neurosnap/sentences" module - will do careful inplace
	// mockery right here instead.

	for i := range len(sentences) - 1 {
		for idx, sym := range sentences[i+1] {
			if !unicode.IsSpace(sym) {
				sentences[i] = sentences[i] + sentences[i+1][0:idx]
				sentences[i+1] = sentences[i+1][idx:]
				break
			}
		}
	}
	return sentences
}

// Sentences returns an iterator over sentences.
// This is more memory-efficient than Split for large texts as it doesn't
// allocate a slice for all sentences upfront. The iterator applies the same
// space-trimming logic as Split.
func (s *Splitter) Sentences(in string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if s == nil {
			yield(in)
			return
		}

		sentences := s.Tokenize(in)
		if len(sentences) == 0 {
			return
		}

		for i := 0; i < len(sentences)-1; i++ {
			text := sentences[i].Text

			// move leading spaces from the next sentence to the current one,
			// same as Split does

			nextText := sentences[i+1].Text
			for idx, sym := range nextText {
				if !unicode.IsSpace(sym) {
					text = text + nextText[0:idx]
					sentences[i+1].Text = nextText[idx:]
					break
				}
			}
			if !yield(text) {
				return
			}
		}
		// Yield the last sentence
		if len(sentences) > 0 {
			yield(sentences[len(sentences)-1].Text)
		}
	}
}

// First joins up to n leading sentences of in, collapsing runs of white space.
// Zero or negative n returns an empty string.
func (s *Splitter) First(in string, n int) string {
	if n <= 0 {
		return ""
	}

	var (
		b     strings.Builder
		count int
	)
	for sentence := range s.Sentences(in) {
		sentence = strings.Join(strings.Fields(sentence), " ")
		if len(sentence) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
		count++
		if count >= n {
			break
		}
	}
	return b.String()
}
