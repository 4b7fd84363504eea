// Package tags derives searchable labels from generated captions. Extraction
// is total: any input, including empty, oversized, or non-English text,
// yields an ordered set of tags without failing.
package tags

import (
	"strings"
	"unicode"
	"unicode/utf8"

	prose "github.com/jdkato/prose/v2"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
)

const (
	// Captions are truncated before any NLP work to bound cost.
	maxCaptionLen = 1000
	minTagLen     = 2
	minNounLen    = 3
)

// Generic vision terms that carry no search value as tags.
var genericTerms = map[string]struct{}{
	"image":      {},
	"picture":    {},
	"photo":      {},
	"photograph": {},
	"thing":      {},
	"things":     {},
	"stuff":      {},
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "by": {}, "to": {},
	"for": {}, "from": {}, "with": {}, "without": {}, "as": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "it": {}, "its": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "there": {}, "here": {}, "some": {},
	"any": {}, "both": {}, "each": {}, "few": {}, "more": {},
	"most": {}, "other": {}, "such": {}, "only": {}, "own": {},
	"same": {}, "so": {}, "than": {}, "too": {}, "very": {},
	"not": {}, "no": {}, "nor": {}, "over": {}, "under": {},
	"into": {}, "onto": {}, "near": {}, "while": {},
}

// Extractor pulls noun phrases and standalone nouns out of captions using
// part-of-speech tagging, then applies the cleaning policy: lower-case,
// lemmatize, drop determiners/pronouns/stop-words/punctuation, drop generic
// vision terms, drop short tokens, deduplicate preserving first-seen order.
type Extractor struct {
	logger    *zap.Logger
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewExtractor(logger *zap.Logger) *Extractor {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		logger.Warn("Sentence tokenizer unavailable, long captions will be hard-cut", zap.Error(err))
		tokenizer = nil
	}
	return &Extractor{logger: logger, tokenizer: tokenizer}
}

// Extract never fails; on any internal error it returns an empty tag set.
func (e *Extractor) Extract(caption string) (tags []string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Tag extraction panicked", zap.Any("error", r))
			tags = nil
		}
	}()

	caption = strings.TrimSpace(caption)
	if caption == "" {
		return nil
	}
	if len(caption) > maxCaptionLen {
		caption = e.truncate(caption)
	}

	doc, err := prose.NewDocument(caption, prose.WithExtraction(false))
	if err != nil {
		e.logger.Warn("Failed to tag caption",
			zap.String("caption", head(caption, 50)),
			zap.Error(err),
		)
		return nil
	}

	seen := map[string]struct{}{}
	add := func(tag string) {
		if len(tag) < minTagLen {
			return
		}
		if _, generic := genericTerms[tag]; generic {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	var chunk []chunkToken
	flush := func() {
		emitChunk(chunk, add)
		chunk = chunk[:0]
	}

	for _, tok := range doc.Tokens() {
		if !isNounTag(tok.Tag) && !isAdjectiveTag(tok.Tag) {
			flush()
			continue
		}
		lemma := lemmatize(strings.ToLower(tok.Text))
		if !isWord(lemma) || isStopword(lemma) || len(lemma) < minTagLen {
			flush()
			continue
		}
		chunk = append(chunk, chunkToken{lemma: lemma, noun: isNounTag(tok.Tag)})
	}
	flush()

	return tags
}

type chunkToken struct {
	lemma string
	noun  bool
}

// emitChunk adds the joined noun phrase followed by its individual nouns.
// Trailing adjectives never end a phrase.
func emitChunk(chunk []chunkToken, add func(string)) {
	for len(chunk) > 0 && !chunk[len(chunk)-1].noun {
		chunk = chunk[:len(chunk)-1]
	}
	if len(chunk) == 0 {
		return
	}

	parts := make([]string, len(chunk))
	for i, tok := range chunk {
		parts[i] = tok.lemma
	}
	add(strings.Join(parts, " "))

	for _, tok := range chunk {
		if tok.noun && len(tok.lemma) >= minNounLen {
			add(tok.lemma)
		}
	}
}

// truncate cuts the caption to maxCaptionLen, keeping whole sentences when
// the tokenizer can find a boundary that fits.
func (e *Extractor) truncate(caption string) string {
	if e.tokenizer != nil {
		var b strings.Builder
		for _, sentence := range e.tokenizer.Tokenize(caption) {
			if b.Len()+len(sentence.Text) > maxCaptionLen {
				break
			}
			b.WriteString(sentence.Text)
		}
		if b.Len() > 0 {
			return strings.TrimSpace(b.String())
		}
	}

	cut := caption[:maxCaptionLen]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func isNounTag(tag string) bool {
	return strings.HasPrefix(tag, "NN")
}

func isAdjectiveTag(tag string) bool {
	return strings.HasPrefix(tag, "JJ")
}

func isStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// lemmatize strips common English plural suffixes. Caption nouns rarely
// need more than plural folding.
func lemmatize(word string) string {
	switch {
	case strings.HasSuffix(word, "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "xes"), strings.HasSuffix(word, "ches"),
		strings.HasSuffix(word, "shes"), strings.HasSuffix(word, "zes"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ss"), strings.HasSuffix(word, "us"),
		strings.HasSuffix(word, "is"):
		return word
	case strings.HasSuffix(word, "s") && len(word) > 3:
		return word[:len(word)-1]
	default:
		return word
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
