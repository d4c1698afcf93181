// Package chunker splits parsed page text into retrieval-sized chunks along
// sentence boundaries, with a small sentence overlap so answers spanning a
// boundary still retrieve coherent context.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

type Chunker struct {
	maxChars         int
	overlapSentences int
}

func New(maxChars, overlapSentences int) *Chunker {
	if maxChars <= 0 {
		maxChars = 1000
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	return &Chunker{
		maxChars:         maxChars,
		overlapSentences: overlapSentences,
	}
}

// Split returns the chunks of text, each at most maxChars long except when a
// single sentence exceeds the budget, in which case it is hard-split. Empty
// or whitespace-only input yields no chunks.
func (c *Chunker) Split(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, err
	}

	var sentences []string
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			sentences = append(sentences, t)
		}
	}
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, " "))

		// Carry the tail sentences into the next chunk.
		overlapStart := len(current) - c.overlapSentences
		if overlapStart < 0 {
			overlapStart = 0
		}
		carried := current[overlapStart:]
		current = make([]string, len(carried))
		copy(current, carried)
		currentLen = 0
		for _, s := range current {
			currentLen += len(s) + 1
		}
	}

	for _, sentence := range sentences {
		if len(sentence) > c.maxChars {
			flush()
			current = nil
			currentLen = 0
			for _, piece := range hardSplit(sentence, c.maxChars) {
				chunks = append(chunks, piece)
			}
			continue
		}

		if currentLen+len(sentence)+1 > c.maxChars && len(current) > 0 {
			flush()
			// The overlap alone may already exceed the budget with the new
			// sentence; drop it rather than loop forever.
			if currentLen+len(sentence)+1 > c.maxChars {
				current = nil
				currentLen = 0
			}
		}

		current = append(current, sentence)
		currentLen += len(sentence) + 1
	}

	if len(current) > 0 {
		// Avoid emitting a trailing chunk that is pure overlap of the
		// previous one.
		tail := strings.Join(current, " ")
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], tail) {
			chunks = append(chunks, tail)
		}
	}

	return chunks, nil
}

// hardSplit cuts an oversize sentence into pieces of at most size bytes,
// backing cuts up to rune boundaries so multi-byte text is never torn.
func hardSplit(s string, size int) []string {
	var pieces []string
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			// A single rune wider than the budget; take it whole.
			_, cut = utf8.DecodeRuneInString(s)
		}
		pieces = append(pieces, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}
