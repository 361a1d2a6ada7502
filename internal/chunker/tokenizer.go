package chunker

import (
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter counts tokens with the cl100k_base encoding used by the
// OpenAI embedding models. When the encoding cannot be loaded (e.g. offline
// environments) it degrades to whitespace word counting, which overestimates
// chunk capacity slightly but keeps chunking functional.
type tokenCounter struct {
	enc *tiktoken.Tiktoken
}

func newTokenCounter() *tokenCounter {
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		return &tokenCounter{}
	}
	return &tokenCounter{enc: enc}
}

// Count returns the token count for text. Tokenizer failures fall back to
// word counting rather than propagating.
func (t *tokenCounter) Count(text string) (n int) {
	if t.enc == nil {
		return len(strings.Fields(text))
	}
	defer func() {
		if recover() != nil {
			n = len(strings.Fields(text))
		}
	}()
	return len(t.enc.Encode(text, nil, nil))
}

// Tail returns the text spanned by the last fraction of text's tokens,
// decoded back to a string. Returns "" when the tail would be empty or would
// cover the whole input.
func (t *tokenCounter) Tail(text string, fraction float64) string {
	if fraction <= 0 {
		return ""
	}

	if t.enc == nil {
		words := strings.Fields(text)
		n := int(math.Ceil(fraction * float64(len(words))))
		if n <= 0 || n >= len(words) {
			return ""
		}
		return strings.Join(words[len(words)-n:], " ")
	}

	tokens := t.enc.Encode(text, nil, nil)
	n := int(math.Ceil(fraction * float64(len(tokens))))
	if n <= 0 || n >= len(tokens) {
		return ""
	}
	return strings.TrimSpace(t.enc.Decode(tokens[len(tokens)-n:]))
}
