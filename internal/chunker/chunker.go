// Package chunker splits raw document text into bounded, overlapping chunks
// suitable for embedding and retrieval.
//
// Chunking is sentence-based and token-aware: sentences are accumulated
// greedily until the target token budget is reached, adjacent chunks share a
// token-span overlap for context continuity, and fenced code blocks are kept
// verbatim as standalone chunks so code is never split mid-block.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTargetTokens is the token budget per chunk.
	DefaultTargetTokens = 1000

	// DefaultMinChunkTokens is the threshold below which a closed chunk is
	// merged back into its predecessor.
	DefaultMinChunkTokens = 200

	// DefaultOverlapFraction is the share of a closed chunk's token span
	// carried into the next chunk.
	DefaultOverlapFraction = 0.15

	// Lines shorter than this that recur more than twice in a document are
	// treated as repeated header/footer noise and stripped before chunking.
	boilerplateMaxChars  = 200
	boilerplateMaxRepeat = 2
)

var (
	fencedCodeBlock = regexp.MustCompile("(?s)```.*?```")

	// Sentence boundaries: terminal punctuation followed by whitespace, or a
	// newline. No lookbehind in RE2, so boundaries are located by index and
	// the punctuation stays attached to its sentence.
	sentenceBoundary = regexp.MustCompile(`[.!?]+\s+|\n+`)
)

// Config holds chunking parameters.
type Config struct {
	TargetTokens    int
	MinChunkTokens  int
	OverlapFraction float64
}

// NewDefaultConfig returns chunking defaults tuned for embedding models with
// an ~8k token context.
func NewDefaultConfig() *Config {
	return &Config{
		TargetTokens:    DefaultTargetTokens,
		MinChunkTokens:  DefaultMinChunkTokens,
		OverlapFraction: DefaultOverlapFraction,
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.TargetTokens <= 0 {
		return fmt.Errorf("target tokens must be positive, got %d", c.TargetTokens)
	}
	if c.MinChunkTokens < 0 || c.MinChunkTokens >= c.TargetTokens {
		return fmt.Errorf("min chunk tokens must be in [0, %d), got %d", c.TargetTokens, c.MinChunkTokens)
	}
	if c.OverlapFraction < 0 || c.OverlapFraction >= 1 {
		return fmt.Errorf("overlap fraction must be in [0, 1), got %f", c.OverlapFraction)
	}
	return nil
}

// Chunker splits text into token-bounded chunks. Safe for concurrent use.
type Chunker struct {
	config  *Config
	counter *tokenCounter
}

// Option customizes a Chunker.
type Option func(*Chunker)

// WithWordCounting forces the whitespace word counter instead of the BPE
// tokenizer. Useful where the encoding files are unavailable and in tests
// that need deterministic token counts.
func WithWordCounting() Option {
	return func(c *Chunker) {
		c.counter = &tokenCounter{}
	}
}

// New creates a Chunker from config.
func New(config *Config, opts ...Option) (*Chunker, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c := &Chunker{config: config}
	for _, opt := range opts {
		opt(c)
	}
	if c.counter == nil {
		c.counter = newTokenCounter()
	}
	return c, nil
}

// chunk is an intermediate chunk during assembly.
type chunk struct {
	text   string
	tokens int
	isCode bool
}

// Chunk splits text into an ordered list of chunks. Empty or whitespace-only
// input yields nil. Chunk never fails: tokenizer errors degrade to word
// counting, and a single sentence over the token budget is kept as one
// oversized chunk rather than split mid-sentence.
func (c *Chunker) Chunk(text string) []string {
	text = normalizeLineEndings(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// Code blocks come out before boilerplate removal so repeated lines
	// inside a fence are preserved verbatim.
	text, codeBlocks := extractCodeBlocks(text)
	text = removeBoilerplate(text)

	sentences := splitSentences(text)

	chunks := c.assemble(sentences, codeBlocks)
	chunks = c.mergeSmall(chunks)

	out := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		txt := ch.text
		if ch.isCode {
			txt = codeBlocks[ch.text]
		}
		if strings.TrimSpace(txt) == "" {
			continue
		}
		out = append(out, txt)
	}
	return out
}

// assemble greedily packs sentences into chunks under the token budget,
// seeding each successor with the closed chunk's token-span tail. A code
// placeholder closes the open chunk and becomes a standalone chunk.
func (c *Chunker) assemble(sentences []string, codeBlocks map[string]string) []chunk {
	var chunks []chunk
	var current []string
	currentTokens := 0

	flush := func(seedOverlap bool) {
		if len(current) == 0 {
			return
		}
		text := strings.Join(current, " ")
		chunks = append(chunks, chunk{text: text, tokens: c.counter.Count(text)})
		current = current[:0]
		currentTokens = 0
		if seedOverlap {
			if tail := c.counter.Tail(text, c.config.OverlapFraction); tail != "" {
				current = append(current, tail)
				currentTokens = c.counter.Count(tail)
			}
		}
	}

	for _, sentence := range sentences {
		if _, ok := codeBlocks[sentence]; ok {
			flush(false)
			chunks = append(chunks, chunk{text: sentence, isCode: true})
			continue
		}

		tokens := c.counter.Count(sentence)
		if currentTokens > 0 && currentTokens+tokens > c.config.TargetTokens {
			flush(true)
		}
		current = append(current, sentence)
		currentTokens += tokens
	}
	flush(false)

	return chunks
}

// mergeSmall folds chunks below the minimum token count into their
// predecessor. The first chunk and code chunks are exempt, and nothing is
// ever merged into a code chunk.
func (c *Chunker) mergeSmall(chunks []chunk) []chunk {
	out := make([]chunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.isCode {
			out = append(out, ch)
			continue
		}
		if len(out) > 0 && !out[len(out)-1].isCode && ch.tokens < c.config.MinChunkTokens {
			prev := &out[len(out)-1]
			prev.text = prev.text + " " + ch.text
			prev.tokens += ch.tokens
			continue
		}
		out = append(out, ch)
	}
	return out
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// extractCodeBlocks replaces each fenced code block with a unique placeholder
// on its own line and returns the placeholder -> original block mapping.
func extractCodeBlocks(text string) (string, map[string]string) {
	blocks := make(map[string]string)
	i := 0
	replaced := fencedCodeBlock.ReplaceAllStringFunc(text, func(block string) string {
		placeholder := fmt.Sprintf("{{code-block-%d}}", i)
		blocks[placeholder] = block
		i++
		return "\n" + placeholder + "\n"
	})
	return replaced, blocks
}

// removeBoilerplate strips short lines that recur more than twice, the
// signature of repeated headers, footers and page furniture.
func removeBoilerplate(text string) string {
	lines := strings.Split(text, "\n")

	counts := make(map[string]int, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		counts[trimmed]++
	}

	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" &&
			utf8.RuneCountInString(trimmed) < boilerplateMaxChars &&
			counts[trimmed] > boilerplateMaxRepeat {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// splitSentences splits text on terminal punctuation or newlines, keeping
// punctuation attached and dropping empty segments.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
