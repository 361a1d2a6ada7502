package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWordChunker builds a Chunker with the whitespace-fallback counter so
// tests count tokens deterministically (1 token == 1 word) without the BPE
// encoding files.
func newWordChunker(t *testing.T, cfg *Config) *Chunker {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	c.counter = &tokenCounter{}
	return c
}

// sentence builds a sentence of exactly n words, tagged so tests can locate
// it in the output.
func sentence(tag string, n int) string {
	words := make([]string, n)
	words[0] = tag
	for i := 1; i < n; i++ {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ") + "."
}

func lastWords(s string, n int) string {
	words := strings.Fields(s)
	return strings.Join(words[len(words)-n:], " ")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "defaults", config: NewDefaultConfig(), wantErr: false},
		{name: "zero target", config: &Config{TargetTokens: 0, MinChunkTokens: 0, OverlapFraction: 0}, wantErr: true},
		{name: "min at target", config: &Config{TargetTokens: 100, MinChunkTokens: 100, OverlapFraction: 0}, wantErr: true},
		{name: "negative overlap", config: &Config{TargetTokens: 100, MinChunkTokens: 10, OverlapFraction: -0.1}, wantErr: true},
		{name: "overlap of one", config: &Config{TargetTokens: 100, MinChunkTokens: 10, OverlapFraction: 1.0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c := newWordChunker(t, nil)

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  \r\n "))
}

func TestChunkShortTextIsIdentity(t *testing.T) {
	c := newWordChunker(t, nil)

	text := "The quick brown fox jumps over the lazy dog. It was not amused."
	chunks := c.Chunk(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])

	// Re-chunking a chunk under the budget yields it back unchanged.
	again := c.Chunk(chunks[0])
	require.Len(t, again, 1)
	assert.Equal(t, chunks[0], again[0])
}

func TestBoilerplateRemoval(t *testing.T) {
	c := newWordChunker(t, nil)

	header := "ACME Corp Confidential"
	var b strings.Builder
	for i := 0; i < 3; i++ {
		b.WriteString(header + "\n")
		b.WriteString(sentence(fmt.Sprintf("page%d", i), 12) + "\n")
	}
	b.WriteString("Appears twice only\nAppears twice only\n")

	joined := strings.Join(c.Chunk(b.String()), " ")
	assert.NotContains(t, joined, header, "line recurring three times is noise")
	assert.Contains(t, joined, "Appears twice only", "two occurrences are kept")
	assert.Contains(t, joined, "page0")
	assert.Contains(t, joined, "page2")
}

func TestCodeBlockKeptVerbatim(t *testing.T) {
	c := newWordChunker(t, nil)

	code := "```go\nfunc main() {\n\tfmt.Println(\"hi. there! ok?\")\n}\n```"
	text := sentence("before", 20) + "\n" + code + "\n" + sentence("after", 20)

	chunks := c.Chunk(text)

	var codeChunks int
	for _, ch := range chunks {
		if ch == code {
			codeChunks++
		}
	}
	assert.Equal(t, 1, codeChunks, "code block appears verbatim in exactly one chunk")
}

func TestOversizedSentenceKeptWhole(t *testing.T) {
	c := newWordChunker(t, &Config{TargetTokens: 50, MinChunkTokens: 10, OverlapFraction: 0.1})

	// 200 words, no terminal punctuation: one sentence over the budget.
	big := strings.Repeat("lorem ipsum dolor sit ", 50)
	chunks := c.Chunk(big)
	require.Len(t, chunks, 1)
	assert.Equal(t, 200, len(strings.Fields(chunks[0])))
}

func TestSmallTrailingChunkMergesBack(t *testing.T) {
	c := newWordChunker(t, &Config{TargetTokens: 100, MinChunkTokens: 50, OverlapFraction: 0})

	text := sentence("one", 90) + " " + sentence("two", 90) + " " + sentence("three", 30)
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "one")
	assert.Contains(t, chunks[1], "two")
	assert.Contains(t, chunks[1], "three", "30-token tail folds into the previous chunk")
}

func TestAdjacentChunksOverlap(t *testing.T) {
	c := newWordChunker(t, &Config{TargetTokens: 100, MinChunkTokens: 0, OverlapFraction: 0.2})

	text := sentence("first", 100) + " " + sentence("second", 100)
	chunks := c.Chunk(text)

	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[1], lastWords(chunks[0], 20)),
		"second chunk starts with the last 20%% of the first chunk's tokens")
}

func TestLargeDocumentWithCodeBlock(t *testing.T) {
	c := newWordChunker(t, nil)

	codeWords := make([]string, 50)
	for i := range codeWords {
		codeWords[i] = fmt.Sprintf("stmt_%d()", i)
	}
	code := "```\n" + strings.Join(codeWords, "\n") + "\n```"

	// 300 sentences of 10 words each: a 3000-token document.
	var parts []string
	for i := 0; i < 150; i++ {
		parts = append(parts, sentence(fmt.Sprintf("s%d", i), 10))
	}
	text := strings.Join(parts, " ") + "\n" + code + "\n"
	parts = parts[:0]
	for i := 150; i < 300; i++ {
		parts = append(parts, sentence(fmt.Sprintf("s%d", i), 10))
	}
	text += strings.Join(parts, " ")

	chunks := c.Chunk(text)

	var codeChunks, textChunks int
	for _, ch := range chunks {
		if ch == code {
			codeChunks++
			continue
		}
		textChunks++
		// Budget plus the 15% overlap allowance.
		assert.LessOrEqual(t, len(strings.Fields(ch)), 1150, "chunk within budget plus overlap")
	}
	assert.Equal(t, 1, codeChunks, "exactly one chunk is the code block")
	assert.GreaterOrEqual(t, textChunks, 3)

	joined := strings.Join(chunks, " ")
	assert.Contains(t, joined, "s0 ")
	assert.Contains(t, joined, "s149 ")
	assert.Contains(t, joined, "s299 ")
}
