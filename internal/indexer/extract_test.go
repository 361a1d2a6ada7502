package indexer

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	part, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = part.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractPlainText(t *testing.T) {
	text, err := extractText("text/plain", []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	text, err = extractText("text/markdown", []byte("# heading"))
	require.NoError(t, err)
	assert.Equal(t, "# heading", text)
}

func TestExtractDocx(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	text, err := extractText(mimeDocx, buildDocx(t, docXML))
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.\n")
	assert.Contains(t, text, "Second paragraph.\n")
}

func TestExtractDocxMissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	part, err := w.Create("word/styles.xml")
	require.NoError(t, err)
	_, _ = part.Write([]byte("<styles/>"))
	require.NoError(t, w.Close())

	_, err = extractText(mimeDocx, buf.Bytes())
	assert.Error(t, err)
}

func TestExtractUnsupportedType(t *testing.T) {
	_, err := extractText("video/mp4", []byte{0x00})
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestExtractCorruptPDF(t *testing.T) {
	_, err := extractText(mimePDF, []byte("not a pdf"))
	assert.Error(t, err)
}
