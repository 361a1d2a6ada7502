package indexer

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MIME types accepted by the pipeline. Anything else is rejected upstream;
// reaching extractText with an unknown type is a caller bug surfaced as
// ErrUnsupportedFileType.
const (
	mimePDF  = "application/pdf"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// extractText extracts plain text from raw file bytes according to MIME
// type. Supported: text/*, JSON, PDF and DOCX.
func extractText(mimeType string, data []byte) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "text/"), mimeType == "application/json":
		return string(data), nil
	case mimeType == mimePDF:
		return extractPDF(data)
	case mimeType == mimeDocx:
		return extractDocx(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, content); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return b.String(), nil
}

// extractDocx pulls the paragraph text out of word/document.xml. DOCX is a
// zip of OOXML parts; w:t elements carry the runs and w:p closes a
// paragraph.
func extractDocx(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			document = file
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("docx missing word/document.xml")
	}

	reader, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("opening docx document part: %w", err)
	}
	defer reader.Close()

	var b strings.Builder
	decoder := xml.NewDecoder(reader)
	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing docx xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
