package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrEmptyDocument is returned when extraction succeeds but yields no text.
// Ingestion aborts before any chunk is produced.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// ExtractionError wraps unreadable or unsupported content.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ExtractText converts raw document bytes into plain text, dispatching on the
// file extension. Unknown formats go through a generic text fallback.
func ExtractText(data []byte, filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	var (
		text string
		err  error
	)
	switch ext {
	case "pdf":
		text, err = extractPDF(data)
	case "doc", "docx":
		text, err = extractDOCX(data)
	case "txt", "md", "markdown":
		text = string(data)
	default:
		text = extractFallback(data)
	}
	if err != nil {
		return "", &ExtractionError{Filename: filename, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &ExtractionError{Filename: filename, Err: ErrEmptyDocument}
	}
	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// The text decoder chokes on some malformed files with a panic rather
	// than an error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf decode: %v", r)
		}
	}()

	if err := pdfapi.Validate(bytes.NewReader(data), nil); err != nil {
		return "", fmt.Errorf("invalid pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractDOCX reads word/document.xml out of the docx archive and collects
// the text runs, one line per paragraph.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("open document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("docx has no word/document.xml")
	}
	defer docXML.Close()

	var (
		sb     strings.Builder
		inText bool
	)
	decoder := xml.NewDecoder(docXML)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// extractFallback keeps whatever decodes as printable UTF-8 and drops the
// rest. It is the last resort for formats without a dedicated parser.
func extractFallback(data []byte) string {
	var sb strings.Builder
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if unicode.IsGraphic(r) || r == '\n' || r == '\t' {
			sb.WriteRune(r)
		} else if r == '\r' {
			sb.WriteRune('\n')
		}
	}
	return sb.String()
}
