package text

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"ragchat/internal/apperr"
)

type Format string

const (
	FormatPlain Format = "plain"
	FormatPDF   Format = "pdf"
)

var extensions = map[string]Format{
	".txt":      FormatPlain,
	".md":       FormatPlain,
	".markdown": FormatPlain,
	".pdf":      FormatPDF,
}

// DetectFormat maps a file name to a supported format by extension.
func DetectFormat(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", apperr.New(apperr.CodeIngestFormatUnsupported,
		fmt.Sprintf("unsupported file type %q", ext),
		apperr.Field("filename", filename))
}

// Extract reads the whole document and returns its plain text, trimmed.
// Page-structured documents are joined page by page with a newline.
func Extract(filename string, r io.Reader) (string, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeIngestExtractFailure, "reading upload", apperr.Field("filename", filename))
	}

	var out string
	switch format {
	case FormatPDF:
		out, err = extractPDF(data)
		if err != nil {
			return "", apperr.Wrap(err, apperr.CodeIngestExtractFailure, "extracting pdf text", apperr.Field("filename", filename))
		}
	default:
		if !utf8.Valid(data) {
			return "", apperr.New(apperr.CodeIngestExtractFailure, "document is not valid UTF-8 text", apperr.Field("filename", filename))
		}
		out = string(data)
	}

	return strings.TrimSpace(out), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}
