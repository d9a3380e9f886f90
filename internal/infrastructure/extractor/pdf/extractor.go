package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/albertai/studyset/internal/core/domain"
)

const (
	MediaTypePDF = "application/pdf"

	// DocumentDelimiter follows the page text of every document.
	DocumentDelimiter = "\n--- End of PDF ---\n"
)

// Document is an opened PDF whose pages are numbered from 1.
type Document interface {
	NumPage() int
	PageText(page int) (string, error)
}

// Opener parses raw bytes into a Document.
type Opener func(content []byte) (Document, error)

type Extractor struct {
	open Opener
}

func NewExtractor() *Extractor {
	return &Extractor{open: OpenLedongthuc}
}

func NewExtractorWithOpener(open Opener) *Extractor {
	if open == nil {
		open = OpenLedongthuc
	}
	return &Extractor{open: open}
}

// Extract concatenates the text of every document in upload order.
func (e *Extractor) Extract(ctx context.Context, docs []domain.SourceDocument) (string, error) {
	var combined strings.Builder
	hasText := false

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := checkMediaType(doc); err != nil {
			return "", err
		}

		text, err := e.extractDocument(ctx, doc)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			hasText = true
		}
		combined.WriteString(text)
		combined.WriteString(DocumentDelimiter)
	}

	if !hasText {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract documents", errors.New("no extractable text"))
	}
	return combined.String(), nil
}

func (e *Extractor) extractDocument(ctx context.Context, doc domain.SourceDocument) (text string, err error) {
	op := fmt.Sprintf("extract %s", displayName(doc))
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapError(domain.ErrCorruptDocument, op, fmt.Errorf("parser panic: %v", r))
		}
	}()

	if len(doc.Content) == 0 {
		return "", domain.WrapError(domain.ErrCorruptDocument, op, errors.New("empty file"))
	}
	parsed, err := e.open(sanitize(doc.Content))
	if err != nil {
		return "", domain.WrapError(domain.ErrCorruptDocument, op, err)
	}
	pages := parsed.NumPage()
	if pages <= 0 {
		return "", domain.WrapError(domain.ErrCorruptDocument, op, errors.New("document has no pages"))
	}

	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pageText, err := parsed.PageText(i)
		if err != nil {
			return "", domain.WrapError(domain.ErrCorruptDocument, op, fmt.Errorf("page %d: %w", i, err))
		}
		texts = append(texts, pageText)
	}
	return strings.Join(texts, "\n"), nil
}

func checkMediaType(doc domain.SourceDocument) error {
	mediaType, _, err := mime.ParseMediaType(doc.MediaType)
	if err != nil || !strings.EqualFold(mediaType, MediaTypePDF) {
		return domain.WrapError(
			domain.ErrUnsupportedMediaType,
			fmt.Sprintf("extract %s", displayName(doc)),
			fmt.Errorf("media type %q is not %s", doc.MediaType, MediaTypePDF),
		)
	}
	return nil
}

func displayName(doc domain.SourceDocument) string {
	if strings.TrimSpace(doc.Filename) == "" {
		return "unnamed document"
	}
	return doc.Filename
}

// sanitize drops bytes appended after the last %%EOF marker, which some
// uploaders add and which the parser's trailer lookup cannot skip.
func sanitize(content []byte) []byte {
	idx := bytes.LastIndex(content, []byte("%%EOF"))
	if idx < 0 {
		return content
	}
	end := idx + len("%%EOF")
	for end < len(content) && (content[end] == '\r' || content[end] == '\n') {
		end++
	}
	return content[:end]
}

type ledongthucDocument struct {
	reader *pdf.Reader
}

// OpenLedongthuc opens content with github.com/ledongthuc/pdf.
func OpenLedongthuc(content []byte) (Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	return &ledongthucDocument{reader: reader}, nil
}

func (d *ledongthucDocument) NumPage() int {
	return d.reader.NumPage()
}

func (d *ledongthucDocument) PageText(i int) (string, error) {
	page := d.reader.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
