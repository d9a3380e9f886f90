package pdf

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/albertai/studyset/internal/core/domain"
)

type fakeDocument struct {
	pages   []string
	pageErr error
	panicOn int
}

func (d *fakeDocument) NumPage() int { return len(d.pages) }

func (d *fakeDocument) PageText(i int) (string, error) {
	if d.panicOn == i {
		panic("malformed content stream")
	}
	if d.pageErr != nil {
		return "", d.pageErr
	}
	return d.pages[i-1], nil
}

func openerFor(docs map[string]*fakeDocument) Opener {
	return func(content []byte) (Document, error) {
		doc, ok := docs[string(content)]
		if !ok {
			return nil, errors.New("malformed PDF: no trailer")
		}
		return doc, nil
	}
}

func pdfDoc(name, content string) domain.SourceDocument {
	return domain.SourceDocument{Filename: name, MediaType: "application/pdf", Content: []byte(content)}
}

func TestExtractConcatenatesPagesAndDocumentsInOrder(t *testing.T) {
	extractor := NewExtractorWithOpener(openerFor(map[string]*fakeDocument{
		"first":  {pages: []string{"page one", "page two"}},
		"second": {pages: []string{"other"}},
	}))

	text, err := extractor.Extract(context.Background(), []domain.SourceDocument{
		pdfDoc("a.pdf", "first"),
		pdfDoc("b.pdf", "second"),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "page one\npage two" + DocumentDelimiter + "other" + DocumentDelimiter
	if text != want {
		t.Fatalf("Extract() = %q, want %q", text, want)
	}
}

func TestExtractRejectsNonPDFMediaType(t *testing.T) {
	extractor := NewExtractorWithOpener(openerFor(nil))
	_, err := extractor.Extract(context.Background(), []domain.SourceDocument{
		{Filename: "notes.docx", MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Content: []byte("x")},
	})
	if !domain.IsKind(err, domain.ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
	if !strings.Contains(err.Error(), "notes.docx") {
		t.Fatalf("expected file name in error, got %v", err)
	}
}

func TestExtractAcceptsMediaTypeParameters(t *testing.T) {
	extractor := NewExtractorWithOpener(openerFor(map[string]*fakeDocument{"doc": {pages: []string{"text"}}}))
	doc := pdfDoc("a.pdf", "doc")
	doc.MediaType = "Application/PDF; name=a.pdf"
	if _, err := extractor.Extract(context.Background(), []domain.SourceDocument{doc}); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
}

func TestExtractCorruptDocumentNamesFile(t *testing.T) {
	extractor := NewExtractor()
	_, err := extractor.Extract(context.Background(), []domain.SourceDocument{
		pdfDoc("broken.pdf", "this is definitely not a pdf file"),
	})
	if !domain.IsKind(err, domain.ErrCorruptDocument) {
		t.Fatalf("expected ErrCorruptDocument, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken.pdf") {
		t.Fatalf("expected file name in error, got %v", err)
	}
}

func TestExtractRecoversParserPanic(t *testing.T) {
	extractor := NewExtractorWithOpener(openerFor(map[string]*fakeDocument{
		"doc": {pages: []string{"a", "b"}, panicOn: 2},
	}))
	_, err := extractor.Extract(context.Background(), []domain.SourceDocument{pdfDoc("panics.pdf", "doc")})
	if !domain.IsKind(err, domain.ErrCorruptDocument) {
		t.Fatalf("expected ErrCorruptDocument, got %v", err)
	}
}

func TestExtractFailsOnZeroPagesAndEmptyFile(t *testing.T) {
	extractor := NewExtractorWithOpener(openerFor(map[string]*fakeDocument{"doc": {}}))
	for _, doc := range []domain.SourceDocument{pdfDoc("zero.pdf", "doc"), pdfDoc("empty.pdf", "")} {
		_, err := extractor.Extract(context.Background(), []domain.SourceDocument{doc})
		if !domain.IsKind(err, domain.ErrCorruptDocument) {
			t.Fatalf("%s: expected ErrCorruptDocument, got %v", doc.Filename, err)
		}
	}
}

func TestExtractWithoutTextIsInvalidInput(t *testing.T) {
	extractor := NewExtractorWithOpener(openerFor(map[string]*fakeDocument{"scan": {pages: []string{"", "  \n"}}}))
	_, err := extractor.Extract(context.Background(), []domain.SourceDocument{pdfDoc("scan.pdf", "scan")})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	extractor := NewExtractorWithOpener(openerFor(map[string]*fakeDocument{"doc": {pages: []string{"x"}}}))
	_, err := extractor.Extract(ctx, []domain.SourceDocument{pdfDoc("a.pdf", "doc")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSanitizeDropsTrailingGarbage(t *testing.T) {
	raw := []byte("%PDF-1.4\n...\n%%EOF\n\x00\x00garbage")
	got := string(sanitize(raw))
	if got != "%PDF-1.4\n...\n%%EOF\n" {
		t.Fatalf("sanitize() = %q", got)
	}
	if string(sanitize([]byte("no marker"))) != "no marker" {
		t.Fatalf("sanitize should keep content without a marker")
	}
}
