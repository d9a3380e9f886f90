package xlsx

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/albertai/studyset/internal/core/domain"
)

func TestWriteWorkbookOneSheetPerContentType(t *testing.T) {
	examID := int64(4)
	created := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	items := domain.ClassItems{
		ClassID: 7,
		Records: map[domain.ContentType][]domain.PersistedRecord{
			domain.ContentMultipleChoice: {{
				ID: 1, ClassID: 7, ExamID: &examID, Category: "Biology", CreatedAt: created,
				Item: domain.MultipleChoiceItem{Question: "Q?", Options: []string{"a", "b", "c", "d"}, Answer: "c"},
			}},
			domain.ContentFlashcard: {{
				ID: 2, ClassID: 7, Category: "Biology", CreatedAt: created,
				Item: domain.FlashcardItem{Front: "front", Back: "back"},
			}},
		},
	}

	var buf bytes.Buffer
	if err := NewWriter().WriteWorkbook(&buf, items); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	wantSheets := []string{"Multiple Choice", "True False", "Flashcards"}
	if got := f.GetSheetList(); !reflect.DeepEqual(got, wantSheets) {
		t.Fatalf("sheets = %v, want %v", got, wantSheets)
	}

	rows, err := f.GetRows("Multiple Choice")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and one row, got %d rows", len(rows))
	}
	wantRow := []string{"1", "4", "Biology", "Q?", "a", "b", "c", "d", "c", "2026-10-19T08:30:00Z"}
	if !reflect.DeepEqual(rows[1], wantRow) {
		t.Fatalf("row = %v, want %v", rows[1], wantRow)
	}

	rows, err = f.GetRows("True False")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 || rows[0][3] != "Statement" {
		t.Fatalf("expected header only on empty sheet, got %v", rows)
	}

	rows, err = f.GetRows("Flashcards")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if rows[1][3] != "front" || rows[1][4] != "back" {
		t.Fatalf("unexpected flashcard row %v", rows[1])
	}
}
