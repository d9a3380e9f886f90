package xlsx

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/albertai/studyset/internal/core/domain"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var sheetNames = map[domain.ContentType]string{
	domain.ContentMultipleChoice: "Multiple Choice",
	domain.ContentTrueFalse:      "True False",
	domain.ContentFlashcard:      "Flashcards",
}

// SheetName returns the worksheet title used for contentType.
func SheetName(contentType domain.ContentType) string {
	return sheetNames[contentType]
}

// Writer renders one worksheet per content type.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) WriteWorkbook(out io.Writer, items domain.ClassItems) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("workbook_close_failed", "class_id", items.ClassID, "error", err)
		}
	}()

	for idx, contentType := range domain.ContentTypes() {
		name := SheetName(contentType)
		if idx == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}

		if err := writeRow(f, name, 1, header(contentType)); err != nil {
			return err
		}
		for i, record := range items.Records[contentType] {
			if err := writeRow(f, name, i+2, row(record)); err != nil {
				return err
			}
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(out); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNumber int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNumber)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("set row %d on %s: %w", rowNumber, sheet, err)
	}
	return nil
}

func header(contentType domain.ContentType) []any {
	common := []any{"ID", "Exam ID", "Category"}
	switch contentType {
	case domain.ContentMultipleChoice:
		return append(common, "Question", "Option 1", "Option 2", "Option 3", "Option 4", "Answer", "Created At")
	case domain.ContentTrueFalse:
		return append(common, "Statement", "Is True", "Created At")
	default:
		return append(common, "Front", "Back", "Created At")
	}
}

func row(record domain.PersistedRecord) []any {
	var examID any = ""
	if record.ExamID != nil {
		examID = *record.ExamID
	}
	values := []any{record.ID, examID, record.Category}
	created := record.CreatedAt.UTC().Format(time.RFC3339)

	switch item := record.Item.(type) {
	case domain.MultipleChoiceItem:
		values = append(values, item.Question)
		for i := 0; i < domain.MultipleChoiceOptionCount; i++ {
			option := ""
			if i < len(item.Options) {
				option = item.Options[i]
			}
			values = append(values, option)
		}
		return append(values, item.Answer, created)
	case domain.TrueFalseItem:
		return append(values, item.Statement, item.IsTrue, created)
	case domain.FlashcardItem:
		return append(values, item.Front, item.Back, created)
	default:
		return append(values, created)
	}
}
