package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/albertai/studyset/internal/core/domain"
	"github.com/albertai/studyset/internal/core/ports"
)

type ExportStudySetUseCase struct {
	store  ports.StudyItemStore
	writer ports.WorkbookWriter
}

func NewExportStudySetUseCase(store ports.StudyItemStore, writer ports.WorkbookWriter) *ExportStudySetUseCase {
	return &ExportStudySetUseCase{store: store, writer: writer}
}

func (uc *ExportStudySetUseCase) ExportClass(ctx context.Context, classID int64, w io.Writer) error {
	if classID <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "export class", fmt.Errorf("invalid class id %d", classID))
	}

	items := domain.ClassItems{
		ClassID: classID,
		Records: make(map[domain.ContentType][]domain.PersistedRecord, len(domain.ContentTypes())),
	}
	for _, contentType := range domain.ContentTypes() {
		records, err := uc.store.ListByClass(ctx, contentType, classID)
		if err != nil {
			return fmt.Errorf("export class %d: %w", classID, err)
		}
		items.Records[contentType] = records
	}

	if err := uc.writer.WriteWorkbook(w, items); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
