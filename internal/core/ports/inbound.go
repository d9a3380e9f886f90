package ports

import (
	"context"
	"io"

	"github.com/albertai/studyset/internal/core/domain"
)

// StudySetGenerator is the inbound contract for one end-to-end generation run.
type StudySetGenerator interface {
	GenerateFromDocuments(ctx context.Context, batch domain.UploadBatch) (*domain.RunResult, error)
	GenerateFromTopic(ctx context.Context, req domain.TopicRequest) (*domain.RunResult, error)
}

// StudySetReader is the inbound read model for persisted study items.
type StudySetReader interface {
	ListByClass(ctx context.Context, contentType domain.ContentType, classID int64) ([]domain.PersistedRecord, error)
	ListByExam(ctx context.Context, contentType domain.ContentType, classID, examID int64) ([]domain.PersistedRecord, error)
}

// StudySetExporter streams every persisted item of a class as a workbook.
type StudySetExporter interface {
	ExportClass(ctx context.Context, classID int64, w io.Writer) error
}
