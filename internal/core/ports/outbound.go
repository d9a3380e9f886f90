package ports

import (
	"context"
	"io"
	"time"

	"github.com/albertai/studyset/internal/core/domain"
)

// TextExtractor turns uploaded documents into one combined text blob.
type TextExtractor interface {
	Extract(ctx context.Context, docs []domain.SourceDocument) (string, error)
}

// CompletionClient calls the external generation service.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// StudyItemStore persists generated items atomically per batch.
type StudyItemStore interface {
	InsertBatch(ctx context.Context, batch domain.ItemBatch) error
	ListByClass(ctx context.Context, contentType domain.ContentType, classID int64) ([]domain.PersistedRecord, error)
	ListByExam(ctx context.Context, contentType domain.ContentType, classID, examID int64) ([]domain.PersistedRecord, error)
}

// EventPublisher announces completed runs.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event domain.RunCompletedEvent) error
}

// PipelineObserver records run and outcome metrics.
type PipelineObserver interface {
	ObserveRun(summary string, duration time.Duration)
	ObserveOutcome(contentType domain.ContentType, outcome domain.GenerationOutcome)
}

// WorkbookWriter renders persisted study items of one class as a spreadsheet.
type WorkbookWriter interface {
	WriteWorkbook(w io.Writer, items domain.ClassItems) error
}
