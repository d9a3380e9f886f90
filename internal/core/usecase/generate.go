package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/albertai/studyset/internal/core/domain"
	"github.com/albertai/studyset/internal/core/ports"
)

type GenerationSettings struct {
	ItemsPerType   int
	MaxSourceChars int
	Concurrency    int
	SystemPrompt   string
}

func (s GenerationSettings) normalize() GenerationSettings {
	out := s
	if out.ItemsPerType <= 0 {
		out.ItemsPerType = DefaultItemsPerType
	}
	if out.MaxSourceChars <= 0 {
		out.MaxSourceChars = DefaultMaxSourceChars
	}
	if out.Concurrency <= 0 {
		out.Concurrency = len(domain.ContentTypes())
	}
	if strings.TrimSpace(out.SystemPrompt) == "" {
		out.SystemPrompt = SystemInstruction
	}
	return out
}

type GenerateStudySetUseCase struct {
	extractor ports.TextExtractor
	client    ports.CompletionClient
	store     ports.StudyItemStore
	publisher ports.EventPublisher
	observer  ports.PipelineObserver
	settings  GenerationSettings

	now      func() time.Time
	newRunID func() string
}

type Option func(*GenerateStudySetUseCase)

func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(uc *GenerateStudySetUseCase) { uc.publisher = publisher }
}

func WithObserver(observer ports.PipelineObserver) Option {
	return func(uc *GenerateStudySetUseCase) { uc.observer = observer }
}

func NewGenerateStudySetUseCase(
	extractor ports.TextExtractor,
	client ports.CompletionClient,
	store ports.StudyItemStore,
	settings GenerationSettings,
	opts ...Option,
) *GenerateStudySetUseCase {
	uc := &GenerateStudySetUseCase{
		extractor: extractor,
		client:    client,
		store:     store,
		settings:  settings.normalize(),
		now:       func() time.Time { return time.Now().UTC() },
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// pipelineRun carries the per-run state shared by the content-type workers.
type pipelineRun struct {
	id      string
	classID int64
	examID  *int64
	topic   string
	source  string
	started time.Time
}

func (r *pipelineRun) transition(contentType domain.ContentType, state domain.RunState) {
	attrs := []any{"run_id", r.id, "state", string(state)}
	if contentType != "" {
		attrs = append(attrs, "content_type", string(contentType))
	}
	slog.Debug("generation_state", attrs...)
}

func (uc *GenerateStudySetUseCase) GenerateFromDocuments(ctx context.Context, batch domain.UploadBatch) (*domain.RunResult, error) {
	if len(batch.Documents) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "generate from documents", errors.New("no documents uploaded"))
	}
	if batch.ClassID <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "generate from documents", fmt.Errorf("invalid class id %d", batch.ClassID))
	}

	run := uc.startRun(batch.ClassID, batch.ExamID, batch.Topic)
	run.transition("", domain.RunExtracting)

	text, err := uc.extractor.Extract(ctx, batch.Documents)
	if err != nil {
		run.transition("", domain.RunFailed)
		uc.observeRun("failed", run.started)
		slog.Warn("generation_run_failed", "run_id", run.id, "class_id", run.classID, "kind", domain.KindOf(err), "error", err)
		return nil, fmt.Errorf("extract documents: %w", err)
	}
	run.source = TruncateText(text, uc.settings.MaxSourceChars)

	return uc.complete(ctx, run), nil
}

func (uc *GenerateStudySetUseCase) GenerateFromTopic(ctx context.Context, req domain.TopicRequest) (*domain.RunResult, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "generate from topic", errors.New("topic cannot be empty"))
	}
	if req.ClassID <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "generate from topic", fmt.Errorf("invalid class id %d", req.ClassID))
	}

	run := uc.startRun(req.ClassID, req.ExamID, req.Topic)
	return uc.complete(ctx, run), nil
}

func (uc *GenerateStudySetUseCase) ListByClass(ctx context.Context, contentType domain.ContentType, classID int64) ([]domain.PersistedRecord, error) {
	if classID <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list study items", fmt.Errorf("invalid class id %d", classID))
	}
	records, err := uc.store.ListByClass(ctx, contentType, classID)
	if err != nil {
		return nil, fmt.Errorf("list study items: %w", err)
	}
	return records, nil
}

func (uc *GenerateStudySetUseCase) ListByExam(ctx context.Context, contentType domain.ContentType, classID, examID int64) ([]domain.PersistedRecord, error) {
	if classID <= 0 || examID <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list study items", fmt.Errorf("invalid class id %d or exam id %d", classID, examID))
	}
	records, err := uc.store.ListByExam(ctx, contentType, classID, examID)
	if err != nil {
		return nil, fmt.Errorf("list study items: %w", err)
	}
	return records, nil
}

func (uc *GenerateStudySetUseCase) startRun(classID int64, examID *int64, topic string) *pipelineRun {
	run := &pipelineRun{
		id:      uc.newRunID(),
		classID: classID,
		examID:  examID,
		topic:   strings.TrimSpace(topic),
		started: uc.now(),
	}
	run.transition("", domain.RunIdle)
	return run
}

// complete runs every content type concurrently, then aggregates the outcomes.
func (uc *GenerateStudySetUseCase) complete(ctx context.Context, run *pipelineRun) *domain.RunResult {
	types := domain.ContentTypes()
	outcomes := make([]domain.GenerationOutcome, len(types))

	var group errgroup.Group
	group.SetLimit(uc.settings.Concurrency)
	for idx, contentType := range types {
		group.Go(func() error {
			outcomes[idx] = uc.generateOne(ctx, run, contentType)
			return nil
		})
	}
	_ = group.Wait()

	run.transition("", domain.RunAggregating)
	result := &domain.RunResult{
		RunID:      run.id,
		ClassID:    run.classID,
		ExamID:     run.examID,
		StartedAt:  run.started,
		FinishedAt: uc.now(),
	}
	for idx, contentType := range types {
		result.SetOutcome(contentType, outcomes[idx])
		if uc.observer != nil {
			uc.observer.ObserveOutcome(contentType, outcomes[idx])
		}
	}
	run.transition("", domain.RunDone)

	summary := result.Summary()
	uc.observeRun(summary, run.started)
	slog.Info("generation_run_completed",
		"run_id", run.id,
		"class_id", run.classID,
		"summary", summary,
		"multiple_choice", string(result.MultipleChoice.Status),
		"true_false", string(result.TrueFalse.Status),
		"flashcards", string(result.Flashcards.Status),
	)
	uc.publish(ctx, result, summary)
	return result
}

func (uc *GenerateStudySetUseCase) generateOne(ctx context.Context, run *pipelineRun, contentType domain.ContentType) domain.GenerationOutcome {
	outcome := uc.runContentType(ctx, run, contentType)
	if outcome.Status == domain.OutcomeFailed {
		slog.Warn("generation_content_type_failed",
			"run_id", run.id,
			"content_type", string(contentType),
			"kind", outcome.Kind,
			"reason", outcome.Reason,
			"rejected", len(outcome.Rejected),
		)
	}
	return outcome
}

func (uc *GenerateStudySetUseCase) runContentType(ctx context.Context, run *pipelineRun, contentType domain.ContentType) domain.GenerationOutcome {
	run.transition(contentType, domain.RunPrompting)
	request := domain.GenerationRequest{
		ContentType: contentType,
		Prompt:      BuildPrompt(contentType, run.source, run.topic, uc.settings.ItemsPerType),
		SourceText:  run.source,
	}

	run.transition(contentType, domain.RunGenerating)
	raw, err := uc.client.Complete(ctx, uc.settings.SystemPrompt, request.Prompt)
	if err != nil {
		return domain.Failed(fmt.Errorf("generate %s: %w", contentType, err), nil)
	}

	run.transition(contentType, domain.RunValidating)
	validated, err := ParseItems(contentType, raw, uc.settings.ItemsPerType)
	if err != nil {
		return domain.Failed(fmt.Errorf("validate %s: %w", contentType, err), nil)
	}
	if len(validated.Accepted) == 0 {
		err := domain.WrapError(
			domain.ErrSchemaViolation,
			fmt.Sprintf("validate %s", contentType),
			fmt.Errorf("no valid items (%d rejected)", len(validated.Rejected)),
		)
		return domain.Failed(err, validated.Rejected)
	}

	run.transition(contentType, domain.RunPersisting)
	batch := domain.ItemBatch{
		ContentType: contentType,
		ClassID:     run.classID,
		ExamID:      run.examID,
		Category:    run.topic,
		Items:       validated.Accepted,
	}
	if err := uc.store.InsertBatch(ctx, batch); err != nil {
		return domain.Failed(fmt.Errorf("persist %s: %w", contentType, err), validated.Rejected)
	}

	if len(validated.Rejected) == 0 {
		return domain.Succeeded(len(validated.Accepted))
	}
	return domain.PartiallyRejected(len(validated.Accepted), validated.Rejected)
}

func (uc *GenerateStudySetUseCase) publish(ctx context.Context, result *domain.RunResult, summary string) {
	if uc.publisher == nil {
		return
	}
	event := domain.RunCompletedEvent{
		RunID:    result.RunID,
		ClassID:  result.ClassID,
		ExamID:   result.ExamID,
		Summary:  summary,
		Outcomes: make(map[domain.ContentType]domain.OutcomeStatus, len(domain.ContentTypes())),
		At:       result.FinishedAt,
	}
	for _, contentType := range domain.ContentTypes() {
		event.Outcomes[contentType] = result.Outcome(contentType).Status
	}
	if err := uc.publisher.PublishRunCompleted(ctx, event); err != nil {
		slog.Warn("generation_event_publish_failed", "run_id", result.RunID, "error", err)
	}
}

func (uc *GenerateStudySetUseCase) observeRun(summary string, started time.Time) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveRun(summary, uc.now().Sub(started))
}
