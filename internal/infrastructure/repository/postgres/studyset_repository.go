package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/albertai/studyset/internal/core/domain"
)

const schemaLockKey = int64(2026101901)

type StudySetRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewStudySetRepository(db *sql.DB) *StudySetRepository {
	return &StudySetRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *StudySetRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/mcp startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS multiple_choice_questions (
	id BIGSERIAL PRIMARY KEY,
	class_id BIGINT NOT NULL,
	exam_id BIGINT,
	category TEXT NOT NULL DEFAULT '',
	question TEXT NOT NULL,
	options JSONB NOT NULL,
	answer TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS true_false_questions (
	id BIGSERIAL PRIMARY KEY,
	class_id BIGINT NOT NULL,
	exam_id BIGINT,
	category TEXT NOT NULL DEFAULT '',
	statement TEXT NOT NULL,
	is_true BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS flashcards (
	id BIGSERIAL PRIMARY KEY,
	class_id BIGINT NOT NULL,
	exam_id BIGINT,
	category TEXT NOT NULL DEFAULT '',
	front TEXT NOT NULL,
	back TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mcq_class_id ON multiple_choice_questions(class_id);
CREATE INDEX IF NOT EXISTS idx_tfq_class_id ON true_false_questions(class_id);
CREATE INDEX IF NOT EXISTS idx_flashcards_class_id ON flashcards(class_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const (
	insertMultipleChoice = `
INSERT INTO multiple_choice_questions (class_id, exam_id, category, question, options, answer, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	insertTrueFalse = `
INSERT INTO true_false_questions (class_id, exam_id, category, statement, is_true, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	insertFlashcard = `
INSERT INTO flashcards (class_id, exam_id, category, front, back, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
)

// InsertBatch stores every item of one content type in a single transaction.
// Either all rows are committed or none are.
func (r *StudySetRepository) InsertBatch(ctx context.Context, batch domain.ItemBatch) error {
	op := fmt.Sprintf("insert %s batch", batch.ContentType)
	if _, err := domain.ParseContentType(string(batch.ContentType)); err != nil {
		return domain.WrapError(domain.ErrPersistence, op, err)
	}
	for idx, item := range batch.Items {
		if item == nil || item.ContentType() != batch.ContentType {
			return domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("item %d does not match content type %s", idx, batch.ContentType))
		}
	}
	if len(batch.Items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	createdAt := r.now()
	examID := nullableInt64(batch.ExamID)
	for idx, item := range batch.Items {
		if err := insertItem(ctx, tx, batch, examID, item, createdAt); err != nil {
			return domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("item %d: %w", idx, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, batch domain.ItemBatch, examID sql.NullInt64, item domain.GeneratedItem, createdAt time.Time) error {
	switch v := item.(type) {
	case domain.MultipleChoiceItem:
		optionsJSON, err := json.Marshal(v.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		_, err = tx.ExecContext(ctx, insertMultipleChoice,
			batch.ClassID, examID, batch.Category, v.Question, optionsJSON, v.Answer, createdAt)
		return err
	case domain.TrueFalseItem:
		_, err := tx.ExecContext(ctx, insertTrueFalse,
			batch.ClassID, examID, batch.Category, v.Statement, v.IsTrue, createdAt)
		return err
	case domain.FlashcardItem:
		_, err := tx.ExecContext(ctx, insertFlashcard,
			batch.ClassID, examID, batch.Category, v.Front, v.Back, createdAt)
		return err
	default:
		return fmt.Errorf("unsupported item type %T", item)
	}
}

func (r *StudySetRepository) ListByClass(ctx context.Context, contentType domain.ContentType, classID int64) ([]domain.PersistedRecord, error) {
	return r.list(ctx, contentType, "WHERE class_id = $1", classID)
}

// ListByExam narrows ListByClass to rows tagged with one exam.
func (r *StudySetRepository) ListByExam(ctx context.Context, contentType domain.ContentType, classID, examID int64) ([]domain.PersistedRecord, error) {
	return r.list(ctx, contentType, "WHERE class_id = $1 AND exam_id = $2", classID, examID)
}

func (r *StudySetRepository) list(ctx context.Context, contentType domain.ContentType, where string, args ...any) ([]domain.PersistedRecord, error) {
	op := fmt.Sprintf("list %s", contentType)
	selectClause, err := selectQuery(contentType)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}

	rows, err := r.db.QueryContext(ctx, selectClause+where+"\nORDER BY id\n", args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	defer rows.Close()

	out := make([]domain.PersistedRecord, 0)
	for rows.Next() {
		record, err := scanRecord(contentType, rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrPersistence, op, err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return out, nil
}

func selectQuery(contentType domain.ContentType) (string, error) {
	switch contentType {
	case domain.ContentMultipleChoice:
		return `
SELECT id, class_id, exam_id, category, question, options, answer, created_at
FROM multiple_choice_questions
`, nil
	case domain.ContentTrueFalse:
		return `
SELECT id, class_id, exam_id, category, statement, is_true, created_at
FROM true_false_questions
`, nil
	case domain.ContentFlashcard:
		return `
SELECT id, class_id, exam_id, category, front, back, created_at
FROM flashcards
`, nil
	default:
		return "", fmt.Errorf("unknown content type %q", contentType)
	}
}

func scanRecord(contentType domain.ContentType, rows *sql.Rows) (domain.PersistedRecord, error) {
	var record domain.PersistedRecord
	var examID sql.NullInt64

	switch contentType {
	case domain.ContentMultipleChoice:
		var item domain.MultipleChoiceItem
		var optionsRaw []byte
		if err := rows.Scan(&record.ID, &record.ClassID, &examID, &record.Category,
			&item.Question, &optionsRaw, &item.Answer, &record.CreatedAt); err != nil {
			return record, fmt.Errorf("scan multiple choice row: %w", err)
		}
		if err := json.Unmarshal(optionsRaw, &item.Options); err != nil {
			return record, fmt.Errorf("unmarshal options: %w", err)
		}
		record.Item = item
	case domain.ContentTrueFalse:
		var item domain.TrueFalseItem
		if err := rows.Scan(&record.ID, &record.ClassID, &examID, &record.Category,
			&item.Statement, &item.IsTrue, &record.CreatedAt); err != nil {
			return record, fmt.Errorf("scan true/false row: %w", err)
		}
		record.Item = item
	default:
		var item domain.FlashcardItem
		if err := rows.Scan(&record.ID, &record.ClassID, &examID, &record.Category,
			&item.Front, &item.Back, &record.CreatedAt); err != nil {
			return record, fmt.Errorf("scan flashcard row: %w", err)
		}
		record.Item = item
	}

	if examID.Valid {
		v := examID.Int64
		record.ExamID = &v
	}
	return record, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
