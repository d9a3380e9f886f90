package domain

import (
	"fmt"
	"strings"
	"time"
)

type ContentType string

const (
	ContentMultipleChoice ContentType = "multiple_choice"
	ContentTrueFalse      ContentType = "true_false"
	ContentFlashcard      ContentType = "flashcard"
)

// MultipleChoiceOptionCount is the exact number of options a generated question carries.
const MultipleChoiceOptionCount = 4

// ContentTypes lists every content type in reporting order.
func ContentTypes() []ContentType {
	return []ContentType{ContentMultipleChoice, ContentTrueFalse, ContentFlashcard}
}

func ParseContentType(raw string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(raw))) {
	case ContentMultipleChoice:
		return ContentMultipleChoice, nil
	case ContentTrueFalse:
		return ContentTrueFalse, nil
	case ContentFlashcard:
		return ContentFlashcard, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse content type", fmt.Errorf("unknown content type %q", raw))
	}
}

// GeneratedItem is a validated study item of one content type.
type GeneratedItem interface {
	ContentType() ContentType
}

type MultipleChoiceItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

func (MultipleChoiceItem) ContentType() ContentType { return ContentMultipleChoice }

type TrueFalseItem struct {
	Statement string `json:"statement"`
	IsTrue    bool   `json:"isTrue"`
}

func (TrueFalseItem) ContentType() ContentType { return ContentTrueFalse }

type FlashcardItem struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

func (FlashcardItem) ContentType() ContentType { return ContentFlashcard }

// Rejection explains why the element at Index of a model response was not accepted.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type ValidationResult struct {
	Accepted []GeneratedItem `json:"accepted"`
	Rejected []Rejection     `json:"rejected"`
}

// ItemBatch is the unit of atomic persistence: every item shares one content type and owner.
type ItemBatch struct {
	ContentType ContentType
	ClassID     int64
	ExamID      *int64
	Category    string
	Items       []GeneratedItem
}

type PersistedRecord struct {
	ID        int64         `json:"id"`
	ClassID   int64         `json:"classId"`
	ExamID    *int64        `json:"examId,omitempty"`
	Category  string        `json:"category,omitempty"`
	Item      GeneratedItem `json:"item"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ClassItems groups every persisted record of a class by content type.
type ClassItems struct {
	ClassID int64
	Records map[ContentType][]PersistedRecord
}
