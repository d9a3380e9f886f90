package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/albertai/studyset/internal/core/domain"
)

// ParseItems parses raw model output as a JSON array and validates every element
// against the schema of contentType. A response that is not a JSON array fails as a
// whole; individual bad elements are reported in Rejected and never coerced.
func ParseItems(contentType domain.ContentType, raw string, target int) (domain.ValidationResult, error) {
	body := stripCodeFence(raw)
	if !strings.HasPrefix(body, "[") {
		return domain.ValidationResult{}, domain.WrapError(domain.ErrMalformedJSON, "parse items", errors.New("response is not a JSON array"))
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elements); err != nil {
		return domain.ValidationResult{}, domain.WrapError(domain.ErrMalformedJSON, "parse items", err)
	}

	result := domain.ValidationResult{
		Accepted: make([]domain.GeneratedItem, 0, len(elements)),
		Rejected: make([]domain.Rejection, 0),
	}
	for idx, element := range elements {
		if target > 0 && idx >= target {
			result.Rejected = append(result.Rejected, domain.Rejection{
				Index:  idx,
				Reason: fmt.Sprintf("exceeds requested count of %d", target),
			})
			continue
		}
		item, err := decodeItem(contentType, element)
		if err != nil {
			result.Rejected = append(result.Rejected, domain.Rejection{Index: idx, Reason: err.Error()})
			continue
		}
		result.Accepted = append(result.Accepted, item)
	}
	return result, nil
}

func decodeItem(contentType domain.ContentType, element json.RawMessage) (domain.GeneratedItem, error) {
	trimmed := strings.TrimSpace(string(element))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, errors.New("element is not a JSON object")
	}

	switch contentType {
	case domain.ContentMultipleChoice:
		return decodeMultipleChoice(element)
	case domain.ContentTrueFalse:
		return decodeTrueFalse(element)
	case domain.ContentFlashcard:
		return decodeFlashcard(element)
	default:
		return nil, fmt.Errorf("unknown content type %q", contentType)
	}
}

func decodeMultipleChoice(element json.RawMessage) (domain.GeneratedItem, error) {
	var wire struct {
		Question *string   `json:"question"`
		Options  *[]string `json:"options"`
		Answer   *string   `json:"answer"`
	}
	if err := json.Unmarshal(element, &wire); err != nil {
		return nil, fmt.Errorf("wrong field type: %w", err)
	}
	if err := requireText("question", wire.Question); err != nil {
		return nil, err
	}
	if wire.Options == nil {
		return nil, errors.New(`missing field "options"`)
	}
	if err := requireText("answer", wire.Answer); err != nil {
		return nil, err
	}

	options := *wire.Options
	if len(options) != domain.MultipleChoiceOptionCount {
		return nil, fmt.Errorf("expected %d options, got %d", domain.MultipleChoiceOptionCount, len(options))
	}
	seen := make(map[string]struct{}, len(options))
	for i, option := range options {
		if strings.TrimSpace(option) == "" {
			return nil, fmt.Errorf("option %d is blank", i)
		}
		if _, dup := seen[option]; dup {
			return nil, fmt.Errorf("duplicate option %q", option)
		}
		seen[option] = struct{}{}
	}
	if _, ok := seen[*wire.Answer]; !ok {
		return nil, fmt.Errorf("answer %q is not one of the options", *wire.Answer)
	}

	return domain.MultipleChoiceItem{
		Question: *wire.Question,
		Options:  options,
		Answer:   *wire.Answer,
	}, nil
}

func decodeTrueFalse(element json.RawMessage) (domain.GeneratedItem, error) {
	var wire struct {
		Statement *string `json:"statement"`
		IsTrue    *bool   `json:"isTrue"`
	}
	if err := json.Unmarshal(element, &wire); err != nil {
		return nil, fmt.Errorf("wrong field type: %w", err)
	}
	if err := requireText("statement", wire.Statement); err != nil {
		return nil, err
	}
	if wire.IsTrue == nil {
		return nil, errors.New(`missing field "isTrue"`)
	}
	return domain.TrueFalseItem{Statement: *wire.Statement, IsTrue: *wire.IsTrue}, nil
}

func decodeFlashcard(element json.RawMessage) (domain.GeneratedItem, error) {
	var wire struct {
		Front *string `json:"front"`
		Back  *string `json:"back"`
	}
	if err := json.Unmarshal(element, &wire); err != nil {
		return nil, fmt.Errorf("wrong field type: %w", err)
	}
	if err := requireText("front", wire.Front); err != nil {
		return nil, err
	}
	if err := requireText("back", wire.Back); err != nil {
		return nil, err
	}
	return domain.FlashcardItem{Front: *wire.Front, Back: *wire.Back}, nil
}

func requireText(field string, value *string) error {
	if value == nil {
		return fmt.Errorf("missing field %q", field)
	}
	if strings.TrimSpace(*value) == "" {
		return fmt.Errorf("field %q is blank", field)
	}
	return nil
}

// stripCodeFence removes one surrounding ``` fence, with an optional language tag.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) < 6 || !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}
	body := s[3 : len(s)-3]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if first := strings.TrimSpace(body[:nl]); !strings.HasPrefix(first, "[") {
			body = body[nl+1:]
		}
	}
	return strings.TrimSpace(body)
}
