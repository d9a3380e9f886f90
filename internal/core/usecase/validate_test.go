package usecase

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/albertai/studyset/internal/core/domain"
)

func multipleChoiceResponse(n int) string {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"question": fmt.Sprintf("Question %d?", i),
			"options":  []string{"A", "B", "C", fmt.Sprintf("D%d", i)},
			"answer":   "B",
		})
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func trueFalseResponse(n int) string {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"statement": fmt.Sprintf("Statement %d", i),
			"isTrue":    i%2 == 0,
		})
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func flashcardResponse(n int) string {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"front": fmt.Sprintf("Front %d", i),
			"back":  fmt.Sprintf("Back %d", i),
		})
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func TestParseItemsAcceptsWellFormedResponses(t *testing.T) {
	responses := map[domain.ContentType]string{
		domain.ContentMultipleChoice: multipleChoiceResponse(30),
		domain.ContentTrueFalse:      trueFalseResponse(30),
		domain.ContentFlashcard:      flashcardResponse(30),
	}
	for contentType, raw := range responses {
		result, err := ParseItems(contentType, raw, 30)
		if err != nil {
			t.Fatalf("%s: ParseItems() error = %v", contentType, err)
		}
		if len(result.Accepted) != 30 || len(result.Rejected) != 0 {
			t.Fatalf("%s: expected 30 accepted/0 rejected, got %d/%d", contentType, len(result.Accepted), len(result.Rejected))
		}
		for _, item := range result.Accepted {
			if item.ContentType() != contentType {
				t.Fatalf("expected %s item, got %s", contentType, item.ContentType())
			}
		}
	}
}

func TestParseItemsMultipleChoiceInvariants(t *testing.T) {
	result, err := ParseItems(domain.ContentMultipleChoice, multipleChoiceResponse(30), 30)
	if err != nil {
		t.Fatalf("ParseItems() error = %v", err)
	}
	for _, item := range result.Accepted {
		mc := item.(domain.MultipleChoiceItem)
		if len(mc.Options) != 4 {
			t.Fatalf("expected 4 options, got %d", len(mc.Options))
		}
		found := false
		for _, option := range mc.Options {
			if option == mc.Answer {
				found = true
			}
		}
		if !found {
			t.Fatalf("answer %q not among options %v", mc.Answer, mc.Options)
		}
	}
}

func TestParseItemsRejectsMalformedJSON(t *testing.T) {
	cases := []string{
		"",
		"Sure! Here are your questions.",
		`{"question": "not an array"}`,
		`[{"front": "a", "back": "b"}`,
		`[{"front": "a", "back": "b"}] trailing`,
		"null",
	}
	for _, raw := range cases {
		_, err := ParseItems(domain.ContentFlashcard, raw, 30)
		if !domain.IsKind(err, domain.ErrMalformedJSON) {
			t.Fatalf("ParseItems(%q) expected ErrMalformedJSON, got %v", raw, err)
		}
	}
}

func TestParseItemsReportsRejectedElements(t *testing.T) {
	raw := `[
		{"question": "Q0", "options": ["a", "b", "c", "d"], "answer": "a"},
		{"question": "Q1", "options": ["a", "b", "c"], "answer": "a"},
		{"question": "Q2", "options": ["a", "b", "c", "d"], "answer": "z"},
		{"options": ["a", "b", "c", "d"], "answer": "a"},
		{"question": "Q4", "options": ["a", "a", "c", "d"], "answer": "a"},
		{"question": "Q5", "options": [1, 2, 3, 4], "answer": "1"},
		"just a string",
		{"question": "  ", "options": ["a", "b", "c", "d"], "answer": "a"},
		{"question": "Q8", "options": ["a", "b", "", "d"], "answer": "a"}
	]`
	result, err := ParseItems(domain.ContentMultipleChoice, raw, 30)
	if err != nil {
		t.Fatalf("ParseItems() error = %v", err)
	}
	if len(result.Accepted) != 1 {
		t.Fatalf("expected 1 accepted, got %d", len(result.Accepted))
	}
	wantIndexes := []int{1, 2, 3, 4, 5, 6, 7, 8}
	gotIndexes := make([]int, 0, len(result.Rejected))
	for _, rejection := range result.Rejected {
		gotIndexes = append(gotIndexes, rejection.Index)
		if rejection.Reason == "" {
			t.Fatalf("rejection %d has no reason", rejection.Index)
		}
	}
	if !reflect.DeepEqual(gotIndexes, wantIndexes) {
		t.Fatalf("rejected indexes = %v, want %v", gotIndexes, wantIndexes)
	}
	if !strings.Contains(result.Rejected[0].Reason, "expected 4 options") {
		t.Fatalf("unexpected reason for option count: %s", result.Rejected[0].Reason)
	}
	if !strings.Contains(result.Rejected[1].Reason, "not one of the options") {
		t.Fatalf("unexpected reason for bad answer: %s", result.Rejected[1].Reason)
	}
}

func TestParseItemsTrueFalseRequiresBoolean(t *testing.T) {
	raw := `[{"statement": "s0", "isTrue": true}, {"statement": "s1", "isTrue": "true"}, {"statement": "s2"}]`
	result, err := ParseItems(domain.ContentTrueFalse, raw, 30)
	if err != nil {
		t.Fatalf("ParseItems() error = %v", err)
	}
	if len(result.Accepted) != 1 || len(result.Rejected) != 2 {
		t.Fatalf("expected 1 accepted/2 rejected, got %d/%d", len(result.Accepted), len(result.Rejected))
	}
}

func TestParseItemsRejectsItemsBeyondTarget(t *testing.T) {
	result, err := ParseItems(domain.ContentFlashcard, flashcardResponse(32), 30)
	if err != nil {
		t.Fatalf("ParseItems() error = %v", err)
	}
	if len(result.Accepted) != 30 || len(result.Rejected) != 2 {
		t.Fatalf("expected 30 accepted/2 rejected, got %d/%d", len(result.Accepted), len(result.Rejected))
	}
	if result.Rejected[0].Index != 30 {
		t.Fatalf("expected first rejection at index 30, got %d", result.Rejected[0].Index)
	}
}

func TestParseItemsStripsCodeFence(t *testing.T) {
	raw := "```json\n" + flashcardResponse(2) + "\n```"
	result, err := ParseItems(domain.ContentFlashcard, raw, 30)
	if err != nil {
		t.Fatalf("ParseItems() error = %v", err)
	}
	if len(result.Accepted) != 2 {
		t.Fatalf("expected 2 accepted, got %d", len(result.Accepted))
	}
}

func TestParseItemsDoesNotRewriteValues(t *testing.T) {
	raw := `[{"front": "  padded front ", "back": "Back\twith tab"}]`
	result, err := ParseItems(domain.ContentFlashcard, raw, 30)
	if err != nil {
		t.Fatalf("ParseItems() error = %v", err)
	}
	want := domain.FlashcardItem{Front: "  padded front ", Back: "Back\twith tab"}
	if result.Accepted[0] != want {
		t.Fatalf("accepted item = %+v, want %+v", result.Accepted[0], want)
	}
}
