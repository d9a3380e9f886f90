package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/albertai/studyset/internal/core/domain"
)

const (
	DefaultItemsPerType   = 30
	DefaultMaxSourceChars = 2000

	defaultTopic = "the provided course material"
)

// SystemInstruction is sent with every generation request.
const SystemInstruction = "You are a study assistant that writes exam practice material. " +
	"You answer with strictly valid JSON and never add commentary."

// TruncateText cuts text to at most budget characters. No summarization is attempted.
func TruncateText(text string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text
	}
	count := 0
	for idx := range text {
		if count == budget {
			return text[:idx]
		}
		count++
	}
	return text
}

// BuildPrompt returns the user prompt for one content type.
func BuildPrompt(contentType domain.ContentType, sourceText, topic string, count int) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = defaultTopic
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d %s about %s.\n", count, itemNoun(contentType), topic)
	if strings.TrimSpace(sourceText) != "" {
		b.WriteString("Base every item only on the source text below.\n")
	} else {
		b.WriteString("Cover material a typical class on this topic would test. Do not mix in other subjects.\n")
	}
	b.WriteString("\nOutput format: a JSON array. Every element is an object with exactly these fields:\n")
	b.WriteString(fieldSpec(contentType))
	b.WriteString("\nExample element:\n")
	b.WriteString(exampleElement(contentType))
	b.WriteString("\n")
	if strings.TrimSpace(sourceText) != "" {
		b.WriteString("\nSource text:\n")
		b.WriteString(sourceText)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn ONLY the JSON array, no other text.")
	return b.String()
}

func itemNoun(contentType domain.ContentType) string {
	switch contentType {
	case domain.ContentMultipleChoice:
		return "multiple-choice questions"
	case domain.ContentTrueFalse:
		return "true/false statements"
	default:
		return "flashcards"
	}
}

func fieldSpec(contentType domain.ContentType) string {
	switch contentType {
	case domain.ContentMultipleChoice:
		return fmt.Sprintf(`- "question" (string): the question text
- "options" (array of exactly %d distinct strings): the answer choices
- "answer" (string): the correct choice, copied exactly from "options"
`, domain.MultipleChoiceOptionCount)
	case domain.ContentTrueFalse:
		return `- "statement" (string): a claim that is either true or false
- "isTrue" (boolean): whether the statement is true
`
	default:
		return `- "front" (string): the prompt side of the card
- "back" (string): the answer side of the card
`
	}
}

func exampleElement(contentType domain.ContentType) string {
	switch contentType {
	case domain.ContentMultipleChoice:
		return `{"question": "Which organelle produces most of a cell's ATP?", "options": ["Nucleus", "Mitochondrion", "Ribosome", "Golgi apparatus"], "answer": "Mitochondrion"}`
	case domain.ContentTrueFalse:
		return `{"statement": "Water boils at 100 degrees Celsius at sea level.", "isTrue": true}`
	default:
		return `{"front": "What is the basic unit of life?", "back": "The cell"}`
	}
}
