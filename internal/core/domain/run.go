package domain

import "time"

// SourceDocument is one uploaded file handed to a generation run.
type SourceDocument struct {
	Filename  string
	MediaType string
	Content   []byte
}

// UploadBatch is the input of one pipeline run.
type UploadBatch struct {
	Documents []SourceDocument
	ClassID   int64
	ExamID    *int64
	Topic     string
}

// TopicRequest asks for a study set generated from a topic label alone.
type TopicRequest struct {
	Topic   string
	ClassID int64
	ExamID  *int64
}

type GenerationRequest struct {
	ContentType ContentType
	Prompt      string
	SourceText  string
}

type RunState string

const (
	RunIdle        RunState = "idle"
	RunExtracting  RunState = "extracting"
	RunPrompting   RunState = "prompting"
	RunGenerating  RunState = "generating"
	RunValidating  RunState = "validating"
	RunPersisting  RunState = "persisting"
	RunAggregating RunState = "aggregating"
	RunDone        RunState = "done"
	RunFailed      RunState = "failed"
)

type OutcomeStatus string

const (
	OutcomeSucceeded         OutcomeStatus = "succeeded"
	OutcomePartiallyRejected OutcomeStatus = "partially_rejected"
	OutcomeFailed            OutcomeStatus = "failed"
)

// GenerationOutcome summarizes what happened to one content type in a run.
type GenerationOutcome struct {
	Status        OutcomeStatus `json:"status"`
	Count         int           `json:"count,omitempty"`
	AcceptedCount int           `json:"acceptedCount,omitempty"`
	Rejected      []Rejection   `json:"rejected,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Kind          string        `json:"kind,omitempty"`
}

func Succeeded(count int) GenerationOutcome {
	return GenerationOutcome{Status: OutcomeSucceeded, Count: count}
}

func PartiallyRejected(accepted int, rejected []Rejection) GenerationOutcome {
	return GenerationOutcome{Status: OutcomePartiallyRejected, AcceptedCount: accepted, Rejected: rejected}
}

func Failed(err error, rejected []Rejection) GenerationOutcome {
	reason := "unknown failure"
	if err != nil {
		reason = err.Error()
	}
	return GenerationOutcome{Status: OutcomeFailed, Reason: reason, Kind: KindOf(err), Rejected: rejected}
}

// RunResult is the aggregate returned to the caller once a run reaches Done.
type RunResult struct {
	RunID          string            `json:"runId"`
	ClassID        int64             `json:"classId"`
	ExamID         *int64            `json:"examId,omitempty"`
	MultipleChoice GenerationOutcome `json:"multipleChoice"`
	TrueFalse      GenerationOutcome `json:"trueFalse"`
	Flashcards     GenerationOutcome `json:"flashcards"`
	StartedAt      time.Time         `json:"startedAt"`
	FinishedAt     time.Time         `json:"finishedAt"`
}

func (r *RunResult) Outcome(contentType ContentType) GenerationOutcome {
	switch contentType {
	case ContentMultipleChoice:
		return r.MultipleChoice
	case ContentTrueFalse:
		return r.TrueFalse
	default:
		return r.Flashcards
	}
}

func (r *RunResult) SetOutcome(contentType ContentType, outcome GenerationOutcome) {
	switch contentType {
	case ContentMultipleChoice:
		r.MultipleChoice = outcome
	case ContentTrueFalse:
		r.TrueFalse = outcome
	default:
		r.Flashcards = outcome
	}
}

// Summary reports "succeeded", "partial" or "failed" across all content types.
func (r *RunResult) Summary() string {
	failed, clean := 0, 0
	for _, ct := range ContentTypes() {
		switch r.Outcome(ct).Status {
		case OutcomeFailed:
			failed++
		case OutcomeSucceeded:
			clean++
		}
	}
	switch {
	case clean == len(ContentTypes()):
		return "succeeded"
	case failed == len(ContentTypes()):
		return "failed"
	default:
		return "partial"
	}
}

// RunCompletedEvent is published after every run that reached Done.
type RunCompletedEvent struct {
	RunID    string                        `json:"runId"`
	ClassID  int64                         `json:"classId"`
	ExamID   *int64                        `json:"examId,omitempty"`
	Summary  string                        `json:"summary"`
	Outcomes map[ContentType]OutcomeStatus `json:"outcomes"`
	At       time.Time                     `json:"at"`
}
