package service

import (
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/util"
	"strings"
)

// AnswerValue is a tagged answer variant. Using distinct types per question
// kind makes a mismatched assignment (an option index on an essay, free text
// on a choice question) a construction-time error instead of a silent
// data-shape bug.
type AnswerValue interface {
	isAnswerValue()
}

// ChoiceAnswer is a zero-based option index for a multiple choice question.
type ChoiceAnswer struct {
	Option int
}

// EssayAnswer is the free text of an essay question.
type EssayAnswer struct {
	Text string
}

func (ChoiceAnswer) isAnswerValue() {}
func (EssayAnswer) isAnswerValue()  {}

type bufferEntry struct {
	question model.TestQuestion
	value    AnswerValue // nil until the student answers
}

// AnswerBuffer is the in-memory staging area for one session's answers. It
// holds one slot per question in question order and is the source of truth
// until a flush succeeds. Not safe for concurrent use; the owning session's
// mutex serializes access.
type AnswerBuffer struct {
	order   []string
	entries map[string]*bufferEntry
}

func NewAnswerBuffer(questions []model.TestQuestion) *AnswerBuffer {
	b := &AnswerBuffer{
		order:   make([]string, 0, len(questions)),
		entries: make(map[string]*bufferEntry, len(questions)),
	}
	for _, q := range questions {
		b.order = append(b.order, q.ID)
		b.entries[q.ID] = &bufferEntry{question: q}
	}
	return b
}

// Record replaces the buffered value for a question. The value kind must
// match the question's declared type.
func (b *AnswerBuffer) Record(questionID string, value AnswerValue) error {
	entry, ok := b.entries[questionID]
	if !ok {
		return util.ErrQuestionNotFound
	}

	switch v := value.(type) {
	case ChoiceAnswer:
		if entry.question.Type != model.MultipleChoice {
			return util.ErrAnswerMismatch
		}
		if v.Option < 0 || v.Option >= len(entry.question.Options) {
			return util.ErrAnswerMismatch
		}
	case EssayAnswer:
		if entry.question.Type != model.Essay {
			return util.ErrAnswerMismatch
		}
	default:
		return util.ErrAnswerMismatch
	}

	entry.value = value
	return nil
}

// Restore loads previously persisted rows back into the buffer, used when a
// student resumes an in-progress attempt. Rows for unknown questions are
// skipped.
func (b *AnswerBuffer) Restore(answers []model.TestAnswer) {
	for _, a := range answers {
		entry, ok := b.entries[a.QuestionID]
		if !ok {
			continue
		}
		switch entry.question.Type {
		case model.MultipleChoice:
			if a.SelectedOption != nil {
				entry.value = ChoiceAnswer{Option: *a.SelectedOption}
			}
		case model.Essay:
			if a.AnswerText != nil && strings.TrimSpace(*a.AnswerText) != "" {
				entry.value = EssayAnswer{Text: *a.AnswerText}
			}
		}
	}
}

// IsAnswered reports whether the question holds a non-empty answer: any
// recorded option index, or essay text that is non-blank after trimming.
func (b *AnswerBuffer) IsAnswered(questionID string) bool {
	entry, ok := b.entries[questionID]
	if !ok || entry.value == nil {
		return false
	}
	switch v := entry.value.(type) {
	case ChoiceAnswer:
		return true
	case EssayAnswer:
		return strings.TrimSpace(v.Text) != ""
	}
	return false
}

// AnsweredCount is used for progress display only; it never gates
// submission.
func (b *AnswerBuffer) AnsweredCount() int {
	count := 0
	for _, id := range b.order {
		if b.IsAnswered(id) {
			count++
		}
	}
	return count
}

func (b *AnswerBuffer) Len() int {
	return len(b.order)
}

// Row materializes one question's buffered value as a persistable answer
// row. Unanswered questions produce a row with both fields null.
func (b *AnswerBuffer) Row(submissionID, questionID string) (model.TestAnswer, error) {
	entry, ok := b.entries[questionID]
	if !ok {
		return model.TestAnswer{}, util.ErrQuestionNotFound
	}
	return b.materialize(submissionID, entry), nil
}

// Rows materializes the whole buffer in question order for the bulk flush.
func (b *AnswerBuffer) Rows(submissionID string) []model.TestAnswer {
	rows := make([]model.TestAnswer, 0, len(b.order))
	for _, id := range b.order {
		rows = append(rows, b.materialize(submissionID, b.entries[id]))
	}
	return rows
}

func (b *AnswerBuffer) materialize(submissionID string, entry *bufferEntry) model.TestAnswer {
	row := model.TestAnswer{
		SubmissionID: submissionID,
		QuestionID:   entry.question.ID,
	}
	switch v := entry.value.(type) {
	case ChoiceAnswer:
		opt := v.Option
		row.SelectedOption = &opt
	case EssayAnswer:
		text := v.Text
		row.AnswerText = &text
	}
	return row
}
