package service

import (
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferFixture() (*AnswerBuffer, []model.TestQuestion) {
	choice := model.TestQuestion{
		Type:    model.MultipleChoice,
		Options: model.OptionList{"red", "green", "blue"},
	}
	choice.ID = "q-choice"

	essay := model.TestQuestion{Type: model.Essay}
	essay.ID = "q-essay"

	qs := []model.TestQuestion{choice, essay}
	return NewAnswerBuffer(qs), qs
}

func TestBufferRecordTypeChecks(t *testing.T) {
	b, _ := bufferFixture()

	require.NoError(t, b.Record("q-choice", ChoiceAnswer{Option: 2}))
	require.NoError(t, b.Record("q-essay", EssayAnswer{Text: "hello"}))

	assert.ErrorIs(t, b.Record("q-choice", EssayAnswer{Text: "x"}), util.ErrAnswerMismatch)
	assert.ErrorIs(t, b.Record("q-essay", ChoiceAnswer{Option: 0}), util.ErrAnswerMismatch)
	assert.ErrorIs(t, b.Record("q-choice", ChoiceAnswer{Option: 3}), util.ErrAnswerMismatch)
	assert.ErrorIs(t, b.Record("q-choice", ChoiceAnswer{Option: -1}), util.ErrAnswerMismatch)
	assert.ErrorIs(t, b.Record("missing", EssayAnswer{Text: "x"}), util.ErrQuestionNotFound)
}

func TestBufferRecordOverwrites(t *testing.T) {
	b, _ := bufferFixture()

	require.NoError(t, b.Record("q-choice", ChoiceAnswer{Option: 0}))
	require.NoError(t, b.Record("q-choice", ChoiceAnswer{Option: 2}))

	row, err := b.Row("sub-1", "q-choice")
	require.NoError(t, err)
	require.NotNil(t, row.SelectedOption)
	assert.Equal(t, 2, *row.SelectedOption)
}

func TestBufferAnsweredCount(t *testing.T) {
	b, _ := bufferFixture()
	assert.Equal(t, 0, b.AnsweredCount())
	assert.Equal(t, 2, b.Len())

	require.NoError(t, b.Record("q-choice", ChoiceAnswer{Option: 0}))
	assert.Equal(t, 1, b.AnsweredCount())

	// Blank essay text does not count as answered.
	require.NoError(t, b.Record("q-essay", EssayAnswer{Text: "   "}))
	assert.Equal(t, 1, b.AnsweredCount())

	require.NoError(t, b.Record("q-essay", EssayAnswer{Text: "done"}))
	assert.Equal(t, 2, b.AnsweredCount())

	// Option zero is a real answer.
	assert.True(t, b.IsAnswered("q-choice"))
}

func TestBufferRowsInQuestionOrder(t *testing.T) {
	b, qs := bufferFixture()
	require.NoError(t, b.Record("q-essay", EssayAnswer{Text: "only this one"}))

	rows := b.Rows("sub-1")
	require.Len(t, rows, len(qs))

	assert.Equal(t, "q-choice", rows[0].QuestionID)
	assert.Nil(t, rows[0].SelectedOption)
	assert.Nil(t, rows[0].AnswerText)

	assert.Equal(t, "q-essay", rows[1].QuestionID)
	require.NotNil(t, rows[1].AnswerText)
	assert.Equal(t, "only this one", *rows[1].AnswerText)
	assert.Equal(t, "sub-1", rows[1].SubmissionID)
}

func TestBufferRestore(t *testing.T) {
	b, _ := bufferFixture()

	opt := 1
	text := "restored essay"
	blank := "   "
	b.Restore([]model.TestAnswer{
		{SubmissionID: "sub-1", QuestionID: "q-choice", SelectedOption: &opt},
		{SubmissionID: "sub-1", QuestionID: "q-essay", AnswerText: &text},
		{SubmissionID: "sub-1", QuestionID: "gone", AnswerText: &blank},
	})

	assert.Equal(t, 2, b.AnsweredCount())
	row, err := b.Row("sub-1", "q-choice")
	require.NoError(t, err)
	require.NotNil(t, row.SelectedOption)
	assert.Equal(t, 1, *row.SelectedOption)
}
