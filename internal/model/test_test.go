package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionValidate(t *testing.T) {
	choice := &TestQuestion{Type: MultipleChoice, Options: OptionList{"a", "b"}}
	assert.NoError(t, choice.Validate())

	choice.Options = nil
	assert.Error(t, choice.Validate())

	essay := &TestQuestion{Type: Essay}
	assert.NoError(t, essay.Validate())

	essay.Options = OptionList{"a"}
	assert.Error(t, essay.Validate())

	unknown := &TestQuestion{Type: "TRUE_FALSE"}
	assert.Error(t, unknown.Validate())
}

func TestOptionListRoundTrip(t *testing.T) {
	opts := OptionList{"red", "green"}
	val, err := opts.Value()
	require.NoError(t, err)

	var scanned OptionList
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, opts, scanned)

	var fromNil OptionList
	require.NoError(t, fromNil.Scan(nil))
	assert.Nil(t, fromNil)
}

func TestSubmissionClosed(t *testing.T) {
	sub := &TestSubmission{Status: SubmissionInProgress}
	assert.False(t, sub.Closed())

	now := time.Now()
	sub.SubmittedAt = &now
	assert.True(t, sub.Closed())

	// The status column alone also closes, even without the timestamp.
	graded := &TestSubmission{Status: SubmissionGraded}
	assert.True(t, graded.Closed())
}

func TestSubmissionDeadline(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	sub := &TestSubmission{StartedAt: start}
	assert.Equal(t, start.Add(45*time.Minute), sub.Deadline(45))
}
