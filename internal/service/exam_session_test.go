package service

import (
	"context"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/util"
	"schoolhub_backend/pkg/monitoring"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureTest(id string, minutes int, published bool) (*model.Test, []model.TestQuestion) {
	test := &model.Test{
		Title:           "Algebra quiz",
		DurationMinutes: minutes,
		IsPublished:     published,
		TeacherID:       1,
	}
	test.ID = id

	choice := model.TestQuestion{
		TestID:   id,
		Type:     model.MultipleChoice,
		Prompt:   "2 + 2 = ?",
		Options:  model.OptionList{"3", "4", "5"},
		Points:   5,
		Position: 1,
	}
	choice.ID = id + "-q1"

	essay := model.TestQuestion{
		TestID:   id,
		Type:     model.Essay,
		Prompt:   "Explain your reasoning.",
		Points:   10,
		Position: 2,
	}
	essay.ID = id + "-q2"

	return test, []model.TestQuestion{choice, essay}
}

func newHarness(t *testing.T) (*ExamSessionService, *fakeGateway, *fakeClock) {
	t.Helper()
	g := newFakeGateway()
	m := NewExamSessionService(g)
	clk := newFakeClock()
	m.clock = clk
	return m, g, clk
}

func TestLoadSessionStates(t *testing.T) {
	m, g, clk := newHarness(t)
	ctx := context.Background()

	published, qs := fixtureTest("t-pub", 30, true)
	g.addTest(published, qs)
	unpublished, uqs := fixtureTest("t-draft", 30, false)
	g.addTest(unpublished, uqs)

	_, err := m.LoadSession(ctx, "t-missing", 7)
	require.ErrorIs(t, err, util.ErrTestNotFound)

	s, err := m.LoadSession(ctx, "t-draft", 7)
	require.NoError(t, err)
	assert.Equal(t, SessionUnavailable, s.Status())

	s, err = m.LoadSession(ctx, "t-pub", 7)
	require.NoError(t, err)
	assert.Equal(t, SessionNotStarted, s.Status())
	assert.Equal(t, 30*60, s.Snapshot().RemainingSeconds)

	// Closed attempts reconstruct as SUBMITTED, never editable again.
	sub, err := g.CreateSubmission(ctx, "t-pub", 8, clk.Now())
	require.NoError(t, err)
	require.NoError(t, g.MarkSubmitted(ctx, sub.ID, clk.Now(), false))

	s, err = m.LoadSession(ctx, "t-pub", 8)
	require.NoError(t, err)
	assert.Equal(t, SessionSubmitted, s.Status())
	require.ErrorIs(t, s.RecordAnswer("t-pub-q1", ChoiceAnswer{Option: 1}), util.ErrSubmissionClosed)
}

func TestStartTest(t *testing.T) {
	m, g, clk := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 45, true)
	g.addTest(test, qs)

	s, err := m.StartTest(ctx, "t1", 3)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, SessionInProgress, s.Status())
	assert.Equal(t, 45*60, s.Snapshot().RemainingSeconds)

	sub := g.submission("t1", 3)
	require.NotNil(t, sub)
	assert.Equal(t, model.SubmissionInProgress, sub.Status)
	assert.True(t, sub.StartedAt.Equal(clk.Now()))

	// A second start on the same pair is rejected.
	_, err = m.StartTest(ctx, "t1", 3)
	require.ErrorIs(t, err, util.ErrNotStartable)

	// Unavailable tests cannot be started at all.
	draft, dqs := fixtureTest("t-draft", 45, false)
	g.addTest(draft, dqs)
	_, err = m.StartTest(ctx, "t-draft", 3)
	require.ErrorIs(t, err, util.ErrTestNotPublished)
}

func TestCountdownExpiryAutoSubmitsOnce(t *testing.T) {
	m, g, _ := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 1, true) // 60 seconds
	g.addTest(test, qs)

	s, err := m.StartTest(ctx, "t1", 5)
	require.NoError(t, err)

	require.NoError(t, s.RecordAnswer("t1-q1", ChoiceAnswer{Option: 1}))

	// Remaining time is monotonically non-increasing tick over tick.
	last := s.Snapshot().RemainingSeconds
	for i := 0; i < 59; i++ {
		s.countdown.Tick()
		now := s.Snapshot().RemainingSeconds
		assert.LessOrEqual(t, now, last)
		last = now
	}
	assert.Equal(t, SessionInProgress, s.Status())
	assert.Equal(t, 1, s.Snapshot().RemainingSeconds)

	// The tick that lands on zero fires the auto-submit, exactly once.
	s.countdown.Tick()
	assert.Equal(t, SessionSubmitted, s.Status())

	sub := g.submission("t1", 5)
	require.NotNil(t, sub)
	require.NotNil(t, sub.SubmittedAt)
	assert.True(t, sub.AutoSubmit)
	assert.Equal(t, 1, g.finalizeCalls)

	// Further ticks are inert.
	s.countdown.Tick()
	s.countdown.Tick()
	assert.Equal(t, 1, g.finalizeCalls)

	// The buffered answer was flushed with the submit.
	answer, ok := g.answer(sub.ID, "t1-q1")
	require.True(t, ok)
	require.NotNil(t, answer.SelectedOption)
	assert.Equal(t, 1, *answer.SelectedOption)
}

func TestManualSubmitClosesSession(t *testing.T) {
	m, g, clk := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	s, err := m.StartTest(ctx, "t1", 4)
	require.NoError(t, err)

	require.NoError(t, s.RecordAnswer("t1-q1", ChoiceAnswer{Option: 2}))
	require.NoError(t, s.RecordAnswer("t1-q2", EssayAnswer{Text: "because"}))

	clk.Advance(10 * time.Minute)
	submitted, err := m.Submit(ctx, "t1", 4)
	require.NoError(t, err)
	assert.Equal(t, SessionSubmitted, submitted.Status())

	sub := g.submission("t1", 4)
	require.NotNil(t, sub)
	require.NotNil(t, sub.SubmittedAt)
	assert.True(t, sub.SubmittedAt.Equal(clk.Now()))
	assert.False(t, sub.AutoSubmit)

	// Every mutation after close fails with the closed error.
	require.ErrorIs(t, s.RecordAnswer("t1-q1", ChoiceAnswer{Option: 0}), util.ErrSubmissionClosed)
	_, err = m.Submit(ctx, "t1", 4)
	require.ErrorIs(t, err, util.ErrSubmissionClosed)

	// The registry dropped the closed session.
	m.mu.Lock()
	_, live := m.sessions[sessionKey("t1", 4)]
	m.mu.Unlock()
	assert.False(t, live)
}

func TestSubmitAllowedWithNoAnswers(t *testing.T) {
	m, g, _ := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	_, err := m.StartTest(ctx, "t1", 9)
	require.NoError(t, err)

	s, err := m.Submit(ctx, "t1", 9)
	require.NoError(t, err)
	assert.Equal(t, SessionSubmitted, s.Status())

	// All rows flushed with null values.
	sub := g.submission("t1", 9)
	for _, q := range qs {
		row, ok := g.answer(sub.ID, q.ID)
		require.True(t, ok)
		assert.Nil(t, row.SelectedOption)
		assert.Nil(t, row.AnswerText)
	}
}

func TestSubmitFlushFailureStaysInProgress(t *testing.T) {
	m, g, _ := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	s, err := m.StartTest(ctx, "t1", 2)
	require.NoError(t, err)
	require.NoError(t, s.RecordAnswer("t1-q2", EssayAnswer{Text: "draft"}))

	g.failFinalize = true
	_, err = m.Submit(ctx, "t1", 2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, util.ErrSubmissionClosed)
	assert.Equal(t, SessionInProgress, s.Status())

	// The retry succeeds and flushes the same buffer.
	g.failFinalize = false
	_, err = m.Submit(ctx, "t1", 2)
	require.NoError(t, err)
	assert.Equal(t, SessionSubmitted, s.Status())

	sub := g.submission("t1", 2)
	row, ok := g.answer(sub.ID, "t1-q2")
	require.True(t, ok)
	require.NotNil(t, row.AnswerText)
	assert.Equal(t, "draft", *row.AnswerText)
}

func TestPersistFailureKeepsBufferAuthoritative(t *testing.T) {
	m, g, _ := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	s, err := m.StartTest(ctx, "t1", 6)
	require.NoError(t, err)

	require.NoError(t, s.RecordAnswer("t1-q1", ChoiceAnswer{Option: 2}))

	// The write-through fails silently; the answer survives in the buffer.
	g.failUpsert = true
	require.NoError(t, s.PersistAnswer(ctx, "t1-q1"))
	assert.Equal(t, 1, s.Snapshot().AnsweredCount)

	sub := g.submission("t1", 6)
	_, persisted := g.answer(sub.ID, "t1-q1")
	assert.False(t, persisted)

	// The final flush carries the buffered value.
	g.failUpsert = false
	_, err = m.Submit(ctx, "t1", 6)
	require.NoError(t, err)

	row, ok := g.answer(sub.ID, "t1-q1")
	require.True(t, ok)
	require.NotNil(t, row.SelectedOption)
	assert.Equal(t, 2, *row.SelectedOption)
}

func TestStalledPersistCannotRewriteClosedSubmission(t *testing.T) {
	m, g, _ := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	s, err := m.StartTest(ctx, "t1", 50)
	require.NoError(t, err)
	require.NoError(t, s.RecordAnswer("t1-q1", ChoiceAnswer{Option: 0}))

	// Stall a write-through of the old value inside the gateway.
	g.upsertEntered = make(chan struct{})
	g.upsertRelease = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.PersistAnswer(ctx, "t1-q1") }()
	<-g.upsertEntered

	// The student changes the answer and submits while the old write is
	// still in flight; the flush commits the new value and closes the row.
	require.NoError(t, s.RecordAnswer("t1-q1", ChoiceAnswer{Option: 2}))
	_, err = m.Submit(ctx, "t1", 50)
	require.NoError(t, err)

	// Releasing the stalled write must not surface an error or touch the
	// closed submission's answers.
	close(g.upsertRelease)
	require.NoError(t, <-done)

	sub := g.submission("t1", 50)
	row, ok := g.answer(sub.ID, "t1-q1")
	require.True(t, ok)
	require.NotNil(t, row.SelectedOption)
	assert.Equal(t, 2, *row.SelectedOption)
}

func TestResumeRestoresAnswersAndRemainingTime(t *testing.T) {
	m, g, clk := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	s, err := m.StartTest(ctx, "t1", 11)
	require.NoError(t, err)
	require.NoError(t, s.RecordAnswer("t1-q1", ChoiceAnswer{Option: 0}))
	require.NoError(t, s.PersistAnswer(ctx, "t1-q1"))

	// Simulate a disconnect: the live session is dropped, persisted state
	// survives.
	m.Teardown("t1", 11)

	clk.Advance(10 * time.Minute)
	resumed, err := m.LoadSession(ctx, "t1", 11)
	require.NoError(t, err)
	assert.Equal(t, SessionInProgress, resumed.Status())
	assert.NotSame(t, s, resumed)

	view := resumed.Snapshot()
	assert.Equal(t, 20*60, view.RemainingSeconds)
	assert.Equal(t, 1, view.AnsweredCount)
	resumed.Close()
}

func TestResumePastDeadlineAutoSubmits(t *testing.T) {
	m, g, clk := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	_, err := m.StartTest(ctx, "t1", 12)
	require.NoError(t, err)
	m.Teardown("t1", 12)

	resumeCounter := monitoring.AutoSubmitTotal.WithLabelValues("resume")
	before := testutil.ToFloat64(resumeCounter)

	clk.Advance(31 * time.Minute)
	resumed, err := m.LoadSession(ctx, "t1", 12)
	require.NoError(t, err)
	assert.Equal(t, SessionSubmitted, resumed.Status())

	sub := g.submission("t1", 12)
	require.NotNil(t, sub.SubmittedAt)
	assert.True(t, sub.AutoSubmit)
	assert.Equal(t, before+1, testutil.ToFloat64(resumeCounter))
}

func TestResumePastDeadlineLosingCloseRaceNotCounted(t *testing.T) {
	m, g, clk := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	_, err := m.StartTest(ctx, "t1", 13)
	require.NoError(t, err)
	m.Teardown("t1", 13)

	// The finalize loses against a concurrent close: the session still lands
	// in SUBMITTED, but this resume performed no auto-submit of its own.
	g.failFinalizeClosed = true
	resumeCounter := monitoring.AutoSubmitTotal.WithLabelValues("resume")
	before := testutil.ToFloat64(resumeCounter)

	clk.Advance(31 * time.Minute)
	resumed, err := m.LoadSession(ctx, "t1", 13)
	require.NoError(t, err)
	assert.Equal(t, SessionSubmitted, resumed.Status())
	assert.Equal(t, before, testutil.ToFloat64(resumeCounter))
}

func TestSweeperClosesExpiredOrphans(t *testing.T) {
	m, g, clk := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	// Orphaned attempt: submission exists, no live session.
	started := clk.Now()
	_, err := g.CreateSubmission(ctx, "t1", 20, started)
	require.NoError(t, err)

	// Live attempt for another student: the sweeper must leave it alone.
	live, err := m.StartTest(ctx, "t1", 21)
	require.NoError(t, err)
	defer live.Close()

	clk.Advance(31 * time.Minute)
	require.NoError(t, m.SweepExpired(ctx))

	closed := g.submission("t1", 20)
	require.NotNil(t, closed.SubmittedAt)
	assert.True(t, closed.AutoSubmit)
	// Closed at the deadline, not at sweep time.
	assert.True(t, closed.SubmittedAt.Equal(started.Add(30*time.Minute)))

	liveSub := g.submission("t1", 21)
	assert.Nil(t, liveSub.SubmittedAt)

	// A second sweep is a no-op.
	firstSubmittedAt := *closed.SubmittedAt
	require.NoError(t, m.SweepExpired(ctx))
	again := g.submission("t1", 20)
	assert.True(t, again.SubmittedAt.Equal(firstSubmittedAt))
}

func TestSaveAnswerValidation(t *testing.T) {
	m, g, _ := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	_, err := m.StartTest(ctx, "t1", 30)
	require.NoError(t, err)
	defer m.Teardown("t1", 30)

	require.NoError(t, m.SaveAnswer(ctx, "t1", 30, "t1-q1", ChoiceAnswer{Option: 1}))

	err = m.SaveAnswer(ctx, "t1", 30, "t1-q1", EssayAnswer{Text: "nope"})
	require.ErrorIs(t, err, util.ErrAnswerMismatch)

	err = m.SaveAnswer(ctx, "t1", 30, "t1-q1", ChoiceAnswer{Option: 9})
	require.ErrorIs(t, err, util.ErrAnswerMismatch)

	err = m.SaveAnswer(ctx, "t1", 30, "unknown", EssayAnswer{Text: "x"})
	require.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestTeardownStopsCountdownWithoutSubmitting(t *testing.T) {
	m, g, _ := newHarness(t)
	ctx := context.Background()

	test, qs := fixtureTest("t1", 30, true)
	g.addTest(test, qs)

	s, err := m.StartTest(ctx, "t1", 40)
	require.NoError(t, err)
	require.NoError(t, s.RecordAnswer("t1-q2", EssayAnswer{Text: "unsaved"}))

	m.Teardown("t1", 40)

	sub := g.submission("t1", 40)
	require.NotNil(t, sub)
	assert.Nil(t, sub.SubmittedAt)

	// The unflushed answer was abandoned with the session.
	_, ok := g.answer(sub.ID, "t1-q2")
	assert.False(t, ok)

	m.mu.Lock()
	_, live := m.sessions[sessionKey("t1", 40)]
	m.mu.Unlock()
	assert.False(t, live)
}
