package service

import (
	"context"
	"errors"
	"fmt"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/util"
	"schoolhub_backend/pkg/logger"
	"schoolhub_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

type SessionStatus string

const (
	SessionNotStarted  SessionStatus = "NOT_STARTED"
	SessionInProgress  SessionStatus = "IN_PROGRESS"
	SessionSubmitted   SessionStatus = "SUBMITTED"
	SessionUnavailable SessionStatus = "UNAVAILABLE"
)

// SessionView is the per-tick view model handed to the presentation layer.
type SessionView struct {
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	RemainingSeconds     int           `json:"remainingSeconds"`
	AnsweredCount        int           `json:"answeredCount"`
	TotalQuestions       int           `json:"totalQuestions"`
}

// ExamSession owns the lifecycle of one student's attempt at one test:
// NOT_STARTED -> IN_PROGRESS -> SUBMITTED, with UNAVAILABLE short-circuiting
// everything while the test is unpublished. All operations are serialized by
// the session mutex; the countdown is the only autonomous activity and
// re-enters the session through a single callback.
type ExamSession struct {
	TestID    string
	StudentID uint

	mu         sync.Mutex
	test       *model.Test
	questions  []model.TestQuestion
	submission *model.TestSubmission
	status     SessionStatus
	buffer     *AnswerBuffer
	countdown  *Countdown
	current    int

	gateway ExamGateway
	clock   Clock

	onClose   func(*ExamSession)
	closeOnce bool
}

// Start begins the attempt. Valid only from NOT_STARTED; the submission row
// is created with startedAt=now and the countdown begins at the full test
// duration.
func (s *ExamSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case SessionNotStarted:
	case SessionUnavailable:
		return util.ErrTestNotPublished
	default:
		return util.ErrNotStartable
	}

	sub, err := s.gateway.CreateSubmission(ctx, s.TestID, s.StudentID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	if sub == nil {
		return util.ErrNotStartable
	}
	if sub.Closed() {
		// A concurrent start-and-submit won the unique-index race.
		s.submission = sub
		s.status = SessionSubmitted
		return util.ErrNotStartable
	}

	s.submission = sub
	s.buffer = NewAnswerBuffer(s.questions)
	s.startCountdown(s.test.DurationMinutes * 60)
	s.status = SessionInProgress
	return nil
}

// RecordAnswer updates the buffer in place. It never blocks and never
// touches persistence.
func (s *ExamSession) RecordAnswer(questionID string, value AnswerValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return err
	}
	return s.buffer.Record(questionID, value)
}

// PersistAnswer is a best-effort write-through of one buffered answer. A
// gateway failure is logged and counted but not surfaced: the buffer stays
// authoritative until the next successful persist or the submit flush.
func (s *ExamSession) PersistAnswer(ctx context.Context, questionID string) error {
	s.mu.Lock()
	if err := s.mutable(); err != nil {
		s.mu.Unlock()
		return err
	}
	row, err := s.buffer.Row(s.submission.ID, questionID)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	// The write happens outside the session lock so a slow gateway never
	// blocks recording or ticking.
	if err := s.gateway.UpsertAnswer(ctx, &row); err != nil {
		if errors.Is(err, util.ErrSubmissionClosed) {
			// The attempt closed while this write was in flight; the submit
			// flush already carried the final values.
			logger.Log.Debug("persist skipped, submission closed",
				zap.String("submissionId", row.SubmissionID),
				zap.String("questionId", questionID))
			return nil
		}
		monitoring.AnswerPersistFailures.Inc()
		logger.Log.Warn("answer persist failed, buffer retained",
			zap.String("submissionId", row.SubmissionID),
			zap.String("questionId", questionID),
			zap.Error(err))
	}
	return nil
}

// Submit flushes the whole buffer and closes the submission in one gateway
// transaction. On flush failure the session stays IN_PROGRESS and the caller
// must retry; the upsert keying makes the retry safe.
func (s *ExamSession) Submit(ctx context.Context, auto bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return err
	}

	rows := s.buffer.Rows(s.submission.ID)
	submittedAt := s.clock.Now()

	if err := s.gateway.FinalizeSubmission(ctx, s.submission.ID, rows, submittedAt, auto); err != nil {
		if errors.Is(err, util.ErrSubmissionClosed) {
			// The sweeper or a concurrent request closed it first; adopt
			// the terminal state.
			s.closeLocked()
			return util.ErrSubmissionClosed
		}
		return fmt.Errorf("submit flush: %w", err)
	}

	s.submission.Status = model.SubmissionSubmitted
	s.submission.SubmittedAt = &submittedAt
	s.submission.AutoSubmit = auto
	s.closeLocked()
	return nil
}

// Close tears the session down without submitting: the countdown stops and
// any unflushed buffer content is abandoned.
func (s *ExamSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.releaseLocked()
}

// Snapshot returns the current view model.
func (s *ExamSession) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := SessionView{
		Status:               s.status,
		CurrentQuestionIndex: s.current,
		TotalQuestions:       len(s.questions),
	}
	if s.buffer != nil {
		view.AnsweredCount = s.buffer.AnsweredCount()
	}

	switch s.status {
	case SessionInProgress:
		view.RemainingSeconds = s.countdown.Remaining()
	case SessionNotStarted:
		view.RemainingSeconds = s.test.DurationMinutes * 60
	}
	return view
}

// SetCurrentQuestion moves the navigation cursor, clamped to the question
// range.
func (s *ExamSession) SetCurrentQuestion(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 {
		index = 0
	}
	if max := len(s.questions) - 1; index > max && max >= 0 {
		index = max
	}
	s.current = index
}

func (s *ExamSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *ExamSession) Questions() []model.TestQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := make([]model.TestQuestion, len(s.questions))
	copy(qs, s.questions)
	return qs
}

func (s *ExamSession) Test() *model.Test {
	return s.test
}

// Answers materializes the buffered answers for display. Empty when the
// session holds no buffer, i.e. SUBMITTED reconstructions and UNAVAILABLE.
func (s *ExamSession) Answers() []model.TestAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buffer == nil {
		return nil
	}
	submissionID := ""
	if s.submission != nil {
		submissionID = s.submission.ID
	}
	return s.buffer.Rows(submissionID)
}

func (s *ExamSession) Submission() *model.TestSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submission
}

// mutable gates every mutating operation on the state machine position.
func (s *ExamSession) mutable() error {
	switch s.status {
	case SessionInProgress:
		return nil
	case SessionNotStarted:
		return util.ErrNotStartable
	case SessionUnavailable:
		return util.ErrTestNotPublished
	default:
		return util.ErrSubmissionClosed
	}
}

func (s *ExamSession) startCountdown(seconds int) {
	s.countdown = NewCountdown(seconds, s.expire)
	go s.countdown.Run()
}

// expire is the countdown's single expiry signal: auto-submit, bypassing
// user confirmation.
func (s *ExamSession) expire() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.Submit(ctx, true)
	switch {
	case err == nil:
		monitoring.AutoSubmitTotal.WithLabelValues("countdown").Inc()
	case errors.Is(err, util.ErrSubmissionClosed):
		// Already closed elsewhere; nothing to do.
	default:
		// The attempt stays open; the expiry sweeper will close it out.
		logger.Log.Error("auto-submit failed",
			zap.String("testId", s.TestID),
			zap.Uint("studentId", s.StudentID),
			zap.Error(err))
	}
}

// closeLocked finalizes in-memory state after the submission is closed in
// the database. Caller holds the session mutex.
func (s *ExamSession) closeLocked() {
	s.status = SessionSubmitted
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.releaseLocked()
}

func (s *ExamSession) releaseLocked() {
	if s.closeOnce {
		return
	}
	s.closeOnce = true
	if s.onClose != nil {
		// The registry hook takes only the registry lock, never this
		// session's, so calling it here cannot deadlock.
		s.onClose(s)
	}
}
