package service

import (
	"context"
	"errors"
	"fmt"
	"schoolhub_backend/internal/util"
	"schoolhub_backend/pkg/logger"
	"schoolhub_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExamSessionService is the registry of live exam sessions, one per
// (test, student). It reconstructs sessions from persisted state on load and
// runs the sweeper that closes out expired attempts with no live session.
type ExamSessionService struct {
	mu       sync.Mutex
	sessions map[string]*ExamSession

	gateway ExamGateway
	clock   Clock
}

func NewExamSessionService(gateway ExamGateway) *ExamSessionService {
	return &ExamSessionService{
		sessions: make(map[string]*ExamSession),
		gateway:  gateway,
		clock:    systemClock{},
	}
}

func sessionKey(testID string, studentID uint) string {
	return fmt.Sprintf("%s:%d", testID, studentID)
}

// LoadSession returns the live session for the pair, or reconstructs one
// from the database: UNAVAILABLE when unpublished, NOT_STARTED when no
// submission exists, SUBMITTED when the attempt is closed (a student cannot
// retake or resume editing), IN_PROGRESS with restored answers and remaining
// time otherwise. An in-progress attempt whose deadline already passed is
// auto-submitted on the spot.
func (m *ExamSessionService) LoadSession(ctx context.Context, testID string, studentID uint) (*ExamSession, error) {
	key := sessionKey(testID, studentID)

	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	test, qs, err := m.gateway.FetchTestWithQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}

	s := &ExamSession{
		TestID:    testID,
		StudentID: studentID,
		test:      test,
		questions: qs,
		gateway:   m.gateway,
		clock:     m.clock,
		onClose:   m.release,
	}

	if !test.IsPublished {
		s.status = SessionUnavailable
		return s, nil
	}

	sub, err := m.gateway.FetchSubmission(ctx, testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("fetch submission: %w", err)
	}

	switch {
	case sub == nil:
		s.status = SessionNotStarted
		s.buffer = NewAnswerBuffer(qs)
		return s, nil

	case sub.Closed():
		s.submission = sub
		s.status = SessionSubmitted
		return s, nil
	}

	// Resume an in-progress attempt.
	s.submission = sub
	s.buffer = NewAnswerBuffer(qs)
	saved, err := m.gateway.FetchAnswers(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch answers: %w", err)
	}
	s.buffer.Restore(saved)

	elapsed := int(m.clock.Now().Sub(sub.StartedAt).Seconds())
	remaining := test.DurationMinutes*60 - elapsed
	if remaining < 0 {
		remaining = 0
	}

	if remaining == 0 {
		// Deadline passed while the student was away.
		s.status = SessionInProgress
		err := s.Submit(ctx, true)
		switch {
		case err == nil:
			monitoring.AutoSubmitTotal.WithLabelValues("resume").Inc()
		case errors.Is(err, util.ErrSubmissionClosed):
			// The sweeper or a concurrent request already closed it; that
			// auto-submit was counted by whoever won.
		default:
			return nil, err
		}
		return s, nil
	}

	s.status = SessionInProgress
	s.startCountdown(remaining)
	return m.adopt(key, s), nil
}

// StartTest creates the submission and begins the countdown. Fails with
// ErrNotStartable outside NOT_STARTED.
func (m *ExamSessionService) StartTest(ctx context.Context, testID string, studentID uint) (*ExamSession, error) {
	s, err := m.LoadSession(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return m.adopt(sessionKey(testID, studentID), s), nil
}

// SaveAnswer records the value in the buffer and kicks off a fire-and-forget
// best-effort persist. Persists for different questions may complete out of
// order; each carries the latest buffered value for its question at send.
func (m *ExamSessionService) SaveAnswer(ctx context.Context, testID string, studentID uint, questionID string, value AnswerValue) error {
	s, err := m.LoadSession(ctx, testID, studentID)
	if err != nil {
		return err
	}
	if err := s.RecordAnswer(questionID, value); err != nil {
		return err
	}

	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.PersistAnswer(pctx, questionID); err != nil {
			// Only state errors reach here; gateway failures are absorbed
			// by PersistAnswer itself.
			logger.Log.Debug("persist skipped", zap.Error(err))
		}
	}()
	return nil
}

// Submit performs the student-confirmed submission.
func (m *ExamSessionService) Submit(ctx context.Context, testID string, studentID uint) (*ExamSession, error) {
	s, err := m.LoadSession(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.Submit(ctx, false); err != nil {
		return nil, err
	}
	return s, nil
}

// Teardown stops the session's countdown and drops it from the registry,
// abandoning unflushed buffer content. Called when the student navigates
// away.
func (m *ExamSessionService) Teardown(testID string, studentID uint) {
	key := sessionKey(testID, studentID)

	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
}

// RunSweeper periodically closes expired in-progress submissions that have
// no live session, e.g. after a server restart dropped their countdowns.
func (m *ExamSessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.SweepExpired(ctx); err != nil {
				logger.Log.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

func (m *ExamSessionService) SweepExpired(ctx context.Context) error {
	rows, err := m.gateway.FindExpiredInProgress(ctx, m.clock.Now(), 100)
	if err != nil {
		return err
	}

	for _, row := range rows {
		key := sessionKey(row.TestID, row.StudentID)
		m.mu.Lock()
		_, live := m.sessions[key]
		m.mu.Unlock()
		if live {
			// The live countdown owns this one.
			continue
		}

		deadline := row.Deadline(row.DurationMinutes)
		err := m.gateway.MarkSubmitted(ctx, row.TestSubmission.ID, deadline, true)
		switch {
		case err == nil:
			monitoring.AutoSubmitTotal.WithLabelValues("sweeper").Inc()
			logger.Log.Info("expired attempt auto-submitted",
				zap.String("submissionId", row.TestSubmission.ID),
				zap.String("testId", row.TestID))
		case errors.Is(err, util.ErrSubmissionClosed):
			// Raced with a submit; fine.
		default:
			logger.Log.Error("failed to close expired attempt",
				zap.String("submissionId", row.TestSubmission.ID),
				zap.Error(err))
		}
	}
	return nil
}

// adopt registers the session unless another goroutine registered one for
// the same key first, in which case the duplicate is stopped and the
// canonical session returned.
func (m *ExamSessionService) adopt(key string, s *ExamSession) *ExamSession {
	if s.Status() != SessionInProgress {
		return s
	}

	m.mu.Lock()
	existing, ok := m.sessions[key]
	if ok && existing != s {
		m.mu.Unlock()
		s.Close()
		return existing
	}
	if !ok {
		m.sessions[key] = s
		monitoring.ActiveExamSessions.Inc()
	}
	m.mu.Unlock()
	return s
}

// release is the session close hook; it only takes the registry lock.
func (m *ExamSessionService) release(s *ExamSession) {
	key := sessionKey(s.TestID, s.StudentID)

	m.mu.Lock()
	if m.sessions[key] == s {
		delete(m.sessions, key)
		monitoring.ActiveExamSessions.Dec()
	}
	m.mu.Unlock()
}
