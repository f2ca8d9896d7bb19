package service

import (
	"context"
	"fmt"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/repository"
	"schoolhub_backend/internal/util"
	"sync"
	"time"
)

// fakeClock is a settable time source shared by session and gateway fakes.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeGateway is an in-memory ExamGateway with switchable failure injection.
type fakeGateway struct {
	mu          sync.Mutex
	tests       map[string]*model.Test
	questions   map[string][]model.TestQuestion
	submissions map[string]*model.TestSubmission // keyed test:student
	answers     map[string]map[string]model.TestAnswer

	failUpsert         bool
	failFinalize       bool
	failFinalizeClosed bool

	// When set, UpsertAnswer signals upsertEntered and then blocks until
	// upsertRelease closes, simulating a write stuck in flight.
	upsertEntered chan struct{}
	upsertRelease chan struct{}

	upsertCalls   int
	finalizeCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		tests:       make(map[string]*model.Test),
		questions:   make(map[string][]model.TestQuestion),
		submissions: make(map[string]*model.TestSubmission),
		answers:     make(map[string]map[string]model.TestAnswer),
	}
}

func (g *fakeGateway) addTest(test *model.Test, qs []model.TestQuestion) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tests[test.ID] = test
	g.questions[test.ID] = qs
}

func (g *fakeGateway) subKey(testID string, studentID uint) string {
	return fmt.Sprintf("%s:%d", testID, studentID)
}

func (g *fakeGateway) FetchTestWithQuestions(ctx context.Context, testID string) (*model.Test, []model.TestQuestion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	test, ok := g.tests[testID]
	if !ok {
		return nil, nil, util.ErrTestNotFound
	}
	return test, g.questions[testID], nil
}

func (g *fakeGateway) FetchSubmission(ctx context.Context, testID string, studentID uint) (*model.TestSubmission, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.submissions[g.subKey(testID, studentID)]
	if !ok {
		return nil, nil
	}
	clone := *sub
	return &clone, nil
}

func (g *fakeGateway) FetchAnswers(ctx context.Context, submissionID string) ([]model.TestAnswer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.TestAnswer
	for _, a := range g.answers[submissionID] {
		out = append(out, a)
	}
	return out, nil
}

func (g *fakeGateway) CreateSubmission(ctx context.Context, testID string, studentID uint, startedAt time.Time) (*model.TestSubmission, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := g.subKey(testID, studentID)
	if existing, ok := g.submissions[key]; ok {
		clone := *existing
		return &clone, nil
	}

	sub := &model.TestSubmission{
		TestID:    testID,
		StudentID: studentID,
		Status:    model.SubmissionInProgress,
		StartedAt: startedAt,
	}
	sub.ID = fmt.Sprintf("sub-%s", key)
	g.submissions[key] = sub
	clone := *sub
	return &clone, nil
}

func (g *fakeGateway) UpsertAnswer(ctx context.Context, answer *model.TestAnswer) error {
	if g.upsertEntered != nil {
		g.upsertEntered <- struct{}{}
		<-g.upsertRelease
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.upsertCalls++
	if g.failUpsert {
		return fmt.Errorf("injected upsert failure")
	}
	if sub := g.submissionByIDLocked(answer.SubmissionID); sub == nil || sub.SubmittedAt != nil {
		return util.ErrSubmissionClosed
	}
	if g.answers[answer.SubmissionID] == nil {
		g.answers[answer.SubmissionID] = make(map[string]model.TestAnswer)
	}
	g.answers[answer.SubmissionID][answer.QuestionID] = *answer
	return nil
}

func (g *fakeGateway) submissionByIDLocked(submissionID string) *model.TestSubmission {
	for _, sub := range g.submissions {
		if sub.ID == submissionID {
			return sub
		}
	}
	return nil
}

func (g *fakeGateway) UpsertAnswers(ctx context.Context, answers []model.TestAnswer) error {
	for i := range answers {
		if err := g.UpsertAnswer(ctx, &answers[i]); err != nil {
			return err
		}
	}
	return nil
}

func (g *fakeGateway) MarkSubmitted(ctx context.Context, submissionID string, submittedAt time.Time, auto bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.markSubmittedLocked(submissionID, submittedAt, auto)
}

func (g *fakeGateway) markSubmittedLocked(submissionID string, submittedAt time.Time, auto bool) error {
	for _, sub := range g.submissions {
		if sub.ID != submissionID {
			continue
		}
		if sub.SubmittedAt != nil {
			return util.ErrSubmissionClosed
		}
		at := submittedAt
		sub.SubmittedAt = &at
		sub.Status = model.SubmissionSubmitted
		sub.AutoSubmit = auto
		return nil
	}
	return util.ErrSubmissionMissing
}

func (g *fakeGateway) FinalizeSubmission(ctx context.Context, submissionID string, answers []model.TestAnswer, submittedAt time.Time, auto bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.finalizeCalls++
	if g.failFinalize {
		return fmt.Errorf("injected finalize failure")
	}
	if g.failFinalizeClosed {
		return util.ErrSubmissionClosed
	}
	if err := g.markSubmittedLocked(submissionID, submittedAt, auto); err != nil {
		return err
	}
	if g.answers[submissionID] == nil {
		g.answers[submissionID] = make(map[string]model.TestAnswer)
	}
	for _, a := range answers {
		g.answers[submissionID][a.QuestionID] = a
	}
	return nil
}

func (g *fakeGateway) FindExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]repository.ExpiredSubmissionRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var rows []repository.ExpiredSubmissionRow
	for _, sub := range g.submissions {
		if sub.SubmittedAt != nil {
			continue
		}
		test := g.tests[sub.TestID]
		if test == nil {
			continue
		}
		if !sub.Deadline(test.DurationMinutes).After(now) {
			rows = append(rows, repository.ExpiredSubmissionRow{
				TestSubmission:  *sub,
				DurationMinutes: test.DurationMinutes,
			})
		}
		if len(rows) >= limit {
			break
		}
	}
	return rows, nil
}

func (g *fakeGateway) submission(testID string, studentID uint) *model.TestSubmission {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.submissions[g.subKey(testID, studentID)]
	if !ok {
		return nil
	}
	clone := *sub
	return &clone
}

func (g *fakeGateway) answer(submissionID, questionID string) (model.TestAnswer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.answers[submissionID][questionID]
	return a, ok
}
