package service

import (
	"context"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/repository"
	"time"
)

// ExamGateway is the persistence contract the exam session core consumes.
// The production implementation is repository.SubmissionRepository; tests
// substitute an in-memory fake.
type ExamGateway interface {
	FetchTestWithQuestions(ctx context.Context, testID string) (*model.Test, []model.TestQuestion, error)
	// FetchSubmission returns (nil, nil) when the student has no submission.
	FetchSubmission(ctx context.Context, testID string, studentID uint) (*model.TestSubmission, error)
	FetchAnswers(ctx context.Context, submissionID string) ([]model.TestAnswer, error)
	CreateSubmission(ctx context.Context, testID string, studentID uint, startedAt time.Time) (*model.TestSubmission, error)
	UpsertAnswer(ctx context.Context, answer *model.TestAnswer) error
	UpsertAnswers(ctx context.Context, answers []model.TestAnswer) error
	MarkSubmitted(ctx context.Context, submissionID string, submittedAt time.Time, auto bool) error
	// FinalizeSubmission flushes all answers and closes the submission in a
	// single transaction.
	FinalizeSubmission(ctx context.Context, submissionID string, answers []model.TestAnswer, submittedAt time.Time, auto bool) error
	FindExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]repository.ExpiredSubmissionRow, error)
}

// Clock is the leaf time source, injectable so session tests can pin time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
