package model

import (
	"time"
)

type SubmissionStatus string

const (
	SubmissionInProgress SubmissionStatus = "IN_PROGRESS"
	SubmissionSubmitted  SubmissionStatus = "SUBMITTED"
	SubmissionGraded     SubmissionStatus = "GRADED"
)

// TestSubmission is one student's attempt at one test. The composite unique
// index makes "one submission per (test, student)" a database guarantee
// rather than a caller-side lookup-before-create.
type TestSubmission struct {
	UUIDBase
	TestID      string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_test_student" json:"testId"`
	StudentID   uint             `gorm:"type:bigint unsigned;not null;uniqueIndex:idx_test_student" json:"studentId"`
	Status      SubmissionStatus `gorm:"size:20;default:'IN_PROGRESS'" json:"status"`
	StartedAt   time.Time        `gorm:"not null" json:"startedAt"`
	SubmittedAt *time.Time       `json:"submittedAt,omitempty"`
	AutoSubmit  bool             `gorm:"default:false" json:"autoSubmit"`
	Score       *int             `json:"score,omitempty"`
}

func (TestSubmission) TableName() string {
	return "test_submissions"
}

// Closed reports whether the submission has reached a terminal state. The
// submittedAt timestamp is authoritative: it is written in the same
// transaction as the answer flush, so a status column lagging behind a crash
// still reads as closed.
func (s *TestSubmission) Closed() bool {
	return s.SubmittedAt != nil || s.Status != SubmissionInProgress
}

// Deadline is the wall-clock instant at which the attempt expires.
func (s *TestSubmission) Deadline(durationMinutes int) time.Time {
	return s.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)
}

// TestAnswer holds the persisted answer of one question within one
// submission. Exactly one of SelectedOption and AnswerText is meaningful,
// depending on the question type. The composite unique index gives the
// bulk flush upsert semantics, so retries never duplicate rows.
type TestAnswer struct {
	UUIDBase
	SubmissionID   string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_submission_question" json:"submissionId"`
	QuestionID     string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_submission_question" json:"questionId"`
	SelectedOption *int    `json:"selectedOption,omitempty"`
	AnswerText     *string `gorm:"type:text" json:"answerText,omitempty"`
	Score          *int    `json:"score,omitempty"`
}

func (TestAnswer) TableName() string {
	return "test_answers"
}
