package util

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailRegistered   = errors.New("email already registered")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrTestNotFound      = errors.New("test not found")
	ErrTestNotPublished  = errors.New("test not published or not accessible")
	ErrNotStartable      = errors.New("test session is not in a startable state")
	ErrSubmissionClosed  = errors.New("submission already closed")
	ErrSubmissionMissing = errors.New("submission not found")
	ErrAnswerMismatch    = errors.New("answer value does not match question type")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrOutsideGeofence   = errors.New("check-in location outside the allowed area")
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
	ErrNotCheckedIn      = errors.New("no open check-in record")
	ErrNotGradable       = errors.New("submission not ready for grading")
)
