package repository

import (
	"context"
	"errors"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/util"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionRepository is the persistence gateway consumed by the exam
// session core. It implements service.ExamGateway.
type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) FetchTestWithQuestions(ctx context.Context, testID string) (*model.Test, []model.TestQuestion, error) {
	var test model.Test
	if err := r.DB.WithContext(ctx).First(&test, "id = ?", testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrTestNotFound
		}
		return nil, nil, err
	}

	var qs []model.TestQuestion
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).
		Order("position asc, created_at asc").Find(&qs).Error
	if err != nil {
		return nil, nil, err
	}
	return &test, qs, nil
}

// FetchSubmission returns nil (without error) when the student has no
// submission for the test yet.
func (r *SubmissionRepository) FetchSubmission(ctx context.Context, testID string, studentID uint) (*model.TestSubmission, error) {
	var s model.TestSubmission
	err := r.DB.WithContext(ctx).
		Where("test_id = ? AND student_id = ?", testID, studentID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) FetchSubmissionByID(ctx context.Context, submissionID string) (*model.TestSubmission, error) {
	var s model.TestSubmission
	err := r.DB.WithContext(ctx).First(&s, "id = ?", submissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSubmissionMissing
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) FetchAnswers(ctx context.Context, submissionID string) ([]model.TestAnswer, error) {
	var answers []model.TestAnswer
	err := r.DB.WithContext(ctx).Where("submission_id = ?", submissionID).Find(&answers).Error
	return answers, err
}

// CreateSubmission inserts the attempt row. The insert ignores a duplicate
// (test, student) key and re-reads the existing row instead, so two
// concurrent starts converge on one submission without a caller-side
// lookup-before-create.
func (r *SubmissionRepository) CreateSubmission(ctx context.Context, testID string, studentID uint, startedAt time.Time) (*model.TestSubmission, error) {
	s := &model.TestSubmission{
		TestID:    testID,
		StudentID: studentID,
		Status:    model.SubmissionInProgress,
		StartedAt: startedAt,
	}

	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(s)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return r.FetchSubmission(ctx, testID, studentID)
	}
	return s, nil
}

// UpsertAnswer writes one answer, keyed on (submission, question). Last
// write wins per key while the submission is open; once submitted_at is set
// the write is refused with ErrSubmissionClosed, so a persist still in flight
// at submit time cannot rewrite the flushed answers.
func (r *SubmissionRepository) UpsertAnswer(ctx context.Context, answer *model.TestAnswer) error {
	return r.UpsertAnswers(ctx, []model.TestAnswer{*answer})
}

func (r *SubmissionRepository) UpsertAnswers(ctx context.Context, answers []model.TestAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	submissionID := answers[0].SubmissionID
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the parent row so the open check serializes against the
		// finalize transaction's status update.
		var open int64
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Model(&model.TestSubmission{}).
			Where("id = ? AND submitted_at IS NULL", submissionID).
			Count(&open).Error; err != nil {
			return err
		}
		if open == 0 {
			return util.ErrSubmissionClosed
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_option", "answer_text", "updated_at"}),
		}).Create(&answers).Error
	})
}

// MarkSubmitted closes the submission without touching answers. The guard on
// submitted_at makes the transition first-writer-wins: a second close attempt
// reports the submission as already closed.
func (r *SubmissionRepository) MarkSubmitted(ctx context.Context, submissionID string, submittedAt time.Time, auto bool) error {
	res := r.DB.WithContext(ctx).Model(&model.TestSubmission{}).
		Where("id = ? AND submitted_at IS NULL", submissionID).
		Updates(map[string]interface{}{
			"status":       model.SubmissionSubmitted,
			"submitted_at": submittedAt,
			"auto_submit":  auto,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrSubmissionClosed
	}
	return nil
}

// FinalizeSubmission is the single persistence operation behind submit: the
// bulk answer flush and the status transition commit or roll back together,
// so a crash can never leave answers saved with the attempt still open.
func (r *SubmissionRepository) FinalizeSubmission(ctx context.Context, submissionID string, answers []model.TestAnswer, submittedAt time.Time, auto bool) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(answers) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"selected_option", "answer_text", "updated_at"}),
			}).Create(&answers).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&model.TestSubmission{}).
			Where("id = ? AND submitted_at IS NULL", submissionID).
			Updates(map[string]interface{}{
				"status":       model.SubmissionSubmitted,
				"submitted_at": submittedAt,
				"auto_submit":  auto,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrSubmissionClosed
		}
		return nil
	})
}

// FindExpiredInProgress returns open submissions whose deadline has passed,
// joined with the test duration. Used by the expiry sweeper.
type ExpiredSubmissionRow struct {
	model.TestSubmission
	DurationMinutes int `json:"durationMinutes"`
}

func (r *SubmissionRepository) FindExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]ExpiredSubmissionRow, error) {
	var rows []ExpiredSubmissionRow
	err := r.DB.WithContext(ctx).Table("test_submissions s").
		Select("s.*, t.duration_minutes").
		Joins("JOIN tests t ON t.id = s.test_id").
		Where("s.deleted_at IS NULL AND s.submitted_at IS NULL").
		Where("s.started_at <= DATE_SUB(?, INTERVAL t.duration_minutes MINUTE)", now).
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *SubmissionRepository) ListByTest(testID string, page, limit int, studentName string) ([]map[string]interface{}, int64, error) {
	query := r.DB.Table("test_submissions s").
		Select("s.*, u.name as student_name, u.email as student_email").
		Joins("JOIN users u ON s.student_id = u.id").
		Where("s.test_id = ? AND s.deleted_at IS NULL", testID)

	if studentName != "" {
		query = query.Where("u.name LIKE ?", "%"+studentName+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []map[string]interface{}
	offset := (page - 1) * limit
	err := query.Order("s.created_at desc").Offset(offset).Limit(limit).Scan(&results).Error
	return results, total, err
}

func (r *SubmissionRepository) ListByStudent(studentID uint) ([]model.TestSubmission, error) {
	var subs []model.TestSubmission
	err := r.DB.Where("student_id = ?", studentID).Order("created_at desc").Find(&subs).Error
	return subs, err
}

// GradeSubmission stores per-answer scores and moves the submission to
// GRADED in one transaction. Only closed submissions are gradable.
func (r *SubmissionRepository) GradeSubmission(ctx context.Context, submissionID string, scores map[string]int, total int) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s model.TestSubmission
		if err := tx.First(&s, "id = ?", submissionID).Error; err != nil {
			return err
		}
		if !s.Closed() {
			return util.ErrNotGradable
		}

		for questionID, score := range scores {
			if err := tx.Model(&model.TestAnswer{}).
				Where("submission_id = ? AND question_id = ?", submissionID, questionID).
				Update("score", score).Error; err != nil {
				return err
			}
		}

		return tx.Model(&model.TestSubmission{}).
			Where("id = ?", submissionID).
			Updates(map[string]interface{}{
				"status": model.SubmissionGraded,
				"score":  total,
			}).Error
	})
}
