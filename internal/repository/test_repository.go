package repository

import (
	"schoolhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) Create(test *model.Test) error {
	return r.DB.Create(test).Error
}

func (r *TestRepository) FindByID(id string) (*model.Test, error) {
	var test model.Test
	err := r.DB.First(&test, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *TestRepository) Update(test *model.Test) error {
	return r.DB.Save(test).Error
}

func (r *TestRepository) SetPublished(id string, published bool) error {
	updates := map[string]interface{}{"is_published": published}
	if published {
		now := time.Now()
		updates["published_at"] = &now
	}
	return r.DB.Model(&model.Test{}).Where("id = ?", id).Updates(updates).Error
}

func (r *TestRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", id).Delete(&model.TestQuestion{}).Error; err != nil {
			return err
		}
		var submissionIDs []string
		if err := tx.Model(&model.TestSubmission{}).Where("test_id = ?", id).
			Pluck("id", &submissionIDs).Error; err == nil && len(submissionIDs) > 0 {
			if err := tx.Where("submission_id IN ?", submissionIDs).Delete(&model.TestAnswer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("test_id = ?", id).Delete(&model.TestSubmission{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Test{}, "id = ?", id).Error
	})
}

type TestListRow struct {
	model.Test
	QuestionCount   int `json:"questionCount"`
	SubmittedCount  int `json:"submittedCount"`
	InProgressCount int `json:"inProgressCount"`
}

func (r *TestRepository) ListByTeacher(teacherID uint, page, limit int) ([]TestListRow, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Test{}).
		Where("teacher_id = ? AND deleted_at IS NULL", teacherID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tests []TestListRow
	query := r.DB.Table("tests t").
		Select("t.*, "+
			"(SELECT COUNT(*) FROM test_questions q WHERE q.test_id = t.id AND q.deleted_at IS NULL) as question_count, "+
			"(SELECT COUNT(*) FROM test_submissions s WHERE s.test_id = t.id AND s.deleted_at IS NULL AND s.submitted_at IS NOT NULL) as submitted_count, "+
			"(SELECT COUNT(*) FROM test_submissions s WHERE s.test_id = t.id AND s.deleted_at IS NULL AND s.submitted_at IS NULL) as in_progress_count").
		Where("t.teacher_id = ? AND t.deleted_at IS NULL", teacherID)

	if limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("t.created_at desc").Scan(&tests).Error
	return tests, total, err
}

func (r *TestRepository) ListPublishedForClass(classID uint) ([]model.Test, error) {
	var tests []model.Test
	err := r.DB.Where("is_published = ? AND (class_id IS NULL OR class_id = ?)", true, classID).
		Order("published_at desc").Find(&tests).Error
	return tests, err
}

func (r *TestRepository) CreateQuestion(q *model.TestQuestion) error {
	return r.DB.Create(q).Error
}

func (r *TestRepository) UpdateQuestion(q *model.TestQuestion) error {
	return r.DB.Save(q).Error
}

func (r *TestRepository) DeleteQuestion(id string) error {
	return r.DB.Delete(&model.TestQuestion{}, "id = ?", id).Error
}

func (r *TestRepository) ListQuestions(testID string) ([]model.TestQuestion, error) {
	var qs []model.TestQuestion
	err := r.DB.Where("test_id = ?", testID).Order("position asc, created_at asc").Find(&qs).Error
	return qs, err
}
