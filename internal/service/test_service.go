package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/repository"
	"schoolhub_backend/internal/util"
	"schoolhub_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const testCacheTTL = 10 * time.Minute

// TestService is the teacher-side authoring and grading workflow.
type TestService struct {
	Repo     *repository.TestRepository
	SubRepo  *repository.SubmissionRepository
	UserRepo *repository.UserRepository
	Redis    *redis.Client
}

func NewTestService(repo *repository.TestRepository, subRepo *repository.SubmissionRepository, userRepo *repository.UserRepository, rdb *redis.Client) *TestService {
	return &TestService{Repo: repo, SubRepo: subRepo, UserRepo: userRepo, Redis: rdb}
}

type TestQuestionReq struct {
	ID       string   `json:"id"`
	Type     string   `json:"type" binding:"required"`
	Prompt   string   `json:"prompt" binding:"required"`
	Options  []string `json:"options"`
	Points   int      `json:"points"`
	Position int      `json:"position"`
}

type TestReq struct {
	Title           *string            `json:"title"`
	Description     *string            `json:"description"`
	DurationMinutes *int               `json:"durationMinutes"`
	ClassID         *uint              `json:"classId"`
	Questions       *[]TestQuestionReq `json:"questions"`
}

func (s *TestService) CreateTest(teacherID uint, req TestReq) (*model.Test, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, errors.New("title is required")
	}

	test := &model.Test{
		Title:     *req.Title,
		TeacherID: teacherID,
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.DurationMinutes != nil {
		test.DurationMinutes = *req.DurationMinutes
	}
	test.ClassID = req.ClassID

	if err := s.Repo.Create(test); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		for _, qReq := range *req.Questions {
			q := questionFromReq(test.ID, qReq)
			if err := q.Validate(); err != nil {
				return nil, err
			}
			if err := s.Repo.CreateQuestion(q); err != nil {
				return nil, err
			}
		}
	}

	return test, nil
}

func (s *TestService) UpdateTest(teacherID uint, testID string, req TestReq) (*model.Test, error) {
	test, err := s.Repo.FindByID(testID)
	if err != nil {
		return nil, util.ErrTestNotFound
	}
	if test.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}

	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.DurationMinutes != nil {
		test.DurationMinutes = *req.DurationMinutes
	}
	if req.ClassID != nil {
		test.ClassID = req.ClassID
	}

	if err := s.Repo.Update(test); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		if err := s.reconcileQuestions(testID, *req.Questions); err != nil {
			return nil, err
		}
	}

	s.invalidateCache(testID)
	return test, nil
}

// reconcileQuestions applies the full desired question set: updates matched
// IDs, creates new entries, deletes the rest.
func (s *TestService) reconcileQuestions(testID string, reqs []TestQuestionReq) error {
	existing, err := s.Repo.ListQuestions(testID)
	if err != nil {
		return err
	}
	existingMap := make(map[string]*model.TestQuestion, len(existing))
	for i := range existing {
		existingMap[existing[i].ID] = &existing[i]
	}

	keep := make(map[string]bool)
	for _, qReq := range reqs {
		if qReq.ID != "" {
			q, ok := existingMap[qReq.ID]
			if !ok {
				continue
			}
			q.Type = model.QuestionType(qReq.Type)
			q.Prompt = qReq.Prompt
			q.Options = qReq.Options
			q.Points = qReq.Points
			q.Position = qReq.Position
			if err := q.Validate(); err != nil {
				return err
			}
			if err := s.Repo.UpdateQuestion(q); err != nil {
				return err
			}
			keep[q.ID] = true
			continue
		}

		q := questionFromReq(testID, qReq)
		if err := q.Validate(); err != nil {
			return err
		}
		if err := s.Repo.CreateQuestion(q); err != nil {
			return err
		}
	}

	for id := range existingMap {
		if !keep[id] {
			if err := s.Repo.DeleteQuestion(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func questionFromReq(testID string, req TestQuestionReq) *model.TestQuestion {
	return &model.TestQuestion{
		TestID:   testID,
		Type:     model.QuestionType(req.Type),
		Prompt:   req.Prompt,
		Options:  req.Options,
		Points:   req.Points,
		Position: req.Position,
	}
}

func (s *TestService) SetPublished(teacherID uint, testID string, published bool) error {
	test, err := s.Repo.FindByID(testID)
	if err != nil {
		return util.ErrTestNotFound
	}
	if test.TeacherID != teacherID {
		return util.ErrPermissionDenied
	}
	if err := s.Repo.SetPublished(testID, published); err != nil {
		return err
	}
	s.invalidateCache(testID)
	return nil
}

func (s *TestService) DeleteTest(teacherID uint, testID string) error {
	test, err := s.Repo.FindByID(testID)
	if err != nil {
		return util.ErrTestNotFound
	}
	if test.TeacherID != teacherID {
		return util.ErrPermissionDenied
	}
	if err := s.Repo.Delete(testID); err != nil {
		return err
	}
	s.invalidateCache(testID)
	return nil
}

func (s *TestService) GetTest(testID string) (*model.Test, []model.TestQuestion, error) {
	test, err := s.Repo.FindByID(testID)
	if err != nil {
		return nil, nil, util.ErrTestNotFound
	}
	qs, err := s.Repo.ListQuestions(testID)
	return test, qs, err
}

func (s *TestService) ListTests(teacherID uint, page, limit int) ([]repository.TestListRow, int64, error) {
	return s.Repo.ListByTeacher(teacherID, page, limit)
}

func (s *TestService) ListPublishedForStudent(classID uint) ([]model.Test, error) {
	return s.Repo.ListPublishedForClass(classID)
}

type cachedTest struct {
	Test      *model.Test          `json:"test"`
	Questions []model.TestQuestion `json:"questions"`
}

// GetPublishedTest serves the student-facing test detail through a Redis
// cache. The session core always reads the database directly; this cache is
// for browse traffic only.
func (s *TestService) GetPublishedTest(ctx context.Context, testID string) (*model.Test, []model.TestQuestion, error) {
	key := "test:published:" + testID

	if s.Redis != nil {
		if val, err := s.Redis.Get(ctx, key).Result(); err == nil {
			var cached cachedTest
			if json.Unmarshal([]byte(val), &cached) == nil && cached.Test != nil {
				return cached.Test, cached.Questions, nil
			}
		}
	}

	test, qs, err := s.GetTest(testID)
	if err != nil {
		return nil, nil, err
	}
	if !test.IsPublished {
		return nil, nil, util.ErrTestNotPublished
	}

	if s.Redis != nil {
		if payload, err := json.Marshal(cachedTest{Test: test, Questions: qs}); err == nil {
			if err := s.Redis.Set(ctx, key, payload, testCacheTTL).Err(); err != nil {
				logger.Log.Warn("test cache write failed", zap.Error(err))
			}
		}
	}
	return test, qs, nil
}

func (s *TestService) invalidateCache(testID string) {
	if s.Redis == nil {
		return
	}
	s.Redis.Del(context.Background(), "test:published:"+testID)
}

func (s *TestService) ListSubmissions(testID string, page, limit int, studentName string) ([]map[string]interface{}, int64, error) {
	return s.SubRepo.ListByTest(testID, page, limit, studentName)
}

func (s *TestService) SubmissionDetail(ctx context.Context, submissionID string) (map[string]interface{}, error) {
	submission, err := s.SubRepo.FetchSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.SubRepo.FetchAnswers(ctx, submission.ID)
	if err != nil {
		return nil, err
	}
	test, qs, err := s.GetTest(submission.TestID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"submission": submission,
		"answers":    answers,
		"test":       test,
		"questions":  qs,
	}, nil
}

type GradeReq struct {
	Scores map[string]int `json:"scores" binding:"required"` // questionID -> points awarded
}

// GradeSubmission records per-answer scores and moves the submission to
// GRADED. Only the owning teacher may grade, and only closed submissions.
func (s *TestService) GradeSubmission(ctx context.Context, teacherID uint, submissionID string, req GradeReq) error {
	submission, err := s.SubRepo.FetchSubmissionByID(ctx, submissionID)
	if err != nil {
		return err
	}
	test, err := s.Repo.FindByID(submission.TestID)
	if err != nil {
		return util.ErrTestNotFound
	}
	if test.TeacherID != teacherID {
		return util.ErrPermissionDenied
	}
	if !submission.Closed() {
		return util.ErrNotGradable
	}

	total := 0
	for _, score := range req.Scores {
		total += score
	}

	if err := s.SubRepo.GradeSubmission(ctx, submissionID, req.Scores, total); err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}

func (s *TestService) StudentSubmissions(studentID uint) ([]model.TestSubmission, error) {
	return s.SubRepo.ListByStudent(studentID)
}
