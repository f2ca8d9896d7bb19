package service

import (
	"errors"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/repository"
	"schoolhub_backend/internal/util"

	"gorm.io/gorm"
)

type UserService struct {
	Repo *repository.UserRepository
}

func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{Repo: repo}
}

func (s *UserService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.Repo.FindByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

func (s *UserService) UpdateProfile(userID uint, name, avatar string) (*model.User, error) {
	user, err := s.Repo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		user.Name = name
	}
	if avatar != "" {
		user.Avatar = avatar
	}
	if err := s.Repo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ListByRole(role model.UserRole, page, limit int) ([]model.User, int64, error) {
	return s.Repo.List(role, page, limit)
}

// LinkParent attaches a parent account to a student. Admin-only; the roles
// of both ends are verified.
func (s *UserService) LinkParent(parentID, studentID uint) error {
	parent, err := s.Repo.FindByID(parentID)
	if err != nil {
		return util.ErrUserNotFound
	}
	student, err := s.Repo.FindByID(studentID)
	if err != nil {
		return util.ErrUserNotFound
	}
	if parent.Role != model.Parent || student.Role != model.Student {
		return util.ErrPermissionDenied
	}
	return s.Repo.CreateParentLink(&model.ParentLink{
		ParentID:  parentID,
		StudentID: studentID,
	})
}

func (s *UserService) Children(parentID uint) ([]model.User, error) {
	return s.Repo.FindChildren(parentID)
}

// GuardParentOf fails unless the parent is linked to the student.
func (s *UserService) GuardParentOf(parentID, studentID uint) error {
	ok, err := s.Repo.IsParentOf(parentID, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrPermissionDenied
	}
	return nil
}
