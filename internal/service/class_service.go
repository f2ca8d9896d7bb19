package service

import (
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/repository"
	"schoolhub_backend/internal/util"
)

type ClassService struct {
	Repo     *repository.ClassRepository
	UserRepo *repository.UserRepository
}

func NewClassService(repo *repository.ClassRepository, userRepo *repository.UserRepository) *ClassService {
	return &ClassService{Repo: repo, UserRepo: userRepo}
}

type ClassReq struct {
	Name       string `json:"name" binding:"required"`
	Grade      string `json:"grade"`
	TeacherID  uint   `json:"teacherId" binding:"required"`
	LocationID *uint  `json:"locationId"`
}

func (s *ClassService) Create(req ClassReq) (*model.SchoolClass, error) {
	teacher, err := s.UserRepo.FindByID(req.TeacherID)
	if err != nil {
		return nil, util.ErrUserNotFound
	}
	if teacher.Role != model.Teacher && teacher.Role != model.Admin {
		return nil, util.ErrPermissionDenied
	}

	class := &model.SchoolClass{
		Name:       req.Name,
		Grade:      req.Grade,
		TeacherID:  req.TeacherID,
		LocationID: req.LocationID,
	}
	if err := s.Repo.Create(class); err != nil {
		return nil, err
	}
	return class, nil
}

func (s *ClassService) Get(classID uint) (*model.SchoolClass, []model.User, error) {
	class, err := s.Repo.FindByID(classID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.Repo.ListMembers(classID)
	return class, members, err
}

func (s *ClassService) ListByTeacher(teacherID uint) ([]model.SchoolClass, error) {
	return s.Repo.ListByTeacher(teacherID)
}

func (s *ClassService) AddStudent(classID, studentID uint) error {
	student, err := s.UserRepo.FindByID(studentID)
	if err != nil {
		return util.ErrUserNotFound
	}
	if student.Role != model.Student {
		return util.ErrPermissionDenied
	}
	return s.Repo.AddMember(&model.ClassMember{ClassID: classID, StudentID: studentID})
}

func (s *ClassService) RemoveStudent(classID, studentID uint) error {
	return s.Repo.RemoveMember(classID, studentID)
}

func (s *ClassService) ClassOfStudent(studentID uint) (*model.SchoolClass, error) {
	return s.Repo.FindClassOfStudent(studentID)
}

type LocationReq struct {
	Name         string  `json:"name" binding:"required"`
	Latitude     float64 `json:"latitude" binding:"required"`
	Longitude    float64 `json:"longitude" binding:"required"`
	RadiusMeters float64 `json:"radiusMeters"`
}

func (s *ClassService) CreateLocation(req LocationReq) (*model.Location, error) {
	loc := &model.Location{
		Name:         req.Name,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: req.RadiusMeters,
	}
	if loc.RadiusMeters <= 0 {
		loc.RadiusMeters = 100
	}
	if err := s.Repo.CreateLocation(loc); err != nil {
		return nil, err
	}
	return loc, nil
}
