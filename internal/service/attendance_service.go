package service

import (
	"errors"
	"schoolhub_backend/internal/config"
	"schoolhub_backend/internal/model"
	"schoolhub_backend/internal/repository"
	"schoolhub_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

// AttendanceService implements geolocated check-in/check-out against a class
// geofence.
type AttendanceService struct {
	Repo      *repository.AttendanceRepository
	ClassRepo *repository.ClassRepository
	UserRepo  *repository.UserRepository
	Cfg       *config.AttendanceConfig
}

func NewAttendanceService(repo *repository.AttendanceRepository, classRepo *repository.ClassRepository, userRepo *repository.UserRepository, cfg *config.AttendanceConfig) *AttendanceService {
	return &AttendanceService{Repo: repo, ClassRepo: classRepo, UserRepo: userRepo, Cfg: cfg}
}

// evaluateCheckIn applies the geofence and lateness rules. Pure so it can be
// tested without the database.
func evaluateCheckIn(loc *model.Location, lat, lng float64, now time.Time, cfg *config.AttendanceConfig) (float64, model.AttendanceStatus, error) {
	distance := util.HaversineMeters(loc.Latitude, loc.Longitude, lat, lng)
	if distance > loc.RadiusMeters {
		return distance, "", util.ErrOutsideGeofence
	}

	classStart := time.Date(now.Year(), now.Month(), now.Day(), cfg.ClassStartHour, 0, 0, 0, now.Location())
	status := model.AttendancePresent
	if now.After(classStart.Add(time.Duration(cfg.LateGraceMinutes) * time.Minute)) {
		status = model.AttendanceLate
	}
	return distance, status, nil
}

func (s *AttendanceService) CheckIn(studentID uint, lat, lng float64) (*model.AttendanceRecord, error) {
	class, err := s.ClassRepo.FindClassOfStudent(studentID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, util.ErrPermissionDenied
	}

	var loc *model.Location
	if class.LocationID != nil {
		loc, err = s.ClassRepo.FindLocation(*class.LocationID)
	} else {
		loc, err = s.ClassRepo.DefaultLocation()
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if _, err := s.Repo.FindByStudentAndDate(studentID, now); err == nil {
		return nil, util.ErrAlreadyCheckedIn
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	distance, status, err := evaluateCheckIn(loc, lat, lng, now, s.Cfg)
	if err != nil {
		return nil, err
	}

	record := &model.AttendanceRecord{
		StudentID:      studentID,
		ClassID:        class.ID,
		CheckInAt:      now,
		Latitude:       lat,
		Longitude:      lng,
		DistanceMeters: distance,
		Status:         status,
	}
	if err := s.Repo.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *AttendanceService) CheckOut(studentID uint) (*model.AttendanceRecord, error) {
	record, err := s.Repo.FindOpenByStudentAndDate(studentID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotCheckedIn
		}
		return nil, err
	}

	now := time.Now()
	record.CheckOutAt = &now
	if err := s.Repo.Update(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *AttendanceService) StudentHistory(studentID uint, days int) ([]model.AttendanceRecord, error) {
	if days <= 0 {
		days = 30
	}
	to := time.Now().Add(24 * time.Hour)
	from := to.AddDate(0, 0, -days-1)
	return s.Repo.ListByStudent(studentID, from, to)
}

// ClassDay is the teacher's roll-call view for one day.
func (s *AttendanceService) ClassDay(teacherID, classID uint, date time.Time) ([]map[string]interface{}, error) {
	class, err := s.ClassRepo.FindByID(classID)
	if err != nil {
		return nil, err
	}
	if class.TeacherID != teacherID {
		return nil, util.ErrPermissionDenied
	}
	return s.Repo.ListByClassAndDate(classID, date)
}

// ChildHistory is the parent portal view; the parent-student link is
// verified first.
func (s *AttendanceService) ChildHistory(parentID, studentID uint, days int) ([]model.AttendanceRecord, error) {
	ok, err := s.UserRepo.IsParentOf(parentID, studentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrPermissionDenied
	}
	return s.StudentHistory(studentID, days)
}
