package repository

import (
	"schoolhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AttendanceRepository struct {
	DB *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{DB: db}
}

func (r *AttendanceRepository) Create(record *model.AttendanceRecord) error {
	return r.DB.Create(record).Error
}

func (r *AttendanceRepository) Update(record *model.AttendanceRecord) error {
	return r.DB.Save(record).Error
}

// FindOpenByStudentAndDate returns the student's unclosed record for the
// given day, if any.
func (r *AttendanceRepository) FindOpenByStudentAndDate(studentID uint, date time.Time) (*model.AttendanceRecord, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	var record model.AttendanceRecord
	err := r.DB.Where("student_id = ? AND check_out_at IS NULL AND check_in_at >= ? AND check_in_at < ?",
		studentID, startOfDay, endOfDay).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *AttendanceRepository) FindByStudentAndDate(studentID uint, date time.Time) (*model.AttendanceRecord, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	var record model.AttendanceRecord
	err := r.DB.Where("student_id = ? AND check_in_at >= ? AND check_in_at < ?",
		studentID, startOfDay, endOfDay).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *AttendanceRepository) ListByStudent(studentID uint, from, to time.Time) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	err := r.DB.Where("student_id = ? AND check_in_at >= ? AND check_in_at < ?", studentID, from, to).
		Order("check_in_at desc").Find(&records).Error
	return records, err
}

func (r *AttendanceRepository) ListByClassAndDate(classID uint, date time.Time) ([]map[string]interface{}, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	var results []map[string]interface{}
	err := r.DB.Table("attendance_records a").
		Select("a.*, u.name as student_name").
		Joins("JOIN users u ON a.student_id = u.id").
		Where("a.class_id = ? AND a.check_in_at >= ? AND a.check_in_at < ? AND a.deleted_at IS NULL",
			classID, startOfDay, endOfDay).
		Order("a.check_in_at asc").
		Scan(&results).Error
	return results, err
}
