package repository

import (
	"errors"
	"schoolhub_backend/internal/model"

	"gorm.io/gorm"
)

type ClassRepository struct {
	DB *gorm.DB
}

func NewClassRepository(db *gorm.DB) *ClassRepository {
	return &ClassRepository{DB: db}
}

func (r *ClassRepository) Create(class *model.SchoolClass) error {
	return r.DB.Create(class).Error
}

func (r *ClassRepository) FindByID(id uint) (*model.SchoolClass, error) {
	var class model.SchoolClass
	err := r.DB.First(&class, id).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *ClassRepository) Update(class *model.SchoolClass) error {
	return r.DB.Save(class).Error
}

func (r *ClassRepository) ListByTeacher(teacherID uint) ([]model.SchoolClass, error) {
	var classes []model.SchoolClass
	err := r.DB.Where("teacher_id = ?", teacherID).Order("name asc").Find(&classes).Error
	return classes, err
}

func (r *ClassRepository) AddMember(member *model.ClassMember) error {
	return r.DB.Create(member).Error
}

func (r *ClassRepository) RemoveMember(classID, studentID uint) error {
	return r.DB.Where("class_id = ? AND student_id = ?", classID, studentID).
		Delete(&model.ClassMember{}).Error
}

func (r *ClassRepository) ListMembers(classID uint) ([]model.User, error) {
	var students []model.User
	err := r.DB.Table("users u").
		Joins("JOIN class_members cm ON cm.student_id = u.id").
		Where("cm.class_id = ? AND cm.deleted_at IS NULL", classID).
		Order("u.name asc").
		Find(&students).Error
	return students, err
}

// FindClassOfStudent returns the student's class. A student belongs to at
// most one class in this deployment.
func (r *ClassRepository) FindClassOfStudent(studentID uint) (*model.SchoolClass, error) {
	var class model.SchoolClass
	err := r.DB.Table("school_classes c").
		Joins("JOIN class_members cm ON cm.class_id = c.id").
		Where("cm.student_id = ? AND cm.deleted_at IS NULL", studentID).
		First(&class).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *ClassRepository) FindLocation(locationID uint) (*model.Location, error) {
	var loc model.Location
	err := r.DB.First(&loc, locationID).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *ClassRepository) DefaultLocation() (*model.Location, error) {
	var loc model.Location
	err := r.DB.Order("id asc").First(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *ClassRepository) CreateLocation(loc *model.Location) error {
	return r.DB.Create(loc).Error
}
