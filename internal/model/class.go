package model

// Location is a named geofence used for attendance checks.
type Location struct {
	BaseModel
	Name         string  `gorm:"size:100;not null" json:"name"`
	Latitude     float64 `gorm:"not null" json:"latitude"`
	Longitude    float64 `gorm:"not null" json:"longitude"`
	RadiusMeters float64 `gorm:"default:100" json:"radiusMeters"`
}

func (Location) TableName() string {
	return "locations"
}

// swagger:model SchoolClass
type SchoolClass struct {
	BaseModel
	Name       string `gorm:"size:100;not null" json:"name"`
	Grade      string `gorm:"size:20" json:"grade"`
	TeacherID  uint   `gorm:"index;type:bigint unsigned" json:"teacherId"`
	LocationID *uint  `gorm:"index;type:bigint unsigned" json:"locationId,omitempty"`
}

func (SchoolClass) TableName() string {
	return "school_classes"
}

// ClassMember is one roster entry.
type ClassMember struct {
	BaseModel
	ClassID   uint `gorm:"type:bigint unsigned;not null;uniqueIndex:idx_class_student" json:"classId"`
	StudentID uint `gorm:"type:bigint unsigned;not null;uniqueIndex:idx_class_student" json:"studentId"`
}

func (ClassMember) TableName() string {
	return "class_members"
}
