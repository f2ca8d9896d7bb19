package model

import (
	"time"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
)

// AttendanceRecord captures one geolocated check-in, closed by check-out.
// swagger:model AttendanceRecord
type AttendanceRecord struct {
	BaseModel
	StudentID      uint             `gorm:"index;type:bigint unsigned;not null" json:"studentId"`
	ClassID        uint             `gorm:"index;type:bigint unsigned;not null" json:"classId"`
	CheckInAt      time.Time        `gorm:"not null;index" json:"checkInAt"`
	CheckOutAt     *time.Time       `json:"checkOutAt,omitempty"`
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
	DistanceMeters float64          `json:"distanceMeters"` // distance from the class geofence center at check-in
	Status         AttendanceStatus `gorm:"size:20;default:'present'" json:"status"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}
