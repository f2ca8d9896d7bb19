package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	Essay          QuestionType = "ESSAY"
)

// OptionList stores the ordered answer options of a choice question as JSON.
type OptionList []string

func (o OptionList) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal(o)
	return string(b), err
}

func (o *OptionList) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return errors.New("unsupported type for OptionList")
	}
}

// swagger:model Test
type Test struct {
	UUIDBase
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	DurationMinutes int        `gorm:"default:0" json:"durationMinutes"`
	IsPublished     bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	TeacherID       uint       `gorm:"index;type:bigint unsigned" json:"teacherId"`
	ClassID         *uint      `gorm:"index;type:bigint unsigned" json:"classId,omitempty"`
}

func (Test) TableName() string {
	return "tests"
}

// swagger:model TestQuestion
type TestQuestion struct {
	UUIDBase
	TestID   string       `gorm:"index;type:varchar(36);not null" json:"testId"`
	Type     QuestionType `gorm:"size:20;not null" json:"type"`
	Prompt   string       `gorm:"type:text;not null" json:"prompt"`
	Options  OptionList   `gorm:"type:json" json:"options,omitempty"`
	Points   int          `gorm:"default:0" json:"points"`
	Position int          `gorm:"default:0" json:"position"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}

// Validate enforces the options/type coupling: a choice question must carry
// options, an essay question must not.
func (q *TestQuestion) Validate() error {
	switch q.Type {
	case MultipleChoice:
		if len(q.Options) == 0 {
			return errors.New("multiple choice question requires options")
		}
	case Essay:
		if len(q.Options) != 0 {
			return errors.New("essay question must not have options")
		}
	default:
		return errors.New("unknown question type")
	}
	return nil
}
