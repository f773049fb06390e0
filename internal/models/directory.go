package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Directory reference data. These rows are owned by the school-administration
// side of the platform; the fee subsystem only reads them for lookups, scoping
// checks and display fields.

// School identifies a tenant
type School struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name string `gorm:"type:varchar(255)" json:"name"`
}

// Class is a class/section within a school
type Class struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	SchoolID uint   `gorm:"index" json:"school_id"`
	Name     string `gorm:"type:varchar(100)" json:"name"`
	Section  string `gorm:"type:varchar(20)" json:"section"`
}

// DisplayName combines name and section for reporting
func (c Class) DisplayName() string {
	if c.Section == "" {
		return c.Name
	}
	return fmt.Sprintf("%s %s", c.Name, c.Section)
}

// Student is an enrolled student
type Student struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	SchoolID    uint   `gorm:"index" json:"school_id"`
	ClassID     uint   `gorm:"index" json:"class_id"`
	Name        string `gorm:"type:varchar(255)" json:"name"`
	AdmissionNo string `gorm:"type:varchar(50);index" json:"admission_no"`
	Phone       string `gorm:"type:varchar(20)" json:"phone"`
	Status      string `gorm:"type:varchar(20);default:'active'" json:"status"`

	// Relationships
	Class Class `gorm:"foreignKey:ClassID" json:"class,omitempty"`
}
