package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schoolfees_app/internal/models"
)

// newTestDB opens a fresh in-memory database per test. The pool is pinned to
// a single connection so every session sees the same memory database and
// concurrent transactions serialize the way row locks do in production.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(db))
	return db
}

func seedSchool(t *testing.T, db *gorm.DB, name string) models.School {
	t.Helper()
	school := models.School{Name: name}
	require.NoError(t, db.Create(&school).Error)
	return school
}

func seedClass(t *testing.T, db *gorm.DB, schoolID uint, name, section string) models.Class {
	t.Helper()
	class := models.Class{SchoolID: schoolID, Name: name, Section: section}
	require.NoError(t, db.Create(&class).Error)
	return class
}

func seedStudent(t *testing.T, db *gorm.DB, schoolID, classID uint, name string) models.Student {
	t.Helper()
	student := models.Student{
		SchoolID:    schoolID,
		ClassID:     classID,
		Name:        name,
		AdmissionNo: "ADM-" + name,
		Status:      "active",
	}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedSchedule(t *testing.T, db *gorm.DB, schoolID, classID uint, year string, total decimal.Decimal, startDate time.Time) models.FeeSchedule {
	t.Helper()
	schedule := models.FeeSchedule{
		SchoolID:         schoolID,
		ClassID:          classID,
		AcademicYear:     year,
		TotalAmount:      total,
		TuitionFee:       total,
		InstallmentCount: 1,
		StartDate:        startDate,
		IsActive:         true,
	}
	require.NoError(t, db.Create(&schedule).Error)
	return schedule
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
