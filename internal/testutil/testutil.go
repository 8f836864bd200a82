// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens an in-memory SQLite database private to the test and migrates models.
func NewDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Logger returns a no-op sugared logger.
func Logger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// NewOnboarding returns a valid record that has not been persisted.
func NewOnboarding(nationalID string) *model.Onboarding {
	return &model.Onboarding{
		NationalID:  nationalID,
		FirstName:   "Jane",
		LastName:    "Doe",
		Gender:      model.GenderFemale,
		DateOfBirth: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Email:       "jane.doe@example.com",
		Phone:       "+31612345678",
		Nationality: "Dutch",
		Street:      "Damrak 1",
		City:        "Amsterdam",
		PostalCode:  "1012LG",
		Country:     "Netherlands",
		Status:      model.StatusInitiated,
	}
}
