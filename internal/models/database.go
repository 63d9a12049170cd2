package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/kwanter/sakip-sub003/internal/config"
	"github.com/kwanter/sakip-sub003/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormWriter routes gorm's log lines into the zerolog logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.Debug().Str("component", "gorm").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// InitDB opens the configured database. debug enables SQL statement logging.
func InitDB(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Institution{},
		&User{},
		&Indicator{},
		&Target{},
		&PerformanceData{},
		&AssessmentCriterion{},
		&Assessment{},
		&AssessmentCriterionScore{},
		&Report{},
		&IndicatorScore{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
	)
}

// DefaultCriteria is the rubric seeded on a fresh database.
var DefaultCriteria = []AssessmentCriterion{
	{Code: "PERENCANAAN", Name: "Perencanaan Kinerja", MaxScore: 100, Weight: 30, SortOrder: 1, IsActive: true},
	{Code: "PENGUKURAN", Name: "Pengukuran Kinerja", MaxScore: 100, Weight: 30, SortOrder: 2, IsActive: true},
	{Code: "PELAPORAN", Name: "Pelaporan Kinerja", MaxScore: 100, Weight: 15, SortOrder: 3, IsActive: true},
	{Code: "EVALUASI", Name: "Evaluasi Akuntabilitas Kinerja Internal", MaxScore: 100, Weight: 10, SortOrder: 4, IsActive: true},
	{Code: "CAPAIAN", Name: "Capaian Kinerja", MaxScore: 100, Weight: 15, SortOrder: 5, IsActive: true},
}

// SeedDefaultData creates default data if not exists
func SeedDefaultData(db *gorm.DB) error {
	var criteriaCount int64
	db.Model(&AssessmentCriterion{}).Count(&criteriaCount)
	if criteriaCount == 0 {
		criteria := make([]AssessmentCriterion, len(DefaultCriteria))
		copy(criteria, DefaultCriteria)
		if err := db.Create(&criteria).Error; err != nil {
			return err
		}
	}

	defaultConfigs := []SystemConfig{
		{Key: "log_retention_days", Value: "90", Type: "int", Group: "system", Label: "System Log Retention Days"},
		{Key: "score_recalculate_enabled", Value: "true", Type: "bool", Group: "scoring", Label: "Nightly Score Recalculation"},
		{Key: "institution_name", Value: "", Type: "string", Group: "system", Label: "Default Institution Name"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where(&SystemConfig{Key: cfg.Key}).Count(&count)
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
