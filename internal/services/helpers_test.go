package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	admin    = Principal{UserID: 1, Role: workflow.RoleAdmin, IP: "127.0.0.1"}
	approver = Principal{UserID: 2, Role: workflow.RoleApprover, IP: "127.0.0.1"}
	operator = Principal{UserID: 3, Role: workflow.RoleOperator, IP: "127.0.0.1"}
	viewer   = Principal{UserID: 4, Role: workflow.RoleViewer, IP: "127.0.0.1"}
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	require.NoError(t, models.SeedDefaultData(db))
	return db
}

// testEnv wires every service against one database, the way the server does.
type testEnv struct {
	db           *gorm.DB
	queue        *SyncQueue
	logs         *SystemLogService
	institutions *InstitutionService
	indicators   *IndicatorService
	targets      *TargetService
	data         *PerformanceDataService
	assessments  *AssessmentService
	reports      *ReportService
	scores       *ScoreService
	dashboard    *DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	machine := workflow.NewMachine(nil)
	logs := NewSystemLogService(db)
	queue := NewSyncQueue()
	scores := NewScoreService(db, logs)
	queue.SetProcessor(scores.ProcessTask)
	t.Cleanup(func() { queue.Close() })

	return &testEnv{
		db:           db,
		queue:        queue,
		logs:         logs,
		institutions: NewInstitutionService(db, logs),
		indicators:   NewIndicatorService(db, logs),
		targets:      NewTargetService(db, machine, logs),
		data:         NewPerformanceDataService(db, machine, logs, queue),
		assessments:  NewAssessmentService(db, machine, logs),
		reports:      NewReportService(db, machine, logs),
		scores:       scores,
		dashboard:    NewDashboardService(db),
	}
}

// seedIndicator creates an institution and one quarterly indicator.
func (e *testEnv) seedIndicator(t *testing.T) (*models.Institution, *models.Indicator) {
	t.Helper()
	inst, err := e.institutions.Create(admin, &CreateInstitutionRequest{Code: "bpkad", Name: "Badan Keuangan Daerah"})
	require.NoError(t, err)
	ind, err := e.indicators.Create(admin, &CreateIndicatorRequest{
		InstitutionID:   inst.ID,
		Code:            "IKU-01",
		Name:            "Realisasi pendapatan",
		MeasurementUnit: "juta",
		Frequency:       "quarterly",
	})
	require.NoError(t, err)
	return inst, ind
}

func (e *testEnv) seedTarget(t *testing.T, indicatorID uint, year int, value float64) *models.Target {
	t.Helper()
	change, err := e.targets.Create(operator, &CreateTargetRequest{IndicatorID: indicatorID, Year: year, TargetValue: value})
	require.NoError(t, err)
	return change.Target
}

func (e *testEnv) record(t *testing.T, indicatorID uint, period string, actual float64) *models.PerformanceData {
	t.Helper()
	change, err := e.data.Create(operator, &CreatePerformanceDataRequest{IndicatorID: indicatorID, Period: period, ActualValue: actual})
	require.NoError(t, err)
	return change.Data
}

// validate walks a data point through submit and validate.
func (e *testEnv) validate(t *testing.T, id uint) *models.PerformanceData {
	t.Helper()
	_, err := e.data.Submit(operator, id)
	require.NoError(t, err)
	d, err := e.data.Validate(approver, id)
	require.NoError(t, err)
	e.queue.Wait()
	return d
}

func (e *testEnv) auditCount(t *testing.T, entityType string, id uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.SystemLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, id).Count(&n).Error)
	return n
}
