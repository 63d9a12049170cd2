package services

import (
	"time"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/scoring"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"gorm.io/gorm"
)

type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

type DashboardRequest struct {
	Year          int  `form:"year"`
	InstitutionID uint `form:"institution_id"`
}

type DashboardStats struct {
	Indicators         int64   `json:"indicators"`
	ActiveIndicators   int64   `json:"active_indicators"`
	DataPoints         int64   `json:"data_points"`
	AveragePerformance float64 `json:"average_performance"`
	AverageScore       float64 `json:"average_score"`
}

type IndicatorRank struct {
	IndicatorID  uint    `json:"indicator_id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	OverallScore float64 `json:"overall_score"`
	Grade        string  `json:"grade"`
}

type DashboardResponse struct {
	Year                 int              `json:"year"`
	Stats                DashboardStats   `json:"stats"`
	TargetStatus         map[string]int64 `json:"target_status"`
	DataStatus           map[string]int64 `json:"data_status"`
	AssessmentStatus     map[string]int64 `json:"assessment_status"`
	ReportStatus         map[string]int64 `json:"report_status"`
	CategoryDistribution map[string]int64 `json:"category_distribution"`
	GradeDistribution    map[string]int64 `json:"grade_distribution"`
	TopIndicators        []IndicatorRank  `json:"top_indicators"`
}

type groupCount struct {
	Bucket string
	Count  int64
}

// zeroed seeds a distribution with every known key so absent groups show as 0.
func zeroed[T ~string](keys []T) map[string]int64 {
	m := make(map[string]int64, len(keys))
	for _, k := range keys {
		m[string(k)] = 0
	}
	return m
}

func fill(m map[string]int64, rows []groupCount) {
	for _, r := range rows {
		m[r.Bucket] += r.Count
	}
}

// GetStats summarizes one year. Year defaults to the current year.
func (s *DashboardService) GetStats(req *DashboardRequest) (*DashboardResponse, error) {
	year := req.Year
	if year == 0 {
		year = time.Now().Year()
	}

	indicators := func() *gorm.DB {
		q := s.db.Model(&models.Indicator{})
		if req.InstitutionID != 0 {
			q = q.Where("institution_id = ?", req.InstitutionID)
		}
		return q
	}
	// scoped joins a table carrying indicator_id to the institution filter.
	scoped := func(model interface{}, table string) *gorm.DB {
		q := s.db.Model(model)
		if req.InstitutionID != 0 {
			q = q.Joins("JOIN indicators ON indicators.id = "+table+".indicator_id").
				Where("indicators.institution_id = ?", req.InstitutionID)
		}
		return q
	}

	resp := &DashboardResponse{
		Year:                 year,
		TargetStatus:         zeroed(workflow.States(workflow.KindTarget)),
		DataStatus:           zeroed(workflow.States(workflow.KindPerformanceData)),
		AssessmentStatus:     zeroed(workflow.States(workflow.KindAssessment)),
		ReportStatus:         zeroed(workflow.States(workflow.KindReport)),
		CategoryDistribution: zeroed([]scoring.Category{scoring.CategoryExcellent, scoring.CategoryGood, scoring.CategoryFair, scoring.CategoryPoor}),
		GradeDistribution:    zeroed(scoring.Grades),
	}

	if err := indicators().Count(&resp.Stats.Indicators).Error; err != nil {
		return nil, err
	}
	if err := indicators().Where("is_active = ?", true).Count(&resp.Stats.ActiveIndicators).Error; err != nil {
		return nil, err
	}

	var rows []groupCount
	if err := scoped(&models.Target{}, "targets").
		Select("targets.status AS bucket, COUNT(*) AS count").
		Where("targets.year = ?", year).
		Group("targets.status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	fill(resp.TargetStatus, rows)

	rows = nil
	if err := scoped(&models.PerformanceData{}, "performance_data").
		Select("performance_data.status AS bucket, COUNT(*) AS count").
		Where("performance_data.year = ?", year).
		Group("performance_data.status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	fill(resp.DataStatus, rows)
	for _, r := range rows {
		resp.Stats.DataPoints += r.Count
	}

	// Performance figures only count validated data.
	rows = nil
	if err := scoped(&models.PerformanceData{}, "performance_data").
		Select("performance_data.category AS bucket, COUNT(*) AS count").
		Where("performance_data.year = ? AND performance_data.status = ?", year, workflow.StatusValidated).
		Group("performance_data.category").Scan(&rows).Error; err != nil {
		return nil, err
	}
	fill(resp.CategoryDistribution, rows)

	var avg float64
	if err := scoped(&models.PerformanceData{}, "performance_data").
		Select("COALESCE(AVG(performance_data.performance_percentage), 0)").
		Where("performance_data.year = ? AND performance_data.status = ?", year, workflow.StatusValidated).
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	resp.Stats.AveragePerformance = scoring.Round2(avg)

	rows = nil
	assessments := s.db.Model(&models.Assessment{}).
		Joins("JOIN performance_data ON performance_data.id = assessments.performance_data_id").
		Where("performance_data.year = ?", year)
	if req.InstitutionID != 0 {
		assessments = assessments.Joins("JOIN indicators ON indicators.id = performance_data.indicator_id").
			Where("indicators.institution_id = ?", req.InstitutionID)
	}
	if err := assessments.Select("assessments.status AS bucket, COUNT(*) AS count").
		Group("assessments.status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	fill(resp.AssessmentStatus, rows)

	rows = nil
	reports := s.db.Model(&models.Report{}).Where("year = ?", year)
	if req.InstitutionID != 0 {
		reports = reports.Where("institution_id = ?", req.InstitutionID)
	}
	if err := reports.Select("status AS bucket, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	fill(resp.ReportStatus, rows)

	rows = nil
	if err := scoped(&models.IndicatorScore{}, "indicator_scores").
		Select("indicator_scores.grade AS bucket, COUNT(*) AS count").
		Where("indicator_scores.year = ?", year).
		Group("indicator_scores.grade").Scan(&rows).Error; err != nil {
		return nil, err
	}
	fill(resp.GradeDistribution, rows)

	var score float64
	if err := scoped(&models.IndicatorScore{}, "indicator_scores").
		Select("COALESCE(AVG(indicator_scores.overall_score), 0)").
		Where("indicator_scores.year = ?", year).
		Scan(&score).Error; err != nil {
		return nil, err
	}
	resp.Stats.AverageScore = scoring.Round2(score)

	var top []models.IndicatorScore
	if err := scoped(&models.IndicatorScore{}, "indicator_scores").
		Preload("Indicator").
		Where("indicator_scores.year = ?", year).
		Order("indicator_scores.overall_score DESC, indicator_scores.indicator_id ASC").
		Limit(10).Find(&top).Error; err != nil {
		return nil, err
	}
	resp.TopIndicators = make([]IndicatorRank, 0, len(top))
	for _, t := range top {
		rank := IndicatorRank{IndicatorID: t.IndicatorID, OverallScore: t.OverallScore, Grade: t.Grade}
		if t.Indicator != nil {
			rank.Code = t.Indicator.Code
			rank.Name = t.Indicator.Name
		}
		resp.TopIndicators = append(resp.TopIndicators, rank)
	}

	return resp, nil
}
