package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/config"
	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	t      *testing.T
	router *gin.Engine
	queue  *services.SyncQueue
	db     *gorm.DB
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("routes-test-secret")

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))
	require.NoError(t, models.SeedDefaultData(db))

	cfg := config.DefaultConfig()
	cfg.Server.RateLimit = 1000
	cfg.Server.RateBurst = 1000

	queue := services.NewSyncQueue()
	svc := wire(db, cfg, queue)
	require.NoError(t, svc.auth.EnsureAdmin("admin", "admin123"))
	t.Cleanup(func() {
		queue.Wait()
		svc.shutdown()
	})

	r := gin.New()
	registerRoutes(r, svc, &cfg.Server)
	return &server{t: t, router: r, queue: queue, db: db}
}

func (s *server) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

// login returns a token for the seeded admin.
func (s *server) login() string {
	code, env := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "admin123"})
	require.Equal(s.t, http.StatusOK, code, env.Message)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &resp))
	return resp.Token
}

func decodeID(t *testing.T, raw json.RawMessage, path ...string) uint {
	t.Helper()
	var v map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &v))
	for _, key := range path {
		var nested map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(v[key], &nested))
		v = nested
	}
	var id uint
	require.NoError(t, json.Unmarshal(v["id"], &id))
	return id
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginFailures(t *testing.T) {
	s := newServer(t)

	code, env := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 401, env.Code)

	code, _ = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodGet, "/api/targets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	var refused int64
	s.db.Model(&models.SystemLog{}).Where("level = ? AND module = ?", "warning", "auth").Count(&refused)
	assert.Equal(t, int64(2), refused)
}

func TestScoringFlow(t *testing.T) {
	s := newServer(t)
	token := s.login()

	code, env := s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"username":"admin"`)

	code, env = s.do(http.MethodPost, "/api/institutions", token, gin.H{"code": "bpkad", "name": "Badan Pengelolaan Keuangan"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	instID := decodeID(t, env.Data)

	code, env = s.do(http.MethodPost, "/api/indicators", token, gin.H{
		"institution_id": instID, "code": "IKU-01", "name": "Opini BPK", "frequency": "quarterly",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	indID := decodeID(t, env.Data)

	code, env = s.do(http.MethodPost, "/api/targets", token, gin.H{"indicator_id": indID, "year": 2024, "target_value": 100})
	require.Equal(t, http.StatusCreated, code, env.Message)
	targetID := decodeID(t, env.Data, "target")

	for _, action := range []string{"submit", "approve"} {
		code, env = s.do(http.MethodPost, fmt.Sprintf("/api/targets/%d/%s", targetID, action), token, nil)
		require.Equal(t, http.StatusOK, code, env.Message)
	}
	code, env = s.do(http.MethodPost, fmt.Sprintf("/api/targets/%d/approve", targetID), token, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, env.Message, "cannot approve target in status approved")

	code, env = s.do(http.MethodPost, "/api/performance-data", token, gin.H{"indicator_id": indID, "period": "2024-02-15", "actual_value": 110})
	require.Equal(t, http.StatusCreated, code, env.Message)
	dataID := decodeID(t, env.Data, "data")
	assert.Contains(t, string(env.Data), `"category":"good"`)
	assert.Contains(t, string(env.Data), `"period_label":"2024-Q1"`)

	code, _ = s.do(http.MethodPost, fmt.Sprintf("/api/performance-data/%d/reject", dataID), token, gin.H{})
	assert.Equal(t, http.StatusConflict, code, "draft data cannot be rejected")

	for _, action := range []string{"submit", "validate"} {
		code, env = s.do(http.MethodPost, fmt.Sprintf("/api/performance-data/%d/%s", dataID, action), token, nil)
		require.Equal(t, http.StatusOK, code, env.Message)
	}
	s.queue.Wait()

	code, env = s.do(http.MethodGet, "/api/scores?year=2024", token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"total":1`)

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/indicators/%d/metrics?year=2024", indID), token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Contains(t, string(env.Data), `"average_performance":110`)

	code, env = s.do(http.MethodGet, "/api/dashboard?year=2024", token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/system-logs/history/target/%d", targetID), token, nil)
	require.Equal(t, http.StatusOK, code)
	var history []models.SystemLog
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 3)
}

func TestRoleGuards(t *testing.T) {
	s := newServer(t)
	token := s.login()

	code, env := s.do(http.MethodPost, "/api/users", token, gin.H{"username": "viewer1", "password": "secret1", "role": "viewer"})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "viewer1", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))

	code, _ = s.do(http.MethodGet, "/api/system-logs", resp.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(http.MethodPost, "/api/scores/recalculate", resp.Token, gin.H{"year": 2024})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(http.MethodGet, "/api/indicators", resp.Token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/targets/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(http.MethodGet, "/api/targets/999", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
