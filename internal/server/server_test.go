package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/concord/internal/clock"
	"github.com/smallbiznis/concord/internal/config"
	jobcontroldomain "github.com/smallbiznis/concord/internal/jobcontrol/domain"
	jobcontrolservice "github.com/smallbiznis/concord/internal/jobcontrol/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&jobcontroldomain.JobControl{}))

	srv := NewServer(ServerParams{
		Gin:           NewEngine(),
		Cfg:           config.Config{},
		DB:            db,
		Log:           zap.NewNop(),
		Clock:         clock.NewFakeClock(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)),
		JobControlSvc: jobcontrolservice.New(jobcontrolservice.Params{DB: db, Log: zap.NewNop()}),
	})
	return srv, db
}

func doRequest(srv *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	srv.engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyz(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestListJobs(t *testing.T) {
	srv, db := newTestServer(t)
	executed := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	anchorDay, anchorHour := 2, 3
	require.NoError(t, db.Create(&jobcontroldomain.JobControl{
		JobID:         "usage_billing",
		IntervalHours: jobcontroldomain.IntervalMonthly,
		AnchorDay:     &anchorDay,
		AnchorHour:    &anchorHour,
		LastExecute:   &executed,
	}).Error)
	require.NoError(t, db.Create(&jobcontroldomain.JobControl{
		JobID:         "reconcile_clients",
		IntervalHours: jobcontroldomain.IntervalHourly,
	}).Error)

	w := doRequest(srv, http.MethodGet, "/jobs")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Jobs []jobStatus `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 2)

	byID := map[string]jobStatus{}
	for _, job := range body.Jobs {
		byID[job.JobID] = job
	}
	monthly := byID["usage_billing"]
	require.NotNil(t, monthly.LastExecute)
	assert.True(t, monthly.LastExecute.Equal(executed))
	assert.False(t, monthly.Due, "already ran this month")

	hourly := byID["reconcile_clients"]
	assert.True(t, hourly.Due, "never-run hourly job is due")
}

func TestListJobsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(srv, http.MethodGet, "/jobs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":[]}`, w.Body.String())
}
