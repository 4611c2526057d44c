// Package server exposes the operational HTTP surface: health probes,
// Prometheus metrics, and a read-only view of the job control table.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/concord/internal/clock"
	"github.com/smallbiznis/concord/internal/config"
	jobcontroldomain "github.com/smallbiznis/concord/internal/jobcontrol/domain"
	obstracing "github.com/smallbiznis/concord/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obstracing.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock

	jobControlSvc jobcontroldomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	JobControlSvc jobcontroldomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("server"),
		clock:         p.Clock,
		jobControlSvc: p.JobControlSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/readyz", s.Ready)
	s.engine.GET("/jobs", s.ListJobs)
}

// Ready reports whether the database behind the job control table answers.
func (s *Server) Ready(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type jobStatus struct {
	JobID         string     `json:"job_id"`
	IntervalHours int        `json:"interval_hours"`
	AnchorDay     *int       `json:"anchor_day,omitempty"`
	AnchorHour    *int       `json:"anchor_hour,omitempty"`
	LastExecute   *time.Time `json:"last_execute,omitempty"`
	LastCheck     *time.Time `json:"last_check,omitempty"`
	Due           bool       `json:"due"`
}

// ListJobs returns every job control row so operators can see which jobs
// exist and when they last ran.
func (s *Server) ListJobs(c *gin.Context) {
	jobs, err := s.jobControlSvc.List(c.Request.Context())
	if err != nil {
		s.log.Error("failed to list job controls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	now := s.clock.Now()
	out := make([]jobStatus, 0, len(jobs))
	for _, jc := range jobs {
		out = append(out, jobStatus{
			JobID:         jc.JobID,
			IntervalHours: jc.IntervalHours,
			AnchorDay:     jc.AnchorDay,
			AnchorHour:    jc.AnchorHour,
			LastExecute:   jc.LastExecute,
			LastCheck:     jc.LastCheck,
			Due:           jobcontroldomain.ShouldRun(jc, now),
		})
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
