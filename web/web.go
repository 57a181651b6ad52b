// Package web assembles the HTTP server: router, middleware chain, controllers
// and the background jobs.
package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/taskboard/taskboard/config"
	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/util/metrics"
	"github.com/taskboard/taskboard/web/cache"
	"github.com/taskboard/taskboard/web/controller"
	"github.com/taskboard/taskboard/web/job"
	"github.com/taskboard/taskboard/web/middleware"
	"github.com/taskboard/taskboard/web/service"
	"github.com/taskboard/taskboard/web/session"
)

const shutdownTimeout = 10 * time.Second

var startTime = time.Now()

type Server struct {
	cfg *config.ServerConfig

	httpServer *http.Server
	listener   net.Listener

	api         *controller.APIController
	services    *controller.Services
	mailService *service.MailService

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer wires the services. The database must already be initialised.
func NewServer(cfg *config.ServerConfig) (*Server, error) {
	tokens, err := service.NewTokenService(cfg)
	if err != nil {
		return nil, err
	}
	mail := service.NewMailService(service.NewMailer(cfg.SMTP), cfg)
	users := service.NewUserService(mail, cfg.AppURL)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		mailService: mail,
		services: &controller.Services{
			Auth:            service.NewAuthService(tokens, users),
			Tokens:          tokens,
			Users:           users,
			Tasks:           service.NewTaskService(),
			Statuses:        service.NewStatusService(),
			Audit:           service.NewAuditLogService(),
			Transport:       session.NewCookieTransport(cfg.CookieSecret, cfg.CookieSecure),
			LoginRatePerMin: cfg.LoginRatePerMin,
			AuditRetention:  cfg.AuditRetention,
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := middleware.TrustProxies(engine, s.cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		middleware.RequestLogger("/healthz", "/metrics"),
		middleware.Recovery(),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		middleware.CORS(s.cfg.AllowedOrigin),
	)

	engine.GET("/healthz", s.healthz)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	s.api = controller.NewAPIController(engine.Group(""), s.services)

	engine.NoRoute(middleware.NoRoute)
	return engine, nil
}

// healthz reports liveness and whether the database answers.
func (s *Server) healthz(c *gin.Context) {
	status := http.StatusOK
	dbState := "ok"
	if sqlDB, err := database.GetDB().DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = http.StatusServiceUnavailable
		dbState = "unavailable"
	}
	c.JSON(status, gin.H{
		"statusCode": status,
		"message":    http.StatusText(status),
		"data": gin.H{
			"database": dbState,
			"uptime":   time.Since(startTime).Round(time.Second).String(),
			"version":  config.GetVersion(),
		},
	})
}

func (s *Server) startTask() {
	jobs := []struct {
		spec string
		job  cron.Job
	}{
		{"@every 30s", job.NewMailQueueJob(s.mailService)},
		{"@every 1h", job.NewTokenCleanupJob(s.services.Auth)},
		{"@daily", job.NewAuditCleanupJob(s.services.Audit, s.cfg.AuditRetention)},
		{"@daily", job.NewClearLogsJob()},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddJob(j.spec, j.job); err != nil {
			logger.Warning("add job", j.spec, "failed:", err)
		}
	}
}

func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	loc, err := time.LoadLocation(s.cfg.TimeLocation)
	if err != nil {
		return err
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithSeconds())
	s.cron.Start()

	if err = cache.InitRedis(s.ctx, s.cfg.RedisAddr); err != nil {
		return err
	}

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(s.cfg.Listen, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Info("Web server running HTTP on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped:", err)
		}
	}()

	s.startTask()
	return nil
}

// Stop shuts down the HTTP server, the cron scheduler and the Redis client.
func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	var errs []error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	errs = append(errs, cache.Close())
	return common.Combine(errs...)
}

func (s *Server) GetCtx() context.Context { return s.ctx }

func (s *Server) GetCron() *cron.Cron { return s.cron }
