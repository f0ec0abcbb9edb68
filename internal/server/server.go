package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	approvaldomain "github.com/smallbiznis/creatorpay/internal/approval/domain"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	authservice "github.com/smallbiznis/creatorpay/internal/auth/service"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	clawbackdomain "github.com/smallbiznis/creatorpay/internal/clawback/domain"
	"github.com/smallbiznis/creatorpay/internal/config"
	frauddomain "github.com/smallbiznis/creatorpay/internal/fraud/domain"
	"github.com/smallbiznis/creatorpay/internal/observability"
	obsmiddleware "github.com/smallbiznis/creatorpay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creatorpay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/creatorpay/internal/observability/tracing"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	sweeperdomain "github.com/smallbiznis/creatorpay/internal/sweeper/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(func(v *authservice.Verifier) TokenVerifier { return v }),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RunHTTP serves the engine behind the CORS policy for the lifetime of the app.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           600,
	}).Handler(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	verifier      TokenVerifier
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	payoutSvc     payoutdomain.Service
	evidenceSvc   frauddomain.EvidenceService
	sweeperSvc    sweeperdomain.Service
	clawbackSvc   clawbackdomain.Service
	approvalSvc   approvaldomain.Service
	submissionSvc submissiondomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Verifier      TokenVerifier
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	PayoutSvc     payoutdomain.Service
	EvidenceSvc   frauddomain.EvidenceService
	SweeperSvc    sweeperdomain.Service
	ClawbackSvc   clawbackdomain.Service
	ApprovalSvc   approvaldomain.Service
	SubmissionSvc submissiondomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		verifier:      p.Verifier,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		payoutSvc:     p.PayoutSvc,
		evidenceSvc:   p.EvidenceSvc,
		sweeperSvc:    p.SweeperSvc,
		clawbackSvc:   p.ClawbackSvc,
		approvalSvc:   p.ApprovalSvc,
		submissionSvc: p.SubmissionSvc,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/")
	api.Use(s.AuthRequired())

	api.POST("/process-evidence-deadlines", s.authorize(authorization.ObjectSweeper, authorization.ActionSweeperRun), s.ProcessEvidenceDeadlines)

	user := api.Group("/")
	user.Use(UserRequired())

	user.POST("/request-payout", s.RequestPayout)
	user.GET("/payout-requests", s.ListPayoutRequests)
	user.GET("/payout-requests/:id", s.GetPayoutRequest)
	user.GET("/payout-requests/:id/statement.pdf", s.PayoutStatement)
	user.POST("/payout-requests/:id/evidence", s.SubmitEvidence)

	user.POST("/execute-clawback", s.ExecuteClawback)
	user.POST("/request-crypto-payout", s.RequestCryptoPayout)
	user.GET("/crypto-payout-approvals/:id", s.GetApproval)
	user.POST("/crypto-payout-approvals/:id/votes", s.CastApprovalVote)

	user.GET("/submissions/:id", s.GetSubmission)
	user.PATCH("/submissions/:id/platforms/:platform", s.UpdatePlatformStatus)
	user.PATCH("/submissions/:id/caption", s.UpdateCaption)

	user.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
	user.GET("/payout-requests/:id/audit-trail", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.PayoutAuditTrail)
}
