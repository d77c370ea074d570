package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"autoquote/internal"
	"autoquote/internal/catalog"
	"autoquote/internal/config"
	"autoquote/internal/listener"
	"autoquote/internal/pipeline"
)

type Store interface {
	catalog.Source
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (internal.Stats, error)
	ListReviewQueue(ctx context.Context, limit int) ([]internal.ProcessedEmail, error)
	ClearReviewQueue(ctx context.Context) (int64, error)
	ListQuotes(ctx context.Context, limit int) ([]internal.Quote, error)
}

type Submitter interface {
	SubmitManual(ctx context.Context, snap *catalog.Snapshot, req pipeline.ManualRequest) (pipeline.ManualResult, error)
}

type Sweeper interface {
	TriggerSweep(ctx context.Context, trigger string) (listener.Summary, error)
}

type Server struct {
	store      Store
	submitter  Submitter
	sweeper    Sweeper
	adminToken string
	cronSecret string
	started    time.Time
}

func NewServer(cfg config.Config, store Store, submitter Submitter, sweeper Sweeper) *Server {
	return &Server{
		store:      store,
		submitter:  submitter,
		sweeper:    sweeper,
		adminToken: cfg.AdminToken,
		cronSecret: cfg.CronSecret,
		started:    time.Now(),
	}
}

// Router wires every route. Admin routes require ADMIN_TOKEN when it is set;
// the cron trigger always requires CRON_SECRET.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/api/health", s.health)
	r.POST("/api/rfq/submit", s.submitRFQ)

	admin := r.Group("/api/admin", bearer(s.adminToken, true))
	admin.GET("/stats", s.stats)
	admin.GET("/flagged", s.flagged)
	admin.POST("/flagged/clear", s.clearFlagged)
	admin.GET("/quotes", s.quotes)

	cron := r.Group("/api/cron", bearer(s.cronSecret, false))
	cron.GET("/check-emails", s.checkEmails)
	cron.POST("/check-emails", s.checkEmails)
	return r
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("health check: database unreachable")
		fail(c, http.StatusServiceUnavailable, "DEGRADED", "database unreachable")
		return
	}
	success(c, http.StatusOK, "Service is healthy", gin.H{
		"status": "healthy",
		"uptime": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.store.Stats(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("stats query failed")
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "could not load stats")
		return
	}
	success(c, http.StatusOK, "ok", gin.H{
		"totalEmails":    st.Total,
		"autoSent":       st.AutoSent,
		"flagged":        st.Flagged,
		"todayProcessed": st.Today,
	})
}

func (s *Server) flagged(c *gin.Context) {
	records, err := s.store.ListReviewQueue(c.Request.Context(), queryLimit(c, 50))
	if err != nil {
		log.Error().Err(err).Msg("review queue query failed")
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "could not load review queue")
		return
	}
	if records == nil {
		records = []internal.ProcessedEmail{}
	}
	success(c, http.StatusOK, "ok", records)
}

func (s *Server) clearFlagged(c *gin.Context) {
	n, err := s.store.ClearReviewQueue(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("review queue clear failed")
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "could not clear review queue")
		return
	}
	log.Info().Int64("deleted", n).Msg("review queue cleared")
	success(c, http.StatusOK, "Review queue cleared", gin.H{"deleted": n})
}

func (s *Server) quotes(c *gin.Context) {
	quotes, err := s.store.ListQuotes(c.Request.Context(), queryLimit(c, 100))
	if err != nil {
		log.Error().Err(err).Msg("quote list failed")
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "could not load quotes")
		return
	}
	if quotes == nil {
		quotes = []internal.Quote{}
	}
	success(c, http.StatusOK, "ok", quotes)
}

func (s *Server) submitRFQ(c *gin.Context) {
	var req pipeline.ManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Missing required fields")
		return
	}
	ctx := c.Request.Context()
	snap, err := catalog.Load(ctx, s.store)
	if err != nil {
		log.Error().Err(err).Msg("catalog load failed")
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "could not load catalog")
		return
	}

	res, err := s.submitter.SubmitManual(ctx, snap, req)
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Missing required fields")
	case errors.Is(err, pipeline.ErrNothingMatched):
		fail(c, http.StatusUnprocessableEntity, "NO_MATCH", "None of the requested products are in the catalog")
	case err != nil:
		log.Error().Err(err).Str("customer", req.CustomerEmail).Msg("manual quote failed")
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	default:
		success(c, http.StatusOK, "Quote generated and sent successfully", res)
	}
}

func (s *Server) checkEmails(c *gin.Context) {
	summary, err := s.sweeper.TriggerSweep(c.Request.Context(), "http")
	switch {
	case errors.Is(err, listener.ErrSweepRunning):
		fail(c, http.StatusConflict, "SWEEP_RUNNING", err.Error())
	case err != nil:
		log.Error().Err(err).Msg("sweep failed")
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	default:
		success(c, http.StatusOK, "Email check complete", summary)
	}
}

func queryLimit(c *gin.Context, fallback int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 || n > 500 {
		return fallback
	}
	return n
}
