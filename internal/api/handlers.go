package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"loanaudit/app"
	"loanaudit/domain/core"
	"loanaudit/domain/provenance"
	"loanaudit/domain/run"
	"loanaudit/internal/cleaning"
	apperrors "loanaudit/internal/errors"
	"loanaudit/internal/quality"
)

// Handler translates HTTP requests into audit service calls
type Handler struct {
	svc         *app.AuditService
	defaultSeed int64
}

// NewHandler creates a handler. defaultSeed is used when a request names no seed.
func NewHandler(svc *app.AuditService, defaultSeed int64) *Handler {
	return &Handler{svc: svc, defaultSeed: defaultSeed}
}

func (h *Handler) seed(s *int64) int64 {
	if s == nil {
		return h.defaultSeed
	}
	return *s
}

// Quality handles POST /api/v1/quality
func (h *Handler) Quality(c *gin.Context) {
	var req QualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := requireDataset(req.Dataset); err != nil {
		writeError(c, err)
		return
	}

	opts, err := req.toService()
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.svc.Quality(c.Request.Context(), req.Dataset, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Clean handles POST /api/v1/clean
func (h *Handler) Clean(c *gin.Context) {
	var req CleanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := requireDataset(req.Dataset); err != nil {
		writeError(c, err)
		return
	}
	sreq, err := req.toService()
	if err != nil {
		writeError(c, apperrors.InStage(cleaning.Stage, err))
		return
	}

	res, err := h.svc.Clean(c.Request.Context(), req.Dataset, sreq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Fairness handles POST /api/v1/fairness. Metrics is null when fewer than
// two groups can be compared.
func (h *Handler) Fairness(c *gin.Context) {
	var req FairnessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := requireDataset(req.Dataset); err != nil {
		writeError(c, err)
		return
	}

	res, err := h.svc.Fairness(c.Request.Context(), req.Dataset, req.toService())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Simulate handles POST /api/v1/simulate
func (h *Handler) Simulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := requireDataset(req.Dataset); err != nil {
		writeError(c, err)
		return
	}
	cfg, err := simulationConfig(req.Config)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.svc.Simulate(c.Request.Context(), req.Dataset, cfg, h.seed(req.Seed))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SimulateBatch handles POST /api/v1/simulate/batch
func (h *Handler) SimulateBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := requireDataset(req.Dataset); err != nil {
		writeError(c, err)
		return
	}
	cfg, err := simulationConfig(req.Config)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.svc.SimulateBatch(c.Request.Context(), req.Dataset, cfg, req.Seeds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Pipeline handles POST /api/v1/pipeline
func (h *Handler) Pipeline(c *gin.Context) {
	var req PipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := requireDataset(req.Dataset); err != nil {
		writeError(c, err)
		return
	}

	sreq := app.DefaultPipelineRequest(h.seed(req.Seed))
	k, err := multiplier(req.Multiplier, quality.Stage)
	if err != nil {
		writeError(c, err)
		return
	}
	sreq.Quality.Multiplier = k
	if req.Clean != nil {
		clean, err := req.Clean.toService()
		if err != nil {
			writeError(c, apperrors.InStage(cleaning.Stage, err))
			return
		}
		sreq.Clean = clean
	}
	if req.Fairness != nil {
		sreq.Fairness = req.Fairness.toService()
	}
	cfg, err := simulationConfig(req.Simulation)
	if err != nil {
		writeError(c, err)
		return
	}
	sreq.Simulation = cfg

	res, err := h.svc.Pipeline(c.Request.Context(), req.Dataset, sreq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListProvenance handles GET /api/v1/provenance?action=&run_id=&limit=
func (h *Handler) ListProvenance(c *gin.Context) {
	var filter provenance.Filter
	if action := c.Query("action"); action != "" {
		kind, err := provenance.ParseActionKind(action)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.Action = kind
	}
	if runID := c.Query("run_id"); runID != "" {
		id, err := core.ParseRunID(runID)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.RunID = id
	}
	limit, err := queryLimit(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	filter.Limit = limit

	entries, err := h.svc.Entries(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// RecordLineage handles POST /api/v1/provenance
func (h *Handler) RecordLineage(c *gin.Context) {
	var req LineageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := h.svc.RecordLineage(c.Request.Context(), req.Actor, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListRuns handles GET /api/v1/runs?stage=&limit=
func (h *Handler) ListRuns(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	runs, err := h.svc.Runs(c.Request.Context(), run.Filter{Stage: run.Stage(c.Query("stage")), Limit: limit})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun handles GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	ar, err := h.svc.Run(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ar)
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidInput("limit must be a non-negative integer")
	}
	return n, nil
}
