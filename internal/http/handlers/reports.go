package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/geocoder89/reporthub/internal/domain/report"
	"github.com/geocoder89/reporthub/internal/http/middlewares"
	"github.com/geocoder89/reporthub/internal/reports"
	"github.com/geocoder89/reporthub/internal/utils"
	"github.com/gin-gonic/gin"
)

const maxIdempotencyKeyLen = 255

type ReportsService interface {
	Submit(ctx context.Context, req report.CreateRequest) (reports.Detail, bool, error)
	Get(ctx context.Context, id string) (reports.Detail, error)
	List(ctx context.Context, req reports.ListRequest) (reports.ListResult, error)
	Artifact(ctx context.Context, id string) (report.Artifact, error)
}

type ReportsHandler struct {
	svc ReportsService
}

func NewReportsHandler(svc ReportsService) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

type submitRequest struct {
	Tenant string        `json:"tenant" binding:"required"`
	Type   report.Type   `json:"type" binding:"required"`
	Params report.Params `json:"params" binding:"required"`
}

type reportResponse struct {
	report.Report
	Artifact *report.ArtifactMeta `json:"artifact,omitempty"`
}

func toResponse(d reports.Detail) reportResponse {
	return reportResponse{Report: d.Report, Artifact: d.Artifact}
}

// POST /reports

func (h *ReportsHandler) Submit(ctx *gin.Context) {
	var body submitRequest

	if !BindStrictJSON(ctx, &body) {
		return
	}

	var key *string

	if raw := ctx.GetHeader("Idempotency-Key"); raw != "" {
		if len(raw) > maxIdempotencyKeyLen {
			RespondBadRequest(ctx, "Idempotency-Key must be at most 255 characters")
			return
		}
		key = &raw
	}

	d, created, err := h.svc.Submit(ctx.Request.Context(), report.CreateRequest{
		TenantID:       body.Tenant,
		Type:           body.Type,
		Params:         body.Params,
		IdempotencyKey: key,
	})

	if err != nil {
		if isValidationError(err) {
			RespondBadRequest(ctx, err.Error())
			return
		}

		RespondInternal(ctx, "could not submit report")
		return
	}

	ctx.Set(middlewares.CtxReportID, d.Report.ID)

	status := http.StatusOK

	if created {
		status = http.StatusCreated
	}

	ctx.JSON(status, toResponse(d))
}

// GET /reports/:id

func (h *ReportsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid report id")
		return
	}

	d, err := h.svc.Get(ctx.Request.Context(), id)

	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			RespondNotFound(ctx, "report not found")
			return
		}

		RespondInternal(ctx, "could not load report")
		return
	}

	ctx.Set(middlewares.CtxReportID, d.Report.ID)
	ctx.JSON(http.StatusOK, toResponse(d))
}

// GET /reports/:id/download

func (h *ReportsHandler) Download(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid report id")
		return
	}

	a, err := h.svc.Artifact(ctx.Request.Context(), id)

	if err != nil {
		switch {
		case errors.Is(err, report.ErrNotFound):
			RespondNotFound(ctx, "report not found")
		case errors.Is(err, report.ErrNotCompleted):
			RespondConflict(ctx, "report is not completed yet")
		case errors.Is(err, report.ErrArtifactNotFound):
			RespondNotFound(ctx, "artifact not found")
		default:
			RespondInternal(ctx, "could not load artifact")
		}
		return
	}

	ctx.Set(middlewares.CtxReportID, id)
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report-"+id))
	ctx.Data(http.StatusOK, a.ContentType, a.Content)
}

// GET /tenants/:tenant/reports

func (h *ReportsHandler) ListByTenant(ctx *gin.Context) {
	tenant := ctx.Param("tenant")

	req := reports.ListRequest{
		TenantID: tenant,
		Cursor:   ctx.Query("cursor"),
	}

	if raw := ctx.Query("state"); raw != "" {
		st := report.State(raw)

		if !st.IsValid() {
			RespondBadRequest(ctx, "state must be one of PENDING, RUNNING, COMPLETED, FAILED")
			return
		}

		req.State = &st
	}

	if raw := ctx.Query("type"); raw != "" {
		t := report.Type(raw)

		if !t.IsValid() {
			RespondBadRequest(ctx, "type must be one of USAGE_SUMMARY, BILLING_EXPORT, AUDIT_SNAPSHOT")
			return
		}

		req.Type = &t
	}

	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)

		if err != nil || n < 1 {
			RespondBadRequest(ctx, "limit must be a positive integer")
			return
		}

		req.Limit = n
	}

	res, err := h.svc.List(ctx.Request.Context(), req)

	if err != nil {
		if errors.Is(err, reports.ErrBadCursor) {
			RespondBadRequest(ctx, "invalid cursor")
			return
		}

		RespondInternal(ctx, "could not list reports")
		return
	}

	resp := gin.H{"reports": toResponses(res.Reports)}

	if res.NextCursor != nil {
		resp["next_cursor"] = *res.NextCursor
	}

	ctx.JSON(http.StatusOK, resp)
}

func toResponses(items []report.Report) []reportResponse {
	out := make([]reportResponse, 0, len(items))

	for _, rep := range items {
		out = append(out, reportResponse{Report: rep})
	}

	return out
}

func isValidationError(err error) bool {
	return errors.Is(err, report.ErrInvalidType) ||
		errors.Is(err, report.ErrInvalidFormat) ||
		errors.Is(err, report.ErrInvalidParams)
}
