package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/reporthub/internal/domain/report"
	"github.com/geocoder89/reporthub/internal/repo/postgres"
	"github.com/geocoder89/reporthub/internal/utils"
)

// Store is the slice of the reports repo the service needs.

type Store interface {
	Insert(ctx context.Context, rep report.Report) error
	GetByID(ctx context.Context, id string) (report.Report, error)
	GetByIdempotencyKey(ctx context.Context, key string) (report.Report, error)
	FindEquivalent(ctx context.Context, tenantID string, typ report.Type, params []byte) (report.Report, error)
	SetIdempotencyKey(ctx context.Context, id, key string) error
	ListByTenant(ctx context.Context, tenantID string, filter postgres.ListFilter, limit int, after *utils.ReportCursor) ([]report.Report, *string, bool, error)
	Ping(ctx context.Context) error
}

type ArtifactStore interface {
	GetByReportID(ctx context.Context, reportID string) (report.Artifact, error)
	GetMetaByReportID(ctx context.Context, reportID string) (report.ArtifactMeta, error)
}

// Detail is a report plus its artifact metadata, when one exists.

type Detail struct {
	Report   report.Report
	Artifact *report.ArtifactMeta
}

type Service struct {
	store     Store
	artifacts ArtifactStore
	log       *slog.Logger
}

func NewService(store Store, artifacts ArtifactStore, log *slog.Logger) *Service {
	return &Service{store: store, artifacts: artifacts, log: log}
}

var ErrBadCursor = errors.New("invalid cursor")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// bounded so a livelocked key race cannot spin forever
	maxBackfillRetries = 3
)

// Submit resolves a submission to the single report that represents it.
// Resolution order: key hit, then semantic hit, then insert, then key
// backfill. Every deduplication path here is advisory; the worker's
// convergence owns the hard exactly-one-artifact guarantee.

func (s *Service) Submit(ctx context.Context, req report.CreateRequest) (Detail, bool, error) {
	if err := report.ValidateRequest(req); err != nil {
		return Detail{}, false, err
	}

	for i := 0; i <= maxBackfillRetries; i++ {
		// 1. key hit
		if req.IdempotencyKey != nil {
			existing, err := s.store.GetByIdempotencyKey(ctx, *req.IdempotencyKey)

			if err == nil {
				return s.detail(ctx, existing), false, nil
			}

			if !errors.Is(err, report.ErrNotFound) {
				return Detail{}, false, err
			}
		}

		// 2 + 3. semantic hit or insert
		rep, created, err := s.Create(ctx, req)

		if err != nil {
			if postgres.UniqueConstraint(err) == postgres.ConstraintIdempotencyKey {
				// concurrent submitter won the key; re-read it
				continue
			}
			return Detail{}, false, err
		}

		// 4. key backfill onto a key-less winner
		if req.IdempotencyKey != nil && !created && rep.IdempotencyKey == nil {
			rep, err = s.backfillKey(ctx, rep, *req.IdempotencyKey)

			if err != nil {
				if postgres.UniqueConstraint(err) == postgres.ConstraintIdempotencyKey {
					continue
				}
				return Detail{}, false, err
			}
		}

		return s.detail(ctx, rep), created, nil
	}

	return Detail{}, false, errors.New("idempotency key resolution did not converge")
}

// Create looks for an equivalent COMPLETED or RUNNING report before inserting
// a new PENDING row. The lookup is best effort: two concurrent key-less
// submissions may both miss and both insert, and the worker converges them.

func (s *Service) Create(ctx context.Context, req report.CreateRequest) (report.Report, bool, error) {
	rep, err := report.New(req)

	if err != nil {
		return report.Report{}, false, err
	}

	existing, err := s.store.FindEquivalent(ctx, req.TenantID, req.Type, rep.Params)

	if err == nil {
		s.log.InfoContext(ctx, "report.submit.semantic_hit",
			"report_id", existing.ID,
			"tenant", existing.TenantID,
			"state", existing.State,
		)
		return existing, false, nil
	}

	if !errors.Is(err, report.ErrNotFound) {
		return report.Report{}, false, err
	}

	if err := s.store.Insert(ctx, rep); err != nil {
		return report.Report{}, false, err
	}

	s.log.InfoContext(ctx, "report.submit.created",
		"report_id", rep.ID,
		"tenant", rep.TenantID,
		"type", rep.Type,
	)

	return rep, true, nil
}

func (s *Service) backfillKey(ctx context.Context, rep report.Report, key string) (report.Report, error) {
	err := s.store.SetIdempotencyKey(ctx, rep.ID, key)

	if err == nil {
		rep.IdempotencyKey = &key
		return rep, nil
	}

	if errors.Is(err, report.ErrNotFound) {
		// the row gained a key between our read and the update; whatever is
		// there now is authoritative
		return s.store.GetByID(ctx, rep.ID)
	}

	return report.Report{}, err
}

func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	rep, err := s.store.GetByID(ctx, id)

	if err != nil {
		return Detail{}, err
	}

	return s.detail(ctx, rep), nil
}

type ListRequest struct {
	TenantID string
	State    *report.State
	Type     *report.Type
	Limit    int
	Cursor   string
}

type ListResult struct {
	Reports    []report.Report
	NextCursor *string
}

func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	limit := req.Limit

	if limit < 1 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var after *utils.ReportCursor

	if req.Cursor != "" {
		c, err := utils.DecodeReportCursor(req.Cursor)

		if err != nil {
			return ListResult{}, fmt.Errorf("%w: %v", ErrBadCursor, err)
		}

		after = &c
	}

	items, next, _, err := s.store.ListByTenant(ctx, req.TenantID, postgres.ListFilter{
		State: req.State,
		Type:  req.Type,
	}, limit, after)

	if err != nil {
		return ListResult{}, err
	}

	return ListResult{Reports: items, NextCursor: next}, nil
}

// Artifact returns the produced bytes. NotFound before Conflict: an unknown
// id is a 404, a known-but-unfinished report is a 409.

func (s *Service) Artifact(ctx context.Context, id string) (report.Artifact, error) {
	rep, err := s.store.GetByID(ctx, id)

	if err != nil {
		return report.Artifact{}, err
	}

	if rep.State != report.StateCompleted {
		return report.Artifact{}, report.ErrNotCompleted
	}

	return s.artifacts.GetByReportID(ctx, id)
}

func (s *Service) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	return s.store.Ping(ctx)
}

func (s *Service) detail(ctx context.Context, rep report.Report) Detail {
	d := Detail{Report: rep}

	if rep.State != report.StateCompleted {
		return d
	}

	meta, err := s.artifacts.GetMetaByReportID(ctx, rep.ID)

	if err == nil {
		d.Artifact = &meta
	}

	return d
}
