package reports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/geocoder89/reporthub/internal/domain/report"
	"github.com/geocoder89/reporthub/internal/repo/postgres"
	"github.com/geocoder89/reporthub/internal/utils"
	"github.com/jackc/pgx/v5/pgconn"
)

// Fake repository implementations of the reports.Store interface

type fakeStore struct {
	insertFn       func(ctx context.Context, rep report.Report) error
	getByIDFn      func(ctx context.Context, id string) (report.Report, error)
	getByKeyFn     func(ctx context.Context, key string) (report.Report, error)
	findEquivFn    func(ctx context.Context, tenantID string, typ report.Type, params []byte) (report.Report, error)
	setKeyFn       func(ctx context.Context, id, key string) error
	listByTenantFn func(ctx context.Context, tenantID string, filter postgres.ListFilter, limit int, after *utils.ReportCursor) ([]report.Report, *string, bool, error)
}

func (f *fakeStore) Insert(ctx context.Context, rep report.Report) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, rep)
	}
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (report.Report, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return report.Report{}, report.ErrNotFound
}

func (f *fakeStore) GetByIdempotencyKey(ctx context.Context, key string) (report.Report, error) {
	if f.getByKeyFn != nil {
		return f.getByKeyFn(ctx, key)
	}
	return report.Report{}, report.ErrNotFound
}

func (f *fakeStore) FindEquivalent(ctx context.Context, tenantID string, typ report.Type, params []byte) (report.Report, error) {
	if f.findEquivFn != nil {
		return f.findEquivFn(ctx, tenantID, typ, params)
	}
	return report.Report{}, report.ErrNotFound
}

func (f *fakeStore) SetIdempotencyKey(ctx context.Context, id, key string) error {
	if f.setKeyFn != nil {
		return f.setKeyFn(ctx, id, key)
	}
	return nil
}

func (f *fakeStore) ListByTenant(ctx context.Context, tenantID string, filter postgres.ListFilter, limit int, after *utils.ReportCursor) ([]report.Report, *string, bool, error) {
	if f.listByTenantFn != nil {
		return f.listByTenantFn(ctx, tenantID, filter, limit, after)
	}
	return nil, nil, false, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

type fakeArtifacts struct {
	getFn     func(ctx context.Context, reportID string) (report.Artifact, error)
	getMetaFn func(ctx context.Context, reportID string) (report.ArtifactMeta, error)
}

func (f *fakeArtifacts) GetByReportID(ctx context.Context, reportID string) (report.Artifact, error) {
	if f.getFn != nil {
		return f.getFn(ctx, reportID)
	}
	return report.Artifact{}, report.ErrArtifactNotFound
}

func (f *fakeArtifacts) GetMetaByReportID(ctx context.Context, reportID string) (report.ArtifactMeta, error) {
	if f.getMetaFn != nil {
		return f.getMetaFn(ctx, reportID)
	}
	return report.ArtifactMeta{}, report.ErrArtifactNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func keyViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: postgres.ConstraintIdempotencyKey}
}

func strPtr(s string) *string { return &s }

func submitRequest(key *string) report.CreateRequest {
	return report.CreateRequest{
		TenantID: "acme",
		Type:     report.TypeUsageSummary,
		Params: report.Params{
			From:   "2024-01-01",
			To:     "2024-01-31",
			Format: report.FormatCSV,
		},
		IdempotencyKey: key,
	}
}

func TestSubmitKeyHitReturnsExisting(t *testing.T) {
	existing := report.Report{
		ID:             "r1",
		TenantID:       "acme",
		State:          report.StatePending,
		IdempotencyKey: strPtr("K"),
	}

	inserted := false

	store := &fakeStore{
		getByKeyFn: func(ctx context.Context, key string) (report.Report, error) {
			if key != "K" {
				t.Fatalf("unexpected key %s", key)
			}
			return existing, nil
		},
		insertFn: func(ctx context.Context, rep report.Report) error {
			inserted = true
			return nil
		},
	}

	svc := NewService(store, &fakeArtifacts{}, testLogger())

	d, created, err := svc.Submit(context.Background(), submitRequest(strPtr("K")))

	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if created {
		t.Fatalf("key hit must not report created")
	}

	if d.Report.ID != "r1" {
		t.Fatalf("expected r1, got %s", d.Report.ID)
	}

	if inserted {
		t.Fatalf("key hit must not insert")
	}
}

// Same key with a different payload still resolves to the original row.

func TestSubmitKeyHitIgnoresPayloadMismatch(t *testing.T) {
	existing := report.Report{
		ID:             "r1",
		TenantID:       "acme",
		Params:         []byte(`{"from":"2024-01-01","to":"2024-01-31","format":"CSV"}`),
		State:          report.StateCompleted,
		IdempotencyKey: strPtr("K"),
	}

	store := &fakeStore{
		getByKeyFn: func(ctx context.Context, key string) (report.Report, error) {
			return existing, nil
		},
	}

	svc := NewService(store, &fakeArtifacts{}, testLogger())

	req := submitRequest(strPtr("K"))
	req.Params.From = "2025-06-01"
	req.Params.To = "2025-06-30"

	d, created, err := svc.Submit(context.Background(), req)

	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if created {
		t.Fatalf("expected created=false")
	}

	if string(d.Report.Params) != string(existing.Params) {
		t.Fatalf("response must reflect the original payload")
	}
}

func TestSubmitSemanticHitPrefersExistingCompleted(t *testing.T) {
	completed := report.Report{
		ID:             "r-done",
		TenantID:       "acme",
		State:          report.StateCompleted,
		IdempotencyKey: strPtr("K1"),
	}

	store := &fakeStore{
		findEquivFn: func(ctx context.Context, tenantID string, typ report.Type, params []byte) (report.Report, error) {
			return completed, nil
		},
		setKeyFn: func(ctx context.Context, id, key string) error {
			t.Fatalf("must not backfill over an existing key")
			return nil
		},
	}

	svc := NewService(store, &fakeArtifacts{}, testLogger())

	// new key K2, identical payload: semantic hit wins, K1 stays
	d, created, err := svc.Submit(context.Background(), submitRequest(strPtr("K2")))

	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if created {
		t.Fatalf("expected created=false")
	}

	if d.Report.ID != "r-done" {
		t.Fatalf("expected r-done, got %s", d.Report.ID)
	}

	if *d.Report.IdempotencyKey != "K1" {
		t.Fatalf("existing key must not be overwritten")
	}
}

func TestSubmitMissInsertsPending(t *testing.T) {
	var inserted report.Report

	store := &fakeStore{
		insertFn: func(ctx context.Context, rep report.Report) error {
			inserted = rep
			return nil
		},
	}

	svc := NewService(store, &fakeArtifacts{}, testLogger())

	d, created, err := svc.Submit(context.Background(), submitRequest(strPtr("K")))

	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if !created {
		t.Fatalf("expected created=true")
	}

	if inserted.State != report.StatePending {
		t.Fatalf("expected PENDING insert, got %s", inserted.State)
	}

	if d.Report.IdempotencyKey == nil || *d.Report.IdempotencyKey != "K" {
		t.Fatalf("expected key K on the new row")
	}
}

// Two submitters race on the same key: our insert collides, the retry
// resolves to the winner's row.

func TestSubmitInsertKeyCollisionResolvesToWinner(t *testing.T) {
	winner := report.Report{ID: "r-winner", IdempotencyKey: strPtr("K")}

	keyLookups := 0

	store := &fakeStore{
		getByKeyFn: func(ctx context.Context, key string) (report.Report, error) {
			keyLookups++
			if keyLookups == 1 {
				return report.Report{}, report.ErrNotFound
			}
			return winner, nil
		},
		insertFn: func(ctx context.Context, rep report.Report) error {
			return keyViolation()
		},
	}

	svc := NewService(store, &fakeArtifacts{}, testLogger())

	d, created, err := svc.Submit(context.Background(), submitRequest(strPtr("K")))

	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if created {
		t.Fatalf("expected created=false after collision")
	}

	if d.Report.ID != "r-winner" {
		t.Fatalf("expected winner's row, got %s", d.Report.ID)
	}
}

func TestSubmitBackfillsKeyOnKeylessSemanticHit(t *testing.T) {
	keyless := report.Report{
		ID:       "r-keyless",
		TenantID: "acme",
		State:    report.StateRunning,
	}

	var backfilledID, backfilledKey string

	store := &fakeStore{
		findEquivFn: func(ctx context.Context, tenantID string, typ report.Type, params []byte) (report.Report, error) {
			return keyless, nil
		},
		setKeyFn: func(ctx context.Context, id, key string) error {
			backfilledID = id
			backfilledKey = key
			return nil
		},
	}

	svc := NewService(store, &fakeArtifacts{}, testLogger())

	d, created, err := svc.Submit(context.Background(), submitRequest(strPtr("K")))

	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if created {
		t.Fatalf("expected created=false")
	}

	if backfilledID != "r-keyless" || backfilledKey != "K" {
		t.Fatalf("expected backfill of K onto r-keyless, got %s/%s", backfilledID, backfilledKey)
	}

	if d.Report.IdempotencyKey == nil || *d.Report.IdempotencyKey != "K" {
		t.Fatalf("returned row must carry the backfilled key")
	}
}

func TestSubmitBackfillCollisionRetriesKeyLookup(t *testing.T) {
	keyless := report.Report{ID: "r-keyless", TenantID: "acme", State: report.StateRunning}
	winner := report.Report{ID: "r-winner", IdempotencyKey: strPtr("K")}

	keyLookups := 0

	store := &fakeStore{
		getByKeyFn: func(ctx context.Context, key string) (report.Report, error) {
			keyLookups++
			if keyLookups == 1 {
				return report.Report{}, report.ErrNotFound
			}
			return winner, nil
		},
		findEquivFn: func(ctx context.Context, tenantID string, typ report.Type, params []byte) (report.Report, error) {
			return keyless, nil
		},
		setKeyFn: func(ctx context.Context, id, key string) error {
			return keyViolation()
		},
	}

	svc := NewService(store, &fakeArtifacts{}, testLogger())

	d, created, err := svc.Submit(context.Background(), submitRequest(strPtr("K")))

	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if created {
		t.Fatalf("expected created=false")
	}

	if d.Report.ID != "r-winner" {
		t.Fatalf("key winner is authoritative, got %s", d.Report.ID)
	}
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeArtifacts{}, testLogger())

	req := submitRequest(nil)
	req.Type = "WEEKLY_DIGEST"

	_, _, err := svc.Submit(context.Background(), req)

	if !errors.Is(err, report.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestSubmitAttachesArtifactMetaForCompletedHit(t *testing.T) {
	completed := report.Report{ID: "r-done", State: report.StateCompleted}
	meta := report.ArtifactMeta{ID: "a1", ContentType: "text/csv", SizeBytes: 10, Checksum: "abc"}

	store := &fakeStore{
		findEquivFn: func(ctx context.Context, tenantID string, typ report.Type, params []byte) (report.Report, error) {
			return completed, nil
		},
	}

	artifacts := &fakeArtifacts{
		getMetaFn: func(ctx context.Context, reportID string) (report.ArtifactMeta, error) {
			return meta, nil
		},
	}

	svc := NewService(store, artifacts, testLogger())

	d, _, err := svc.Submit(context.Background(), submitRequest(nil))

	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if d.Artifact == nil || d.Artifact.ID != "a1" {
		t.Fatalf("expected artifact metadata on a completed hit")
	}
}

func TestListDefaultsAndCaps(t *testing.T) {
	var gotLimit int

	store := &fakeStore{
		listByTenantFn: func(ctx context.Context, tenantID string, filter postgres.ListFilter, limit int, after *utils.ReportCursor) ([]report.Report, *string, bool, error) {
			gotLimit = limit
			return nil, nil, false, nil
		},
	}

	svc := NewService(store, &fakeArtifacts{}, testLogger())

	if _, err := svc.List(context.Background(), ListRequest{TenantID: "acme"}); err != nil {
		t.Fatalf("List error: %v", err)
	}

	if gotLimit != DefaultPageSize {
		t.Fatalf("expected default limit %d, got %d", DefaultPageSize, gotLimit)
	}

	if _, err := svc.List(context.Background(), ListRequest{TenantID: "acme", Limit: 10000}); err != nil {
		t.Fatalf("List error: %v", err)
	}

	if gotLimit != MaxPageSize {
		t.Fatalf("expected capped limit %d, got %d", MaxPageSize, gotLimit)
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeArtifacts{}, testLogger())

	_, err := svc.List(context.Background(), ListRequest{TenantID: "acme", Cursor: "!!!"})

	if !errors.Is(err, ErrBadCursor) {
		t.Fatalf("expected ErrBadCursor, got %v", err)
	}
}

func TestListPassesCursorThrough(t *testing.T) {
	created := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	lastID := "3f6c9a51-7d2e-4b0a-9c8f-5e1d2a4b6c7d"

	enc, err := utils.EncodeReportCursor(created, lastID)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}

	var gotAfter *utils.ReportCursor

	store := &fakeStore{
		listByTenantFn: func(ctx context.Context, tenantID string, filter postgres.ListFilter, limit int, after *utils.ReportCursor) ([]report.Report, *string, bool, error) {
			gotAfter = after
			return nil, nil, false, nil
		},
	}

	svc := NewService(store, &fakeArtifacts{}, testLogger())

	if _, err := svc.List(context.Background(), ListRequest{TenantID: "acme", Cursor: enc}); err != nil {
		t.Fatalf("List error: %v", err)
	}

	if gotAfter == nil || gotAfter.ID != lastID || !gotAfter.CreatedAt.Equal(created) {
		t.Fatalf("cursor not passed through: %+v", gotAfter)
	}
}

func TestArtifactLadder(t *testing.T) {
	tests := []struct {
		name     string
		store    *fakeStore
		artifact *fakeArtifacts
		wantErr  error
	}{
		{
			name:     "unknown report",
			store:    &fakeStore{},
			artifact: &fakeArtifacts{},
			wantErr:  report.ErrNotFound,
		},
		{
			name: "not completed",
			store: &fakeStore{
				getByIDFn: func(ctx context.Context, id string) (report.Report, error) {
					return report.Report{ID: id, State: report.StateRunning}, nil
				},
			},
			artifact: &fakeArtifacts{},
			wantErr:  report.ErrNotCompleted,
		},
		{
			name: "artifact row missing",
			store: &fakeStore{
				getByIDFn: func(ctx context.Context, id string) (report.Report, error) {
					return report.Report{ID: id, State: report.StateCompleted}, nil
				},
			},
			artifact: &fakeArtifacts{},
			wantErr:  report.ErrArtifactNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.store, tt.artifact, testLogger())

			_, err := svc.Artifact(context.Background(), "r1")

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestArtifactReturnsContent(t *testing.T) {
	store := &fakeStore{
		getByIDFn: func(ctx context.Context, id string) (report.Report, error) {
			return report.Report{ID: id, State: report.StateCompleted}, nil
		},
	}

	artifacts := &fakeArtifacts{
		getFn: func(ctx context.Context, reportID string) (report.Artifact, error) {
			return report.Artifact{ReportID: reportID, ContentType: "text/csv", Content: []byte("a,b\n")}, nil
		},
	}

	svc := NewService(store, artifacts, testLogger())

	a, err := svc.Artifact(context.Background(), "r1")

	if err != nil {
		t.Fatalf("Artifact error: %v", err)
	}

	if a.ContentType != "text/csv" || string(a.Content) != "a,b\n" {
		t.Fatalf("unexpected artifact: %+v", a)
	}
}
