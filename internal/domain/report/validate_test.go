package report

import (
	"errors"
	"testing"
)

func validRequest() CreateRequest {
	return CreateRequest{
		TenantID: "acme",
		Type:     TypeUsageSummary,
		Params: Params{
			From:   "2024-01-01",
			To:     "2024-01-31",
			Format: FormatCSV,
		},
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(r *CreateRequest) {},
		},
		{
			name:    "missing tenant",
			mutate:  func(r *CreateRequest) { r.TenantID = "" },
			wantErr: ErrInvalidParams,
		},
		{
			name:    "unknown type",
			mutate:  func(r *CreateRequest) { r.Type = "WEEKLY_DIGEST" },
			wantErr: ErrInvalidType,
		},
		{
			name:    "unknown format",
			mutate:  func(r *CreateRequest) { r.Params.Format = "XML" },
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "bad from date",
			mutate:  func(r *CreateRequest) { r.Params.From = "January 1" },
			wantErr: ErrInvalidParams,
		},
		{
			name:    "bad to date",
			mutate:  func(r *CreateRequest) { r.Params.To = "2024-13-99" },
			wantErr: ErrInvalidParams,
		},
		{
			name: "inverted range",
			mutate: func(r *CreateRequest) {
				r.Params.From = "2024-02-01"
				r.Params.To = "2024-01-01"
			},
			wantErr: ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := ValidateRequest(req)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	if !StateCompleted.IsTerminal() || !StateFailed.IsTerminal() {
		t.Fatalf("COMPLETED and FAILED must be terminal")
	}

	if StatePending.IsTerminal() || StateRunning.IsTerminal() {
		t.Fatalf("PENDING and RUNNING must not be terminal")
	}
}

func TestNewAssignsIdentityAndDefaults(t *testing.T) {
	rep, err := New(validRequest())

	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if rep.ID == "" {
		t.Fatalf("expected an id")
	}

	if rep.State != StatePending {
		t.Fatalf("expected PENDING, got %s", rep.State)
	}

	if rep.Attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", rep.Attempts)
	}

	if rep.LockedAt != nil || rep.LockedBy != nil {
		t.Fatalf("new report must not carry a lease")
	}
}
