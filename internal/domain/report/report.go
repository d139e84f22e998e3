package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

func (s State) IsValid() bool {
	switch s {
	case StatePending, StateRunning, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// Terminal states never transition out again.

func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

type Type string

const (
	TypeUsageSummary  Type = "USAGE_SUMMARY"
	TypeBillingExport Type = "BILLING_EXPORT"
	TypeAuditSnapshot Type = "AUDIT_SNAPSHOT"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeUsageSummary, TypeBillingExport, TypeAuditSnapshot:
		return true
	default:
		return false
	}
}

type Format string

const (
	FormatCSV  Format = "CSV"
	FormatJSON Format = "JSON"
)

func (f Format) IsValid() bool {
	switch f {
	case FormatCSV, FormatJSON:
		return true
	default:
		return false
	}
}

type Params struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
	Format Format `json:"format" binding:"required"`
}

type Report struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant"`
	Type           Type            `json:"type"`
	Params         json.RawMessage `json:"params"`
	State          State           `json:"state"`
	Attempts       int             `json:"attempts"`
	IdempotencyKey *string         `json:"idempotencyKey,omitempty"`
	LockedAt       *time.Time      `json:"lockedAt,omitempty"`
	LockedBy       *string         `json:"lockedBy,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ArtifactMeta is what read paths expose: everything except the bytes.

type ArtifactMeta struct {
	ID          string    `json:"id"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Artifact struct {
	ID          string
	ReportID    string
	ContentType string
	Content     []byte
	SizeBytes   int64
	Checksum    string
	CreatedAt   time.Time
}

type Execution struct {
	ID         string
	ReportID   string
	Attempt    int
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      *string
}

type CreateRequest struct {
	TenantID       string
	Type           Type
	Params         Params
	IdempotencyKey *string
}

func New(req CreateRequest) (Report, error) {
	now := time.Now().UTC()

	raw, err := json.Marshal(req.Params)

	if err != nil {
		return Report{}, err
	}

	return Report{
		ID:             uuid.NewString(),
		TenantID:       req.TenantID,
		Type:           req.Type,
		Params:         raw,
		State:          StatePending,
		Attempts:       0,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
