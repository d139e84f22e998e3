package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ReportCursor is a keyset cursor over (created_at DESC, id DESC). Encoding
// both fields lets the list query seek without re-reading the anchor row.

type ReportCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func EncodeReportCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(ReportCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeReportCursor(cursor string) (ReportCursor, error) {
	if cursor == "" {
		return ReportCursor{}, errors.New("empty cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return ReportCursor{}, err
	}

	var c ReportCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return ReportCursor{}, err
	}
	if c.CreatedAt.IsZero() || !IsUUID(c.ID) {
		return ReportCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}
