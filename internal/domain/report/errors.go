package report

import "errors"

var (
	ErrNotFound         = errors.New("report not found")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrNotCompleted     = errors.New("report is not completed")
	ErrInvalidType      = errors.New("invalid report type")
	ErrInvalidFormat    = errors.New("invalid output format")
	ErrInvalidParams    = errors.New("invalid report params")
)
