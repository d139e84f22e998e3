package report

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ValidateRequest enforces the closed enum sets and the date range before
// anything touches the store.

func ValidateRequest(req CreateRequest) error {
	if req.TenantID == "" {
		return fmt.Errorf("%w: tenant is required", ErrInvalidParams)
	}

	if !req.Type.IsValid() {
		return ErrInvalidType
	}

	return ValidateParams(req.Params)
}

func ValidateParams(p Params) error {
	if !p.Format.IsValid() {
		return ErrInvalidFormat
	}

	from, err := time.Parse(dateLayout, p.From)

	if err != nil {
		return fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidParams)
	}

	to, err := time.Parse(dateLayout, p.To)

	if err != nil {
		return fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidParams)
	}

	if to.Before(from) {
		return fmt.Errorf("%w: to must not precede from", ErrInvalidParams)
	}

	return nil
}
