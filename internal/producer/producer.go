package producer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/reporthub/internal/domain/report"
)

// Output is what a generation run yields. The content type is fully
// determined by params.format; the bytes themselves may differ between runs
// (each carries a generation timestamp).

type Output struct {
	Content     []byte
	ContentType string
	Checksum    string
}

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// Generate synthesizes the report body for the requested type over the
// params date range. It never touches the store.

func (g *Generator) Generate(ctx context.Context, typ report.Type, params report.Params) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	rows, err := rowsFor(typ, params)

	if err != nil {
		return Output{}, err
	}

	var content []byte
	var contentType string

	switch params.Format {
	case report.FormatCSV:
		content, err = encodeCSV(rows)
		contentType = "text/csv"
	case report.FormatJSON:
		content, err = encodeJSON(typ, params, rows)
		contentType = "application/json"
	default:
		return Output{}, report.ErrInvalidFormat
	}

	if err != nil {
		return Output{}, err
	}

	sum := sha256.Sum256(content)

	return Output{
		Content:     content,
		ContentType: contentType,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

type row struct {
	Date   string `json:"date"`
	Metric string `json:"metric"`
	Value  int64  `json:"value"`
}

// rowsFor walks the date range one day at a time and emits per-type synthetic
// metrics. Stand-in for whatever a production deployment would compute.

func rowsFor(typ report.Type, params report.Params) ([]row, error) {
	from, err := time.Parse("2006-01-02", params.From)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", report.ErrInvalidParams, err)
	}

	to, err := time.Parse("2006-01-02", params.To)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", report.ErrInvalidParams, err)
	}

	var metric string

	switch typ {
	case report.TypeUsageSummary:
		metric = "api_calls"
	case report.TypeBillingExport:
		metric = "billed_cents"
	case report.TypeAuditSnapshot:
		metric = "audit_events"
	default:
		return nil, report.ErrInvalidType
	}

	var out []row

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		// deterministic per day so two workers produce comparable bodies
		seed := int64(d.YearDay()*31 + d.Year())

		out = append(out, row{
			Date:   d.Format("2006-01-02"),
			Metric: metric,
			Value:  seed,
		})
	}

	return out, nil
}

func encodeCSV(rows []row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"date", "metric", "value"}); err != nil {
		return nil, err
	}

	for _, r := range rows {
		if err := w.Write([]string{r.Date, r.Metric, strconv.FormatInt(r.Value, 10)}); err != nil {
			return nil, err
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func encodeJSON(typ report.Type, params report.Params, rows []row) ([]byte, error) {
	doc := struct {
		Type        report.Type `json:"type"`
		From        string      `json:"from"`
		To          string      `json:"to"`
		GeneratedAt time.Time   `json:"generatedAt"`
		Rows        []row       `json:"rows"`
	}{
		Type:        typ,
		From:        params.From,
		To:          params.To,
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
	}

	return json.Marshal(doc)
}
