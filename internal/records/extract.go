package records

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/playbot/internal/browser"
)

type attacher interface {
	attach(row browser.Element)
}

// Extractor turns table rows into records.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor that logs skipped rows at debug level.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{logger: logger}
}

// Extract reads at most limit rows of the schema's list from q. The cap is
// applied before filtering, so rows the portal already marks as used count
// toward it. Used rows and rows with too few cells yield no record.
func (x *Extractor) Extract(ctx context.Context, q browser.Querier, schema Schema, limit int) ([]Record, error) {
	rows, err := findRows(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	logger := x.logger.With("kind", schema.Kind)
	var out []Record
	for i, row := range rows {
		html, err := row.HTML(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			logger.Debug("row skipped", "row", i, "reason", err)
			continue
		}
		sel, err := parseRow(html)
		if err != nil {
			logger.Debug("row skipped", "row", i, "reason", err)
			continue
		}
		if schema.used(sel) {
			logger.Debug("row skipped", "row", i, "reason", "already used")
			continue
		}

		rec, ok := x.build(schema, sel)
		if !ok {
			logger.Debug("row skipped", "row", i, "reason", "too few cells", "want", schema.Arity)
			continue
		}
		rec.(attacher).attach(row)
		out = append(out, rec)
	}

	logger.Info("records extracted", "rows", len(rows), "records", len(out))
	return out, nil
}

func (x *Extractor) build(schema Schema, row *goquery.Selection) (Record, bool) {
	cells := Cells(row)
	if len(cells) < schema.Arity {
		return nil, false
	}
	return schema.build(cells), true
}

// findRows returns the matches of the first row candidate that matches anything.
func findRows(ctx context.Context, q browser.Querier, schema Schema) ([]browser.Element, error) {
	for _, candidate := range schema.Rows.Candidates() {
		els, err := q.QueryAll(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if len(els) > 0 {
			return els, nil
		}
	}
	return nil, nil
}

// parseRow parses a row's outer HTML. Table rows are wrapped so the HTML
// parser keeps their cells.
func parseRow(html string) (*goquery.Selection, error) {
	trimmed := strings.TrimSpace(html)
	if trimmed == "" {
		return nil, fmt.Errorf("empty row")
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<tr") {
		trimmed = "<table><tbody>" + trimmed + "</tbody></table>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return nil, fmt.Errorf("parse row: %w", err)
	}
	return doc.Selection, nil
}

// Cells returns the normalized text of every td in the row
func Cells(row *goquery.Selection) []string {
	var cells []string
	row.Find("td").Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, cellText(td))
	})
	return cells
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
