// Package export writes the purchasing report workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-intake/internal/aggregate"
	"github.com/joseph-ayodele/order-intake/internal/entity"
)

const (
	SheetLines   = "注文一覧"
	SheetSorted  = "注文一覧(層別結果)"
	SheetSummary = "集計結果"

	// ContentType is the MIME type of the workbook bytes.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var summaryHeaders = []string{"商品名", "サイズ", "備考", "数量", "単位"}

// Service renders working sets into XLSX bytes.
type Service struct {
	layouts *Layouts
	loc     *time.Location
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds an export service. loc names the report timezone; nil means Asia/Tokyo (UTC when unavailable).
func NewService(layouts *Layouts, loc *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if layouts == nil {
		layouts = DefaultLayouts()
	}
	if loc == nil {
		var err error
		if loc, err = time.LoadLocation("Asia/Tokyo"); err != nil {
			loc = time.UTC
		}
	}
	return &Service{layouts: layouts, loc: loc, logger: logger, now: time.Now}
}

// FileName is the report name for t in loc, e.g. "250722_0915.xlsx".
func FileName(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("060102_1504") + ".xlsx"
}

// FileName is the report name for the current time.
func (s *Service) FileName() string {
	return FileName(s.now(), s.loc)
}

// Workbook renders lines as given, lines sorted for review, and the aggregation table.
func (s *Service) Workbook(ctx context.Context, lines []entity.OrderLine, account string) ([]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cols := s.layouts.For(account)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()
	if err := f.SetSheetName(f.GetSheetName(0), SheetLines); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetSorted); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	if err := writeLines(f, SheetLines, cols, lines); err != nil {
		return nil, err
	}
	if err := writeLines(f, SheetSorted, cols, aggregate.SortLines(lines)); err != nil {
		return nil, err
	}
	summary := aggregate.Summarize(lines)
	if err := writeSummary(f, summary); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"account", account,
		"rows", len(lines),
		"groups", len(summary),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeLines(f *excelize.File, sheet string, cols []Column, lines []entity.OrderLine) error {
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.Label
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, c.Width); err != nil {
			return err
		}
	}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}

	for r, l := range lines {
		values := make([]any, len(cols))
		for i, c := range cols {
			values[i] = fields[c.Field].value(l)
		}
		if err := writeRow(f, sheet, r+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, rows []entity.AggregationRow) error {
	header := make([]any, len(summaryHeaders))
	for i, h := range summaryHeaders {
		header[i] = h
	}
	if err := writeRow(f, SheetSummary, 1, header); err != nil {
		return err
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 28) // name
	_ = f.SetColWidth(SheetSummary, "C", "C", 32) // remark

	for i, a := range rows {
		if err := writeRow(f, SheetSummary, i+2, []any{a.ProductName, a.Size, a.Remark, a.QuantitySum, a.Unit}); err != nil {
			return err
		}
	}
	return nil
}
