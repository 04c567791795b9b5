// Package export renders persona results as XLSX workbooks.
package export

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/docsift/internal/pipeline"
)

const (
	SheetSections    = "Sections"
	SheetSubsections = "Subsections"
	SheetMetadata    = "Metadata"

	// Excel rejects cells longer than 32767 characters.
	maxCellLen = 32000
)

// Exporter builds workbooks and logs each export.
type Exporter struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// PersonaXLSX returns the workbook bytes for res.
func (e *Exporter) PersonaXLSX(res *pipeline.PersonaResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSections); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetSubsections, SheetMetadata} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet %s: %w", name, err)
		}
	}

	sections := [][]any{{"Rank", "Document", "Page", "Section Title", "Content"}}
	for _, s := range res.ExtractedSections {
		sections = append(sections, []any{s.ImportanceRank, s.Document, s.PageNumber, s.SectionTitle, clip(s.Content)})
	}
	if err := writeRows(f, SheetSections, sections); err != nil {
		return nil, err
	}

	subs := [][]any{{"Document", "Page", "Section Title", "Refined Text"}}
	for _, s := range res.SubsectionAnalysis {
		subs = append(subs, []any{s.Document, s.PageNumber, s.SectionTitle, clip(s.RefinedText)})
	}
	if err := writeRows(f, SheetSubsections, subs); err != nil {
		return nil, err
	}

	md := res.Metadata
	meta := [][]any{
		{"Persona", md.Persona},
		{"Job To Be Done", md.JobToBeDone},
		{"Processing Timestamp", md.ProcessingTimestamp},
	}
	for _, d := range md.InputDocuments {
		meta = append(meta, []any{"Input Document", d})
	}
	if err := writeRows(f, SheetMetadata, meta); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(SheetSections, "A", "A", 8)  // rank
	_ = f.SetColWidth(SheetSections, "B", "B", 28) // document
	_ = f.SetColWidth(SheetSections, "C", "C", 8)  // page
	_ = f.SetColWidth(SheetSections, "D", "D", 40) // title
	_ = f.SetColWidth(SheetSections, "E", "E", 80) // content
	_ = f.SetColWidth(SheetSubsections, "A", "A", 28)
	_ = f.SetColWidth(SheetSubsections, "C", "C", 40)
	_ = f.SetColWidth(SheetSubsections, "D", "D", 80)
	_ = f.SetColWidth(SheetMetadata, "A", "A", 22)
	_ = f.SetColWidth(SheetMetadata, "B", "B", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("export.xlsx.ok",
		"sections", len(res.ExtractedSections),
		"subsections", len(res.SubsectionAnalysis),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxCellLen {
		return s
	}
	return string([]rune(s)[:maxCellLen])
}
