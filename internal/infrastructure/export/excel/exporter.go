// Package excel renders documents as xlsx workbooks for clients who
// want the numbers in a spreadsheet rather than a PDF.
package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

// Write renders the document into an xlsx workbook on w. Layout: a
// header block, one row per item grouped under section rows (quotes)
// or a flat item list (invoices), then the totals block.
func (e *Exporter) Write(w io.Writer, doc *domain.Document, client *domain.Client) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	const sheet = "Sheet1"
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	row := 1
	setRow := func(style int, values ...any) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
			if style != 0 {
				if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
					return fmt.Errorf("style cell %s: %w", cell, err)
				}
			}
		}
		row++
		return nil
	}

	title := doc.Title
	if title == "" {
		title = doc.Number
	}
	if err := setRow(bold, title); err != nil {
		return err
	}
	if err := setRow(0, "Number", doc.Number); err != nil {
		return err
	}
	if err := setRow(0, "Status", string(doc.Status)); err != nil {
		return err
	}
	if client != nil {
		if err := setRow(0, "Client", client.Name); err != nil {
			return err
		}
	}
	if doc.ValidUntil != nil {
		if err := setRow(0, "Valid until", doc.ValidUntil.Format("2006-01-02")); err != nil {
			return err
		}
	}
	row++

	if err := setRow(bold, "Item", "Mode", "Qty / Hours", "Rate", "Total"); err != nil {
		return err
	}

	writeItem := func(it domain.Item) error {
		qty, rate := it.Quantity, it.UnitPrice
		if it.BillingMode == domain.BillingHourly {
			qty, rate = it.Hours, it.HourlyRate
		}
		name := it.Name
		if doc.Kind == domain.KindQuote && !it.IncludeInTotal {
			name += " (optional)"
		}
		return setRow(0, name, string(it.BillingMode), qty.InexactFloat64(), rate.InexactFloat64(), it.Total.InexactFloat64())
	}

	for _, sec := range doc.Sections {
		if err := setRow(bold, fmt.Sprintf("%d. %s", sec.SectionNumber, sec.Name)); err != nil {
			return err
		}
		for _, it := range sec.Items {
			if err := writeItem(it); err != nil {
				return err
			}
		}
	}
	for _, it := range doc.Items {
		if err := writeItem(it); err != nil {
			return err
		}
	}
	row++

	totals := [][2]any{
		{"Subtotal", doc.Subtotal.InexactFloat64()},
	}
	if !doc.DiscountAmount.IsZero() {
		totals = append(totals, [2]any{"Discount", doc.DiscountAmount.Neg().InexactFloat64()})
	}
	totals = append(totals,
		[2]any{fmt.Sprintf("Tax 1 (%s%%)", doc.Taxes.Rate1.String()), doc.TaxAmount1.InexactFloat64()},
		[2]any{fmt.Sprintf("Tax 2 (%s%%)", doc.Taxes.Rate2.String()), doc.TaxAmount2.InexactFloat64()},
	)
	if !doc.LateFeeAmount.IsZero() {
		totals = append(totals, [2]any{"Late fee", doc.LateFeeAmount.InexactFloat64()})
	}
	totals = append(totals, [2]any{"Total", doc.Total.InexactFloat64()})

	for _, pair := range totals {
		style := 0
		if pair[0] == "Total" {
			style = bold
		}
		if err := setRow(style, pair[0], pair[1]); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
