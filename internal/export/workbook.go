package export

import (
	"fmt"
	"io"

	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Transactions"
	FileName    = "dinarwise-export.xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// MaxRows caps the number of exported transactions, newest first.
	MaxRows = 500
)

var Header = []string{"Date", "Type", "Amount", "Description", "Category"}

type Row struct {
	Date        string
	Type        string
	Amount      float64
	Description string
	Category    string
}

// Rows flattens transactions into spreadsheet rows. The input is expected in
// display order (newest first) and is truncated to MaxRows.
func Rows(txs []finance.Transaction) []Row {
	if len(txs) > MaxRows {
		txs = txs[:MaxRows]
	}
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		date := ""
		if !tx.Date.IsZero() {
			date = tx.Date.UTC().Format("2006-01-02")
		}
		rows = append(rows, Row{
			Date:        date,
			Type:        string(tx.Type),
			Amount:      tx.Amount.InexactFloat64(),
			Description: tx.Description,
			Category:    tx.Category,
		})
	}
	return rows
}

// WriteWorkbook renders txs as a single-sheet xlsx document into w.
func WriteWorkbook(w io.Writer, txs []finance.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range Rows(txs) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{row.Date, row.Type, row.Amount, row.Description, row.Category}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
