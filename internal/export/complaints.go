// Package export renders admin reports as Excel workbooks.
package export

import (
	"bytes"
	"fmt"

	"civicdesk/backend/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	complaintsSheet = "Complaints"
	timeLayout      = "2006-01-02 15:04"
)

// ComplaintHeaders are the column titles of the complaints export.
var ComplaintHeaders = []string{
	"ID", "Citizen", "Title", "Description", "Location",
	"Latitude", "Longitude", "Status", "Created", "Updated",
}

var columnWidths = []float64{8, 20, 30, 40, 30, 12, 12, 14, 18, 18}

// Complaints builds an .xlsx workbook with one row per complaint.
func Complaints(complaints []models.Complaint) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(complaintsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, h := range ComplaintHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(complaintsSheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to set header %s: %w", cell, err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(complaintsSheet, col, col, columnWidths[i]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(ComplaintHeaders), 1)
	if err := f.SetCellStyle(complaintsSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, c := range complaints {
		row := []any{
			c.ID, c.CitizenName, c.Title, c.Description, c.Location,
			floatOrEmpty(c.Latitude), floatOrEmpty(c.Longitude), string(c.Status),
			c.CreatedAt.Format(timeLayout), c.UpdatedAt.Format(timeLayout),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(complaintsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	// заморожуємо заголовок
	if err := f.SetPanes(complaintsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func floatOrEmpty(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
