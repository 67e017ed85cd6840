package workorders

import (
	"fmt"
	"io"

	"eam/pkg/models"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "WorkOrders"

var exportHeaders = []string{"Work Order", "Type", "Status", "Description", "Asset", "Location", "Updated At"}

// WriteWorkbook renders a work order list as an XLSX workbook.
func WriteWorkbook(w io.Writer, orders []models.WorkOrderSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for r, wo := range orders {
		row := []interface{}{
			wo.ID,
			string(wo.Type),
			string(wo.Status),
			wo.Description,
			wo.AssetNum,
			wo.Location,
			wo.UpdatedAt.UTC().Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	if err := f.SetColWidth(exportSheet, "A", lastCol, 18); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "D", "D", 48); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	return f.Write(w)
}
