package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"clientmap/internal"
)

// ExportEntitiesToXLSX writes a spreadsheet view of the artifact for
// people who do not use the map.
func ExportEntitiesToXLSX(entities []internal.Entity, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{"name", "taxId", "city", "contact", "phone", "latitude", "longitude", "equipment"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, e := range entities {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, e.Name)
		set(2, e.TaxID)
		set(3, e.City)
		set(4, e.Contact)
		set(5, e.Phone)
		set(6, derefFloat(e.Latitude))
		set(7, derefFloat(e.Longitude))
		set(8, strings.Join(e.Equipment, "; "))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
