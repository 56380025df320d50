package output

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// BatchesWorkbook builds a workbook with one sheet listing the batches of
// state, one row per batch order. Late orders are highlighted.
func BatchesWorkbook(state entities.BatchState, groups []*entities.LineGroup, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := state.String()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	header := make([]interface{}, len(BatchHeader))
	for i, h := range BatchHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(BatchHeader))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		return nil, err
	}

	late, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"F8CBAD"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for i, row := range FlattenBatches(groups, now) {
		rowNo := i + 2
		cells := row.Cells()
		if err := f.SetSheetRow(sheet, "A"+fmt.Sprint(rowNo), &cells); err != nil {
			return nil, err
		}
		if row.Late {
			if err := f.SetCellStyle(sheet, "A"+fmt.Sprint(rowNo), lastCol+fmt.Sprint(rowNo), late); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

// WriteBatchesXLSX streams the batches workbook to w
func WriteBatchesXLSX(w io.Writer, state entities.BatchState, groups []*entities.LineGroup, now time.Time) error {
	f, err := BatchesWorkbook(state, groups, now)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func generateXLSXOutput(state entities.BatchState, groups []*entities.LineGroup, config Config) error {
	if config.OutputDir == "" {
		return fmt.Errorf("output directory required for xlsx format")
	}

	f, err := BatchesWorkbook(state, groups, config.now())
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	defer f.Close()

	filename, err := outputPath(config.OutputDir, state, "xlsx")
	if err != nil {
		return err
	}
	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.out(), "Workbook saved to: %s\n", filename)
	}
	return nil
}
