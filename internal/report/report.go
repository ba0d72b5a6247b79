// Package report exports track progress as an .xlsx spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-roadmap/internal/navigator"
)

// SheetName is the worksheet holding the progress table.
const SheetName = "Progress"

var header = []any{"Position", "Module ID", "Slug", "Title", "Topics", "Visited", "Percent", "Completed", "Last topic"}

// WriteProgress writes one row per module, in flattened order.
func WriteProgress(w io.Writer, trackTitle string, rows []navigator.ModuleStatus) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: trackTitle, Creator: "pai-roadmap"}); err != nil {
		return fmt.Errorf("set doc props: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		lastTopic := ""
		if r.Progress.LastTopic != nil {
			lastTopic = fmt.Sprintf("%d", *r.Progress.LastTopic)
		}
		values := []any{
			r.Position,
			r.Module.ID,
			r.Module.Slug,
			r.Module.Title,
			r.Progress.TotalTopics,
			r.Progress.CompletedCount,
			r.Progress.Percent,
			r.Progress.Completed,
			lastTopic,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write spreadsheet: %w", err)
	}
	return nil
}
