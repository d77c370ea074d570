package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"autoquote/internal"
	"autoquote/internal/util"
)

// ExportReviewQueue writes flagged and error records to a workbook so they
// can be worked through offline.
func ExportReviewQueue(records []internal.ProcessedEmail, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Review"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	headers := []string{
		"record_id", "created_at", "from_email", "from_name", "subject",
		"status", "flag_reason", "confidence", "error_message", "requested_products", "raw_ref",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, rec := range records {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, rec.ID)
		set(2, rec.CreatedAt)
		set(3, rec.FromAddress)
		set(4, rec.FromName)
		set(5, rec.Subject)
		set(6, string(rec.Status))
		set(7, util.Deref(rec.FlagReason))
		set(8, rec.Confidence)
		set(9, util.Deref(rec.ErrorMessage))
		set(10, requestedProducts(rec.AIExtraction))
		set(11, util.Deref(rec.RawRef))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// requestedProducts summarises the stored extraction payload as "name x qty" lines.
func requestedProducts(payload string) string {
	var p extractionPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return ""
	}
	lines := make([]string, 0, len(p.Products))
	for _, item := range p.Products {
		lines = append(lines, fmt.Sprintf("%s x %d", item.Name, item.Quantity))
	}
	return strings.Join(lines, "\n")
}
