package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"autoquote/internal"
	"autoquote/internal/util"
)

type ProductWriter interface {
	InsertProducts(ctx context.Context, products []internal.Product) ([]int64, error)
}

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportResult struct {
	BatchID  string     `json:"batchId"`
	Imported int        `json:"imported"`
	Errors   []RowError `json:"errorDetails"`
}

var columnAliases = map[string][]string{
	"name":        {"productname", "name", "product", "item"},
	"description": {"description", "desc"},
	"category":    {"category"},
	"base_price":  {"baseprice", "price", "rate"},
	"min_price":   {"minprice"},
	"max_price":   {"maxprice"},
	"unit":        {"unit", "uom"},
	"hsn":         {"hsn", "hsncode", "hsnsac"},
}

var templateHeaders = []string{"Product Name", "Description", "Category", "HSN Code", "Base Price", "Min Price", "Max Price", "Unit"}

type ImportService struct {
	writer ProductWriter
}

func NewImportService(writer ProductWriter) *ImportService {
	return &ImportService{writer: writer}
}

// Import reads a product sheet (.xlsx or .csv) and inserts every valid row
// under one batch id. Invalid rows are reported, not fatal.
func (s *ImportService) Import(ctx context.Context, filename string, r io.Reader) (ImportResult, error) {
	rows, err := readRows(filename, r)
	if err != nil {
		return ImportResult{}, err
	}

	batchID := uuid.NewString()
	products, rowErrors := ParseProductRows(rows, batchID)
	result := ImportResult{BatchID: batchID, Errors: rowErrors}
	if len(products) == 0 {
		return result, nil
	}

	ids, err := s.writer.InsertProducts(ctx, products)
	if err != nil {
		return result, fmt.Errorf("insert products: %w", err)
	}
	result.Imported = len(ids)
	log.Info().Str("batch", batchID).Int("imported", result.Imported).Int("errors", len(rowErrors)).Msg("catalog import finished")
	return result, nil
}

// ParseProductRows maps a header row plus data rows to products. Row numbers
// in errors are 1-based data rows, header excluded.
func ParseProductRows(rows [][]string, batchID string) ([]internal.Product, []RowError) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols := mapColumns(rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, []RowError{{Row: 0, Error: "missing product name column"}}
	}

	out := []internal.Product{}
	errs := []RowError{}
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		cell := func(key string) string {
			idx, ok := cols[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		name := util.NormalizeSpaces(cell("name"))
		basePrice := parsePrice(cell("base_price"))
		if name == "" || basePrice == nil || *basePrice <= 0 {
			errs = append(errs, RowError{Row: i + 1, Error: "Missing name or invalid price"})
			continue
		}
		minPrice := parsePrice(cell("min_price"))
		maxPrice := parsePrice(cell("max_price"))
		if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
			errs = append(errs, RowError{Row: i + 1, Error: "Min price exceeds max price"})
			continue
		}

		unit := cell("unit")
		if unit == "" {
			unit = "pcs"
		}
		p := internal.Product{
			Name:          name,
			BasePrice:     *basePrice,
			MinPrice:      minPrice,
			MaxPrice:      maxPrice,
			Unit:          unit,
			Active:        true,
			ImportBatchID: util.StringPtr(batchID),
		}
		if v := cell("description"); v != "" {
			p.Description = util.StringPtr(v)
		}
		if v := cell("category"); v != "" {
			p.Category = util.StringPtr(v)
		}
		if v := cell("hsn"); v != "" {
			p.HSNCode = util.StringPtr(v)
		}
		out = append(out, p)
	}
	return out, errs
}

// WriteTemplate writes a sample import workbook.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, "Products"); err != nil {
		return err
	}
	sheet = "Products"

	sample := [][]any{
		{"Copper Cable 2.5 sqmm", "Single core, 90m coil", "Cables", "8544", 1450, 1380, 1600, "coil"},
		{"MCB 32A Double Pole", "C curve, 10kA", "Switchgear", "8536", 520, 495, 575, "pcs"},
	}
	for c, h := range templateHeaders {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range sample {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func readRows(filename string, r io.Reader) ([][]string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		return reader.ReadAll()
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func mapColumns(header []string) map[string]int {
	out := map[string]int{}
	for idx, h := range header {
		key := util.HeaderKey(h)
		for field, aliases := range columnAliases {
			if _, taken := out[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if key == alias {
					out[field] = idx
					break
				}
			}
		}
	}
	return out
}

func parsePrice(value string) *float64 {
	value = strings.TrimSpace(strings.NewReplacer(",", "", "₹", "", "Rs.", "", "Rs", "").Replace(value))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
