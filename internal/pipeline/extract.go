package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"autoquote/internal"
	"autoquote/internal/util"
)

// ExtractionInput is everything handed to the extractor for one message.
type ExtractionInput struct {
	Subject string
	Body    string
	Tables  []internal.Table
}

var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^--\s*$`),
	regexp.MustCompile(`^_{3,}$`),
	regexp.MustCompile(`(?i)^sent from my `),
	regexp.MustCompile(`(?i)^on .+ wrote:$`),
}

// BuildExtractionInput prepares a message for extraction: the plain body (or
// the HTML body flattened to lines), PDF attachment text appended below it,
// and every spreadsheet attachment as header-keyed rows.
func BuildExtractionInput(msg internal.RawMessage) ExtractionInput {
	body := strings.TrimSpace(msg.BodyText)
	if body == "" && msg.BodyHTML != "" {
		body = htmlToText(msg.BodyHTML)
	}
	body = stripQuotedTail(body)

	in := ExtractionInput{Subject: msg.Subject}
	parts := []string{body}
	for _, att := range msg.Attachments {
		name := util.FirstNonEmpty(strings.TrimSpace(att.FileName), "attachment")
		switch attachmentKind(name, att.ContentType) {
		case kindSpreadsheet:
			table, err := spreadsheetTable(name, att.Content)
			if err != nil {
				log.Warn().Err(err).Str("attachment", name).Msg("spreadsheet attachment unreadable")
				continue
			}
			if len(table.Rows) > 0 {
				in.Tables = append(in.Tables, table)
			}
		case kindPDF:
			text, err := pdfText(att.Content)
			if err != nil {
				log.Warn().Err(err).Str("attachment", name).Msg("pdf attachment unreadable")
				continue
			}
			if text != "" {
				parts = append(parts, fmt.Sprintf("[%s]\n%s", name, text))
			}
		}
	}
	in.Body = strings.TrimSpace(strings.Join(parts, "\n\n"))
	return in
}

type fileKind int

const (
	kindOther fileKind = iota
	kindSpreadsheet
	kindPDF
)

func attachmentKind(name, contentType string) fileKind {
	lower := strings.ToLower(name)
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"), strings.HasSuffix(lower, ".csv"),
		strings.Contains(ct, "spreadsheetml"), ct == "text/csv":
		return kindSpreadsheet
	case strings.HasSuffix(lower, ".pdf"), ct == "application/pdf":
		return kindPDF
	}
	return kindOther
}

func spreadsheetTable(name string, content []byte) (internal.Table, error) {
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		return csvTable(bytes.NewReader(content))
	}
	return xlsxTable(content)
}

// xlsxTable reads the first sheet only.
func xlsxTable(content []byte) (internal.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return internal.Table{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return internal.Table{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return internal.Table{}, err
	}
	return rowsToTable(rows), nil
}

func csvTable(r io.Reader) (internal.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return internal.Table{}, err
	}
	return rowsToTable(rows), nil
}

// rowsToTable treats the first non-empty row as the header. Blank header
// cells are named by position; rows with no values are skipped.
func rowsToTable(rows [][]string) internal.Table {
	var headers []string
	out := []map[string]string{}
	for _, row := range rows {
		cells := normalizeCells(row)
		if isBlankRow(cells) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(cells))
			for i, h := range cells {
				if h == "" {
					h = fmt.Sprintf("column %d", i+1)
				}
				headers[i] = h
			}
			continue
		}
		record := map[string]string{}
		for i, v := range cells {
			if v == "" {
				continue
			}
			if i < len(headers) {
				record[headers[i]] = v
			} else {
				record[fmt.Sprintf("column %d", i+1)] = v
			}
		}
		for i := len(headers); i < len(cells); i++ {
			headers = append(headers, fmt.Sprintf("column %d", i+1))
		}
		out = append(out, record)
	}
	return internal.Table{Headers: headers, Rows: out}
}

func pdfText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, splitLines(text)...)
	}
	return strings.Join(lines, "\n"), nil
}

// htmlToText flattens an HTML body to lines. Table rows become one line with
// cells joined by " | " so quantities stay next to their product.
func htmlToText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()

	// innermost first, so a block's text already carries its children's breaks
	blocks := doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, br")
	for i := blocks.Length() - 1; i >= 0; i-- {
		s := blocks.Eq(i)
		if goquery.NodeName(s) != "tr" {
			s.SetText(s.Text() + "\n")
			continue
		}
		cells := []string{}
		s.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			if v := util.NormalizeSpaces(cell.Text()); v != "" {
				cells = append(cells, v)
			}
		})
		s.SetText(strings.Join(cells, " | ") + "\n")
	}

	lines := []string{}
	for _, line := range splitLines(doc.Text()) {
		if v := util.NormalizeSpaces(line); v != "" {
			lines = append(lines, v)
		}
	}
	return strings.Join(lines, "\n")
}

// stripQuotedTail drops the signature block and any quoted reply below it.
func stripQuotedTail(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if i > 0 && isSignatureStart(trimmed) {
			return strings.TrimSpace(strings.Join(lines[:i], "\n"))
		}
	}
	return strings.TrimSpace(body)
}

func isSignatureStart(line string) bool {
	for _, re := range signaturePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	return out
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
