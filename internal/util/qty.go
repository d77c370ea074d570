package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	unitPattern     = regexp.MustCompile(`(?i)\b(pcs|pc|nos|no|units?|pieces?|kg|kgs|m|mtr|meters?|box(?:es)?|sets?|pkts?|rolls?|ltrs?)\b`)
	withUnitPattern = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:[.,]\d{3})+|\d+(?:[.,]\d+)?)\s*(pcs|pc|nos|no|units?|pieces?|kg|kgs|m|mtr|meters?|box(?:es)?|sets?|pkts?|rolls?|ltrs?)\b`)
	numberPattern   = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:[.,]\d{3})+|\d+(?:[.,]\d+)?)`)
	thousandsDot    = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	thousandsComma  = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

type ParsedQty struct {
	Qty    *float64
	Unit   *string
	QtyRaw *string
}

// ParseQty finds the last number in the input, preferring one followed by a unit.
func ParseQty(input string) ParsedQty {
	line := strings.ReplaceAll(input, "\u00A0", " ")

	qtyRaw := ""
	qtyToken := ""

	if wm := withUnitPattern.FindAllStringSubmatch(line, -1); len(wm) > 0 {
		last := wm[len(wm)-1]
		qtyRaw = strings.TrimSpace(last[1] + " " + last[2])
		qtyToken = strings.TrimSpace(last[1])
	} else if nm := numberPattern.FindAllStringSubmatch(line, -1); len(nm) > 0 {
		last := nm[len(nm)-1]
		qtyRaw = strings.TrimSpace(last[1])
		qtyToken = qtyRaw
	}

	var qtyPtr *float64
	if qtyToken != "" {
		if parsed, err := strconv.ParseFloat(normalizeNumericToken(qtyToken), 64); err == nil {
			qtyPtr = FloatPtr(parsed)
		}
	}

	var unitPtr *string
	if um := unitPattern.FindStringSubmatch(line); len(um) > 1 {
		u := normalizeUnit(um[1])
		unitPtr = &u
	}

	var qtyRawPtr *string
	if qtyRaw != "" {
		qtyRawPtr = &qtyRaw
	}

	return ParsedQty{Qty: qtyPtr, Unit: unitPtr, QtyRaw: qtyRawPtr}
}

// Quantity parses a requested quantity as a whole number of at least 1.
// Fractions are truncated; anything unparseable defaults to 1.
func Quantity(input string) int {
	parsed := ParseQty(input)
	if parsed.Qty == nil {
		return 1
	}
	n := int(math.Floor(*parsed.Qty))
	if n < 1 {
		return 1
	}
	return n
}

func normalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "pcs", "pc", "nos", "no", "unit", "units", "piece", "pieces":
		return "pcs"
	case "m", "mtr", "meter", "meters":
		return "m"
	case "kg", "kgs":
		return "kg"
	case "box", "boxes":
		return "box"
	case "set", "sets":
		return "set"
	default:
		return u
	}
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if thousandsDot.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if thousandsComma.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
