package pipeline

import (
	"encoding/json"
	"strings"

	"autoquote/internal"
	"autoquote/internal/util"
)

// NormalizeItems trims names, drops nameless lines and defaults quantity to 1.
func NormalizeItems(items []internal.ExtractedLineItem) []internal.ExtractedLineItem {
	out := make([]internal.ExtractedLineItem, 0, len(items))
	for _, item := range items {
		name := util.NormalizeSpaces(item.Name)
		if name == "" {
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, internal.ExtractedLineItem{
			Name:           name,
			Quantity:       qty,
			Specifications: strings.TrimSpace(item.Specifications),
		})
	}
	return out
}

// MergeExtractions combines the body extraction with attachment extractions.
// Items from every successful source are concatenated in order and the
// confidence is the highest among them. The merge fails only when no source
// succeeded.
func MergeExtractions(sources ...internal.Extraction) internal.Extraction {
	var items []internal.ExtractedLineItem
	var raws, reasons []string
	confidence := 0.0
	succeeded := false

	for _, src := range sources {
		switch e := src.(type) {
		case internal.ExtractionSuccess:
			succeeded = true
			items = append(items, NormalizeItems(e.Items)...)
			if e.Confidence > confidence {
				confidence = e.Confidence
			}
			if e.Raw != "" {
				raws = append(raws, e.Raw)
			}
		case internal.ExtractionFailure:
			if e.Reason != "" {
				reasons = append(reasons, e.Reason)
			}
			if e.Raw != "" {
				raws = append(raws, e.Raw)
			}
		}
	}

	if !succeeded {
		reason := strings.Join(reasons, "; ")
		if reason == "" {
			reason = "no extraction source"
		}
		return internal.ExtractionFailure{Reason: reason, Raw: strings.Join(raws, "\n")}
	}
	return internal.ExtractionSuccess{Items: items, Confidence: clampConfidence(confidence), Raw: strings.Join(raws, "\n")}
}

type extractionPayload struct {
	Success    bool                         `json:"success"`
	Products   []internal.ExtractedLineItem `json:"products"`
	Confidence float64                      `json:"confidence"`
	Error      string                       `json:"error,omitempty"`
	Raw        string                       `json:"rawResponse,omitempty"`
}

// ExtractionPayload renders an extraction for the audit record and returns
// the extractor's own confidence.
func ExtractionPayload(e internal.Extraction) (string, float64) {
	p := extractionPayload{Products: []internal.ExtractedLineItem{}}
	switch v := e.(type) {
	case internal.ExtractionSuccess:
		p.Success = len(v.Items) > 0
		p.Products = append(p.Products, v.Items...)
		p.Confidence = v.Confidence
		p.Raw = v.Raw
	case internal.ExtractionFailure:
		p.Error = v.Reason
		p.Raw = v.Raw
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "{}", p.Confidence
	}
	return string(b), p.Confidence
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
