package pipeline

import (
	"autoquote/internal"
)

type Action string

const (
	ActionAutoSend Action = "auto_send"
	ActionFlag     Action = "flag"
)

// Decision is the routing outcome for one whitelisted message.
type Decision struct {
	Action     Action
	Reason     internal.FlagReason
	Confidence float64
	Matched    []MatchedLine
	Unmatched  []internal.ExtractedLineItem
}

// Decide routes an extraction against a catalog snapshot.
//
// A failed or empty extraction is flagged Not Understood. Otherwise every line
// is classified; the aggregate confidence is the mean of matched similarities
// (as percentages) over all lines, unmatched lines counting as zero. The
// message is auto-sent only when the aggregate clears the bar and at least
// one line matched.
func Decide(extraction internal.Extraction, catalog []internal.Product, th Thresholds) Decision {
	success, ok := extraction.(internal.ExtractionSuccess)
	if !ok || len(success.Items) == 0 {
		return Decision{Action: ActionFlag, Reason: internal.ReasonNotUnderstood}
	}

	d := Decision{}
	total := 0.0
	for _, item := range success.Items {
		m, ok := th.Classify(item.Name, catalog)
		if !ok {
			d.Unmatched = append(d.Unmatched, item)
			continue
		}
		d.Matched = append(d.Matched, MatchedLine{Item: item, Match: m})
		total += m.Similarity * 100
	}
	d.Confidence = total / float64(len(success.Items))

	switch {
	case d.Confidence >= th.AutoSendConfidence && len(d.Matched) > 0:
		d.Action = ActionAutoSend
	case d.Confidence < th.AutoSendConfidence:
		d.Action = ActionFlag
		d.Reason = internal.ReasonLowConfidence
	default:
		// reachable only with a non-positive auto-send bar
		d.Action = ActionFlag
		d.Reason = internal.ReasonNoMatches
	}
	return d
}
