package pipeline

import (
	"context"

	"autoquote/internal"
	"autoquote/internal/catalog"
)

// Preview is a dry run of ProcessMessage: nothing is recorded or sent.
type Preview struct {
	Whitelisted bool
	Input       ExtractionInput
	Extraction  internal.Extraction
	Decision    Decision
	Lines       []internal.QuoteLineItem
}

// Preview extracts and routes msg without touching storage or the outbox.
// Priced lines are filled in only when the message would be auto-sent.
func (s *Service) Preview(ctx context.Context, snap *catalog.Snapshot, msg internal.RawMessage) (Preview, error) {
	p := Preview{Input: BuildExtractionInput(msg)}
	_, p.Whitelisted = snap.LookupCustomer(msg.FromAddress)

	extraction, err := s.extract(ctx, p.Input)
	p.Extraction = extraction
	if err != nil {
		return p, err
	}
	p.Decision = Decide(extraction, snap.Products, s.thresholds)
	if p.Decision.Action == ActionAutoSend {
		for _, line := range p.Decision.Matched {
			p.Lines = append(p.Lines, PriceLine(line))
		}
	}
	return p, nil
}
