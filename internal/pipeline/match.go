package pipeline

import (
	"autoquote/internal"
)

const (
	// AdmissionThreshold is the similarity at which a product is plausibly the one requested.
	AdmissionThreshold = 0.70
	// AutoPriceThreshold is the similarity required to bill a line without review.
	AutoPriceThreshold = 0.95
	// AutoSendConfidence is the aggregate confidence (0-100) required to send a quote unreviewed.
	AutoSendConfidence = 95.0
)

// FindBestMatch scores requested against every active product and returns the
// best one at or above threshold. Ties keep the earliest product in catalog order.
func FindBestMatch(requested string, catalog []internal.Product, threshold float64) (internal.MatchResult, bool) {
	var best internal.MatchResult
	found := false
	for _, p := range catalog {
		if !p.Active {
			continue
		}
		score := Similarity(requested, p.Name)
		if score < threshold {
			continue
		}
		if !found || score > best.Similarity {
			best = internal.MatchResult{Product: p, Similarity: score}
			found = true
		}
	}
	return best, found
}

type Thresholds struct {
	Admission          float64
	AutoPrice          float64
	AutoSendConfidence float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Admission: AdmissionThreshold, AutoPrice: AutoPriceThreshold, AutoSendConfidence: AutoSendConfidence}
}

// Classify admits a match at the admission threshold and keeps it only if it
// also clears the auto-price threshold. Anything in between is unmatched.
func (t Thresholds) Classify(requested string, catalog []internal.Product) (internal.MatchResult, bool) {
	m, ok := FindBestMatch(requested, catalog, t.Admission)
	if !ok || m.Similarity < t.AutoPrice {
		return internal.MatchResult{}, false
	}
	return m, true
}
