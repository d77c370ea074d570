package pipeline

import (
	"testing"

	"autoquote/internal"
)

func routeCatalog() []internal.Product {
	return []internal.Product{
		{ID: 1, Name: "LED Panel 2x2", BasePrice: 1200, Active: true},
		{ID: 2, Name: "MCB 32A", BasePrice: 250, Active: true},
		{ID: 3, Name: "Copper Cable 2.5 sqmm", BasePrice: 1450, Active: true},
	}
}

func success(conf float64, names ...string) internal.ExtractionSuccess {
	items := make([]internal.ExtractedLineItem, 0, len(names))
	for _, n := range names {
		items = append(items, internal.ExtractedLineItem{Name: n, Quantity: 1})
	}
	return internal.ExtractionSuccess{Items: items, Confidence: conf}
}

func TestDecide(t *testing.T) {
	th := DefaultThresholds()
	catalog := routeCatalog()

	t.Run("failure is not understood", func(t *testing.T) {
		d := Decide(internal.ExtractionFailure{Reason: "boom"}, catalog, th)
		if d.Action != ActionFlag || d.Reason != internal.ReasonNotUnderstood {
			t.Fatalf("got %+v", d)
		}
	})
	t.Run("zero items is not understood", func(t *testing.T) {
		d := Decide(success(90), catalog, th)
		if d.Action != ActionFlag || d.Reason != internal.ReasonNotUnderstood {
			t.Fatalf("got %+v", d)
		}
	})
	t.Run("all exact auto sends", func(t *testing.T) {
		d := Decide(success(90, "led panel 2x2", "MCB 32A"), catalog, th)
		if d.Action != ActionAutoSend || d.Confidence != 100 || len(d.Matched) != 2 {
			t.Fatalf("got %+v", d)
		}
	})
	t.Run("one strong one unmatched is low confidence", func(t *testing.T) {
		// one substitution in 21 chars
		d := Decide(success(90, "Copper Cable 2.5 sqmx", "Transformer 500kVA"), catalog, th)
		if d.Action != ActionFlag || d.Reason != internal.ReasonLowConfidence {
			t.Fatalf("got %+v", d)
		}
		if len(d.Matched) != 1 || len(d.Unmatched) != 1 {
			t.Fatalf("matched=%d unmatched=%d", len(d.Matched), len(d.Unmatched))
		}
		if !approx(d.Confidence, d.Matched[0].Match.Similarity*100/2) {
			t.Fatalf("confidence=%v", d.Confidence)
		}
	})
	t.Run("admitted but not auto priceable is unmatched", func(t *testing.T) {
		// containment: 0.85
		d := Decide(success(99, "MCB"), catalog, th)
		if len(d.Matched) != 0 || len(d.Unmatched) != 1 || d.Confidence != 0 {
			t.Fatalf("got %+v", d)
		}
		if d.Reason != internal.ReasonLowConfidence {
			t.Fatalf("reason=%s", d.Reason)
		}
	})
	t.Run("no matches with zero bar", func(t *testing.T) {
		loose := Thresholds{Admission: 0.7, AutoPrice: 0.95, AutoSendConfidence: 0}
		d := Decide(success(99, "Transformer"), catalog, loose)
		if d.Action != ActionFlag || d.Reason != internal.ReasonNoMatches {
			t.Fatalf("got %+v", d)
		}
	})
}

func TestDecideOneStrongLineOneUnknownAveragesToHalf(t *testing.T) {
	// a line at 0.96 and an unmatched one aggregate to 48
	catalog := []internal.Product{{ID: 1, Name: "abcdefghijklmnopqrstuvwxy", Active: true}}
	d := Decide(success(95, "abcdefghijklmnopqrstuvwxz", "zzzz"), catalog, DefaultThresholds())
	if !approx(d.Confidence, 48) || d.Reason != internal.ReasonLowConfidence {
		t.Fatalf("got %+v", d)
	}
}
