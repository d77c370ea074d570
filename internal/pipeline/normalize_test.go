package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"autoquote/internal"
)

func TestNormalizeItems(t *testing.T) {
	got := NormalizeItems([]internal.ExtractedLineItem{
		{Name: "  LED   Panel ", Quantity: 0},
		{Name: "   ", Quantity: 5},
		{Name: "MCB", Quantity: 12, Specifications: " 32A "},
	})
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Name != "LED Panel" || got[0].Quantity != 1 {
		t.Fatalf("first=%+v", got[0])
	}
	if got[1].Specifications != "32A" {
		t.Fatalf("second=%+v", got[1])
	}
}

func TestMergeExtractions(t *testing.T) {
	body := internal.ExtractionSuccess{Items: []internal.ExtractedLineItem{{Name: "A", Quantity: 1}}, Confidence: 70}
	sheet := internal.ExtractionSuccess{Items: []internal.ExtractedLineItem{{Name: "B", Quantity: 4}}, Confidence: 92}
	failed := internal.ExtractionFailure{Reason: "timeout parsing"}

	t.Run("concatenates and takes max confidence", func(t *testing.T) {
		got, ok := MergeExtractions(body, failed, sheet).(internal.ExtractionSuccess)
		if !ok {
			t.Fatal("expected success")
		}
		if len(got.Items) != 2 || got.Items[1].Name != "B" || got.Confidence != 92 {
			t.Fatalf("got %+v", got)
		}
	})
	t.Run("attachment rescues failed body", func(t *testing.T) {
		if _, ok := MergeExtractions(failed, sheet).(internal.ExtractionSuccess); !ok {
			t.Fatal("expected success")
		}
	})
	t.Run("all failed", func(t *testing.T) {
		got, ok := MergeExtractions(failed, internal.ExtractionFailure{Reason: "bad json"}).(internal.ExtractionFailure)
		if !ok || !strings.Contains(got.Reason, "bad json") || !strings.Contains(got.Reason, "timeout parsing") {
			t.Fatalf("got %+v", got)
		}
	})
	t.Run("no sources", func(t *testing.T) {
		if _, ok := MergeExtractions().(internal.ExtractionFailure); !ok {
			t.Fatal("expected failure")
		}
	})
}

func TestExtractionPayload(t *testing.T) {
	payload, conf := ExtractionPayload(internal.ExtractionSuccess{Items: []internal.ExtractedLineItem{{Name: "A", Quantity: 2}}, Confidence: 88, Raw: "{}"})
	if conf != 88 {
		t.Fatalf("conf=%v", conf)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["success"] != true || len(decoded["products"].([]any)) != 1 {
		t.Fatalf("decoded=%v", decoded)
	}

	payload, conf = ExtractionPayload(internal.ExtractionFailure{Reason: "No response from AI"})
	if conf != 0 || !strings.Contains(payload, "No response from AI") {
		t.Fatalf("payload=%s conf=%v", payload, conf)
	}
}
