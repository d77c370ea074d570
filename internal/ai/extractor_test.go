package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"autoquote/internal"
	"autoquote/internal/config"
)

func completionServer(t *testing.T, handle func(req openai.ChatCompletionRequest) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		status, content := handle(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testExtractor(srv *httptest.Server, timeout time.Duration) *Extractor {
	clientCfg := openai.DefaultConfig("test-key")
	clientCfg.BaseURL = srv.URL + "/v1"
	return newExtractor(openai.NewClientWithConfig(clientCfg), config.Config{
		AIModel:     "test-model",
		AIMaxTokens: 1000,
		AIRateLimit: 1000,
		AITimeout:   timeout,
	})
}

func TestExtractParsesProducts(t *testing.T) {
	srv := completionServer(t, func(req openai.ChatCompletionRequest) (int, string) {
		if req.Model != "test-model" || req.MaxTokens != 1000 {
			t.Errorf("model=%s maxTokens=%d", req.Model, req.MaxTokens)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
			t.Errorf("response format %+v", req.ResponseFormat)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "Subject: RFQ Request") {
			t.Errorf("messages %+v", req.Messages)
		}
		return http.StatusOK, `{"products":[{"product":"LED Panel 2x2","quantity":"10","specifications":"white"},{"product":"  ","quantity":1},{"product":"MCB 32A"}],"confidence":92}`
	})

	got, err := testExtractor(srv, time.Second).Extract(context.Background(), "Need 10 LED panels", "")
	if err != nil {
		t.Fatal(err)
	}
	success, ok := got.(internal.ExtractionSuccess)
	if !ok {
		t.Fatalf("got %#v", got)
	}
	if success.Confidence != 92 || len(success.Items) != 2 {
		t.Fatalf("got %+v", success)
	}
	if success.Items[0].Quantity != 10 || success.Items[0].Specifications != "white" {
		t.Fatalf("item0=%+v", success.Items[0])
	}
	if success.Items[1].Quantity != 1 {
		t.Fatalf("missing quantity should default to 1, got %d", success.Items[1].Quantity)
	}
	if success.Raw == "" {
		t.Fatal("raw response not kept")
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
	}{
		{"bad json", http.StatusOK, `products: none`},
		{"empty content", http.StatusOK, ``},
		{"upstream error", http.StatusInternalServerError, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := completionServer(t, func(openai.ChatCompletionRequest) (int, string) { return tt.status, tt.content })
			got, err := testExtractor(srv, time.Second).Extract(context.Background(), "body", "subject")
			if err != nil {
				t.Fatalf("err=%v", err)
			}
			if _, ok := got.(internal.ExtractionFailure); !ok {
				t.Fatalf("got %#v", got)
			}
		})
	}
}

func TestExtractTimeout(t *testing.T) {
	srv := completionServer(t, func(openai.ChatCompletionRequest) (int, string) {
		time.Sleep(200 * time.Millisecond)
		return http.StatusOK, `{"products":[],"confidence":0}`
	})
	got, err := testExtractor(srv, 20*time.Millisecond).Extract(context.Background(), "body", "subject")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v", err)
	}
	if _, ok := got.(internal.ExtractionFailure); !ok {
		t.Fatalf("got %#v", got)
	}
}

func TestExtractFromTable(t *testing.T) {
	table := internal.Table{
		Headers: []string{"Item Name", "Qty", "Remarks"},
		Rows: []map[string]string{
			{"Item Name": "LED Panel 2x2", "Qty": "12", "Remarks": "cool white"},
			{"Qty": "3"},
			{"Item Name": "MCB 32A", "Qty": "2.7"},
			{"Item Name": "Copper Cable 2.5 sqmm"},
		},
	}

	t.Run("column map from model", func(t *testing.T) {
		srv := completionServer(t, func(req openai.ChatCompletionRequest) (int, string) {
			if req.MaxTokens != tableMaxTokens {
				t.Errorf("maxTokens=%d", req.MaxTokens)
			}
			if strings.Contains(req.Messages[1].Content, "Copper Cable") {
				t.Errorf("only the first rows should be sampled")
			}
			return http.StatusOK, `{"productColumn":"item name","quantityColumn":1,"specsColumn":"Remarks","confidence":"88"}`
		})
		got, err := testExtractor(srv, time.Second).ExtractFromTable(context.Background(), table)
		if err != nil {
			t.Fatal(err)
		}
		success := got.(internal.ExtractionSuccess)
		if success.Confidence != 88 || len(success.Items) != 3 {
			t.Fatalf("got %+v", success)
		}
		want := []internal.ExtractedLineItem{
			{Name: "LED Panel 2x2", Quantity: 12, Specifications: "cool white"},
			{Name: "MCB 32A", Quantity: 2},
			{Name: "Copper Cable 2.5 sqmm", Quantity: 1},
		}
		for i := range want {
			if success.Items[i] != want[i] {
				t.Fatalf("item %d = %+v, want %+v", i, success.Items[i], want[i])
			}
		}
	})

	t.Run("unknown columns fall back to header names", func(t *testing.T) {
		srv := completionServer(t, func(openai.ChatCompletionRequest) (int, string) {
			return http.StatusOK, `{"productColumn":"Part","quantityColumn":null,"confidence":60}`
		})
		got, _ := testExtractor(srv, time.Second).ExtractFromTable(context.Background(), internal.Table{
			Headers: []string{"Description", "Qty"},
			Rows:    []map[string]string{{"Description": "MCB 32A", "Qty": "5"}},
		})
		success := got.(internal.ExtractionSuccess)
		if len(success.Items) != 1 || success.Items[0].Quantity != 5 {
			t.Fatalf("got %+v", success)
		}
	})

	t.Run("unresolvable product column", func(t *testing.T) {
		srv := completionServer(t, func(openai.ChatCompletionRequest) (int, string) {
			return http.StatusOK, `{"productColumn":"Part","confidence":60}`
		})
		got, _ := testExtractor(srv, time.Second).ExtractFromTable(context.Background(), internal.Table{
			Headers: []string{"A", "B"},
			Rows:    []map[string]string{{"A": "x", "B": "y"}},
		})
		if _, ok := got.(internal.ExtractionFailure); !ok {
			t.Fatalf("got %#v", got)
		}
	})
}

func TestResolveColumn(t *testing.T) {
	headers := []string{"Item Name", "Qty", "column 3"}
	tests := map[string]string{
		"ITEM_NAME": "Item Name",
		"1":         "Qty",
		"column 3":  "column 3",
		"7":         "",
		"":          "",
		"Price":     "",
	}
	for ref, want := range tests {
		if got := resolveColumn(headers, ref); got != want {
			t.Fatalf("resolveColumn(%q)=%q want %q", ref, got, want)
		}
	}
}
