package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"autoquote/internal"
	"autoquote/internal/config"
	"autoquote/internal/util"
)

// ErrTimeout marks an extraction that ran out of time. Callers route it to
// the error status instead of flagging the message.
var ErrTimeout = errors.New("ai extraction timed out")

const (
	temperature    = 0.1
	tableMaxTokens = 500
	tableSample    = 3
)

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Extractor asks an OpenAI-compatible chat endpoint (Groq by default) to pull
// requested products out of RFQ messages and spreadsheets.
type Extractor struct {
	client    completer
	model     string
	maxTokens int
	timeout   time.Duration
	limiter   *RateLimiter
	breaker   *gobreaker.CircuitBreaker
}

func NewExtractor(cfg config.Config) (*Extractor, error) {
	if err := cfg.Require("AI_API_KEY", cfg.AIAPIKey); err != nil {
		return nil, err
	}
	clientCfg := openai.DefaultConfig(cfg.AIAPIKey)
	if strings.TrimSpace(cfg.AIBaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.AIBaseURL, "/")
	}
	return newExtractor(openai.NewClientWithConfig(clientCfg), cfg), nil
}

func newExtractor(client completer, cfg config.Config) *Extractor {
	maxTokens := cfg.AIMaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Extractor{
		client:    client,
		model:     cfg.AIModel,
		maxTokens: maxTokens,
		timeout:   cfg.AITimeout,
		limiter:   NewRateLimiter(cfg.AIRateLimit),
		breaker:   util.NewBreaker("ai-extractor"),
	}
}

type messageResponse struct {
	Products []struct {
		Product        string     `json:"product"`
		Quantity       flexNumber `json:"quantity"`
		Specifications string     `json:"specifications"`
	} `json:"products"`
	Confidence flexNumber `json:"confidence"`
}

// Extract reads products from a message body. Only a timeout or a cancelled
// context is returned as an error; every other problem is a failure result.
func (e *Extractor) Extract(ctx context.Context, body, subject string) (internal.Extraction, error) {
	user := fmt.Sprintf(messageUserPrompt, util.FirstNonEmpty(subject, "RFQ Request"), body)
	content, err := e.complete(ctx, messageSystemPrompt, user, e.maxTokens)
	if err != nil {
		return e.failure(err, "")
	}

	var parsed messageResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return internal.ExtractionFailure{Reason: "unparseable model response: " + err.Error(), Raw: content}, nil
	}

	items := make([]internal.ExtractedLineItem, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		name := util.NormalizeSpaces(p.Product)
		if name == "" {
			continue
		}
		items = append(items, internal.ExtractedLineItem{
			Name:           name,
			Quantity:       p.Quantity.quantity(),
			Specifications: strings.TrimSpace(p.Specifications),
		})
	}
	return internal.ExtractionSuccess{Items: items, Confidence: parsed.Confidence.float(), Raw: content}, nil
}

type columnMap struct {
	ProductColumn  flexString `json:"productColumn"`
	QuantityColumn flexString `json:"quantityColumn"`
	SpecsColumn    flexString `json:"specsColumn"`
	Confidence     flexNumber `json:"confidence"`
}

// ExtractFromTable shows the model the first rows of a spreadsheet to learn
// which columns hold product, quantity and specifications, then maps every
// row locally.
func (e *Extractor) ExtractFromTable(ctx context.Context, table internal.Table) (internal.Extraction, error) {
	if len(table.Rows) == 0 {
		return internal.ExtractionFailure{Reason: "empty spreadsheet"}, nil
	}
	sample := table.Rows[:min(tableSample, len(table.Rows))]
	blob, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return internal.ExtractionFailure{Reason: err.Error()}, nil
	}

	content, err := e.complete(ctx, tableSystemPrompt, fmt.Sprintf(tableUserPrompt, blob), tableMaxTokens)
	if err != nil {
		return e.failure(err, "")
	}

	var cols columnMap
	if err := json.Unmarshal([]byte(content), &cols); err != nil {
		return internal.ExtractionFailure{Reason: "unparseable column map: " + err.Error(), Raw: content}, nil
	}

	productCol := resolveColumn(table.Headers, string(cols.ProductColumn))
	if productCol == "" {
		productCol = guessColumn(table.Headers, productAliases)
	}
	if productCol == "" {
		return internal.ExtractionFailure{Reason: "Failed to identify spreadsheet columns", Raw: content}, nil
	}
	qtyCol := resolveColumn(table.Headers, string(cols.QuantityColumn))
	if qtyCol == "" {
		qtyCol = guessColumn(table.Headers, quantityAliases)
	}
	specsCol := resolveColumn(table.Headers, string(cols.SpecsColumn))

	items := []internal.ExtractedLineItem{}
	for _, row := range table.Rows {
		name := util.NormalizeSpaces(row[productCol])
		if name == "" {
			continue
		}
		item := internal.ExtractedLineItem{Name: name, Quantity: 1}
		if qtyCol != "" {
			item.Quantity = util.Quantity(row[qtyCol])
		}
		if specsCol != "" {
			item.Specifications = strings.TrimSpace(row[specsCol])
		}
		items = append(items, item)
	}
	return internal.ExtractionSuccess{Items: items, Confidence: cols.Confidence.float(), Raw: content}, nil
}

func (e *Extractor) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := e.limiter.WaitTurn(ctx); err != nil {
		return "", err
	}

	out, err := e.breaker.Execute(func() (interface{}, error) {
		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: temperature,
			MaxTokens:   maxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return nil, errors.New("no response from model")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (e *Extractor) failure(err error, raw string) (internal.Extraction, error) {
	if isTimeout(err) {
		log.Warn().Err(err).Msg("ai extraction timed out")
		return internal.ExtractionFailure{Reason: err.Error(), Raw: raw}, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return internal.ExtractionFailure{Reason: err.Error(), Raw: raw}, err
	}
	log.Warn().Err(err).Msg("ai extraction failed")
	return internal.ExtractionFailure{Reason: err.Error(), Raw: raw}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var (
	productAliases  = []string{"product", "productname", "item", "itemname", "description", "name", "material", "particulars"}
	quantityAliases = []string{"quantity", "qty", "nos", "units", "count"}
)

// resolveColumn accepts a header name (any case or punctuation), a zero-based
// index, or a positional "column N" name.
func resolveColumn(headers []string, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	key := util.HeaderKey(ref)
	for _, h := range headers {
		if util.HeaderKey(h) == key {
			return h
		}
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(headers) {
		return headers[i]
	}
	return ""
}

func guessColumn(headers []string, aliases []string) string {
	for _, alias := range aliases {
		for _, h := range headers {
			if util.HeaderKey(h) == alias {
				return h
			}
		}
	}
	return ""
}

// flexNumber accepts 10, 10.5 and "10" alike; models are loose with types.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	*n = flexNumber(strings.TrimSpace(s))
	return nil
}

func (n flexNumber) float() float64 {
	v, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0
	}
	return v
}

func (n flexNumber) quantity() int {
	return util.Quantity(string(n))
}

// flexString accepts a column given either as a name or as a bare index.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	*s = flexString(raw)
	return nil
}
