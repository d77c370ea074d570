package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"autoquote/internal"
	"autoquote/internal/catalog"
	"autoquote/internal/util"
)

var (
	ErrInvalidRequest = errors.New("missing required fields")
	ErrNothingMatched = errors.New("no requested product matched the catalog")
)

type ManualItem struct {
	ProductName    string      `json:"productName"`
	Quantity       json.Number `json:"quantity"`
	Specifications string      `json:"specifications"`
}

// ManualRequest is a quote request entered through the RFQ form rather than
// received by mail.
type ManualRequest struct {
	CustomerName  string       `json:"customerName"`
	CustomerEmail string       `json:"customerEmail"`
	CustomerPhone string       `json:"customerPhone"`
	CompanyName   string       `json:"companyName"`
	Notes         string       `json:"notes"`
	Items         []ManualItem `json:"items"`
}

type ManualResult struct {
	QuoteID        string `json:"-"`
	QuoteNumber    string `json:"quoteId"`
	MatchedCount   int    `json:"matchedCount"`
	UnmatchedCount int    `json:"unmatchedCount"`
	DocumentRef    string `json:"documentRef,omitempty"`
}

func (r ManualRequest) validate() error {
	if strings.TrimSpace(r.CustomerName) == "" || !strings.Contains(r.CustomerEmail, "@") || len(r.Items) == 0 {
		return ErrInvalidRequest
	}
	return nil
}

// SubmitManual quotes a form request. Lines are priced at the admission
// threshold alone; there is no confidence gate because a person asked
// directly. The quote goes out from the default sender and the admin is told.
func (s *Service) SubmitManual(ctx context.Context, snap *catalog.Snapshot, req ManualRequest) (ManualResult, error) {
	if err := req.validate(); err != nil {
		return ManualResult{}, err
	}

	var d Decision
	for _, it := range req.Items {
		item := internal.ExtractedLineItem{
			Name:           util.NormalizeSpaces(it.ProductName),
			Quantity:       util.Quantity(it.Quantity.String()),
			Specifications: strings.TrimSpace(it.Specifications),
		}
		if item.Name == "" {
			continue
		}
		if m, ok := FindBestMatch(item.Name, snap.Products, s.thresholds.Admission); ok {
			d.Matched = append(d.Matched, MatchedLine{Item: item, Match: m})
		} else {
			d.Unmatched = append(d.Unmatched, item)
		}
	}

	res := ManualResult{MatchedCount: len(d.Matched), UnmatchedCount: len(d.Unmatched)}
	if len(d.Matched) == 0 {
		return res, ErrNothingMatched
	}

	to := Recipient{
		Email:   strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		Name:    strings.TrimSpace(req.CustomerName),
		Company: strings.TrimSpace(req.CompanyName),
	}
	if c, ok := snap.LookupCustomer(req.CustomerEmail); ok {
		to = RecipientFromCustomer(c, req.CustomerName)
		to.Name = util.FirstNonEmpty(req.CustomerName, to.Name)
		to.Company = util.FirstNonEmpty(req.CompanyName, to.Company)
	}

	q, err := s.sendQuote(ctx, nil, to, nil, d, replyTo{})
	if err != nil {
		return res, err
	}
	res.QuoteID = q.ID
	res.QuoteNumber = q.Number
	res.DocumentRef = util.Deref(q.DocumentRef)

	log.Info().Str("quote", q.Number).Str("customer", to.Email).Int("matched", res.MatchedCount).
		Int("unmatched", res.UnmatchedCount).Msg("manual quote sent")
	s.notifyAdmin(ctx, req, q.Number)
	return res, nil
}

func (s *Service) notifyAdmin(ctx context.Context, req ManualRequest, number string) {
	if s.adminEmail == "" {
		return
	}
	mail := internal.OutboundMail{
		To:      s.adminEmail,
		Subject: "New RFQ Request #" + number,
		Text: fmt.Sprintf("New Quote Request Received\n\nCustomer: %s\nEmail: %s\nQuote ID: %s\nItems Requested: %d\n",
			req.CustomerName, req.CustomerEmail, number, len(req.Items)),
	}
	if req.Notes != "" {
		mail.Text += "Notes: " + req.Notes + "\n"
	}
	if err := s.Dispatcher.Send(ctx, nil, mail); err != nil {
		log.Warn().Err(err).Str("quote", number).Msg("admin notification failed")
	}
}
