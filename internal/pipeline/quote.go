package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"autoquote/internal"
	"autoquote/internal/util"
)

type Recipient struct {
	Email           string
	Name            string
	Company         string
	TaxID           string
	BillingAddress  string
	ShippingAddress string
}

func RecipientFromCustomer(c internal.Customer, fallbackName string) Recipient {
	r := Recipient{
		Email:           strings.ToLower(strings.TrimSpace(c.Email)),
		Name:            util.FirstNonEmpty(c.Name, fallbackName, c.Email),
		Company:         util.Deref(c.Company),
		TaxID:           util.Deref(c.TaxID),
		BillingAddress:  util.Deref(c.BillingAddress),
		ShippingAddress: util.Deref(c.ShippingAddress),
	}
	if r.ShippingAddress == "" {
		r.ShippingAddress = r.BillingAddress
	}
	return r
}

type QuoteTerms struct {
	LocalTaxRate   float64
	CentralTaxRate float64
	Currency       string
	ValidityDays   int
}

func DefaultQuoteTerms() QuoteTerms {
	return QuoteTerms{LocalTaxRate: 0.09, CentralTaxRate: 0.09, Currency: "Rupees", ValidityDays: 30}
}

// MatchedLine is an extracted line that cleared the auto-price threshold.
type MatchedLine struct {
	Item  internal.ExtractedLineItem
	Match internal.MatchResult
}

// PriceLine captures the quoted price at generation time.
func PriceLine(line MatchedLine) internal.QuoteLineItem {
	p := line.Match.Product
	qty := line.Item.Quantity
	if qty < 1 {
		qty = 1
	}
	unit := QuotedPrice(p.BasePrice, qty, p.MinPrice, p.MaxPrice)
	total := roundMoney(decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(qty))))
	return internal.QuoteLineItem{
		ProductID:      p.ID,
		Name:           p.Name,
		RequestedName:  line.Item.Name,
		HSNCode:        util.Deref(p.HSNCode),
		Unit:           p.Unit,
		Quantity:       qty,
		UnitPrice:      unit,
		Total:          total.InexactFloat64(),
		Specifications: util.FirstNonEmpty(line.Item.Specifications, util.Deref(p.Description)),
		Similarity:     line.Match.Similarity,
	}
}

// AssembleQuote totals priced lines: subtotal, the two tax components,
// the grand total and the rounded total spelled out.
func AssembleQuote(id string, to Recipient, items []internal.QuoteLineItem, unmatched []internal.ExtractedLineItem, terms QuoteTerms, now time.Time) (internal.Quote, error) {
	if strings.TrimSpace(id) == "" {
		return internal.Quote{}, fmt.Errorf("quote id is required")
	}
	if len(items) == 0 {
		return internal.Quote{}, fmt.Errorf("quote %s has no priced lines", util.ShortID(id))
	}
	if strings.TrimSpace(to.Email) == "" {
		return internal.Quote{}, fmt.Errorf("quote %s has no recipient", util.ShortID(id))
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity < 1 || item.UnitPrice < 0 {
			return internal.Quote{}, fmt.Errorf("invalid line %q: qty=%d price=%v", item.Name, item.Quantity, item.UnitPrice)
		}
		subtotal = subtotal.Add(decimal.NewFromFloat(item.Total))
	}
	subtotal = roundMoney(subtotal)
	localTax := roundMoney(subtotal.Mul(decimal.NewFromFloat(terms.LocalTaxRate)))
	centralTax := roundMoney(subtotal.Mul(decimal.NewFromFloat(terms.CentralTaxRate)))
	total := subtotal.Add(localTax).Add(centralTax)

	validity := terms.ValidityDays
	if validity <= 0 {
		validity = 30
	}

	return internal.Quote{
		ID:              id,
		Number:          util.ShortID(id),
		CustomerEmail:   to.Email,
		CustomerName:    util.FirstNonEmpty(to.Name, to.Email),
		Company:         to.Company,
		TaxID:           to.TaxID,
		BillingAddress:  to.BillingAddress,
		ShippingAddress: util.FirstNonEmpty(to.ShippingAddress, to.BillingAddress),
		Items:           items,
		Unmatched:       unmatched,
		Subtotal:        subtotal.InexactFloat64(),
		LocalTaxRate:    terms.LocalTaxRate,
		CentralTaxRate:  terms.CentralTaxRate,
		LocalTax:        localTax.InexactFloat64(),
		CentralTax:      centralTax.InexactFloat64(),
		Total:           total.InexactFloat64(),
		TotalInWords:    AmountInWords(total.Round(0).IntPart(), terms.Currency),
		IssuedAt:        now,
		ValidUntil:      now.AddDate(0, 0, validity),
		Status:          internal.QuoteGenerated,
	}, nil
}
