package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"autoquote/internal"
	"autoquote/internal/catalog"
	"autoquote/internal/config"
	"autoquote/internal/storage"
)

type fakeExtractor struct {
	body    internal.Extraction
	bodyErr error
	tables  []internal.Extraction
	calls   int
	seen    []string
}

func (f *fakeExtractor) Extract(_ context.Context, body, _ string) (internal.Extraction, error) {
	f.calls++
	f.seen = append(f.seen, body)
	if f.bodyErr != nil {
		return internal.ExtractionFailure{Reason: f.bodyErr.Error()}, f.bodyErr
	}
	return f.body, nil
}

func (f *fakeExtractor) ExtractFromTable(_ context.Context, _ internal.Table) (internal.Extraction, error) {
	f.calls++
	if len(f.tables) == 0 {
		return internal.ExtractionFailure{Reason: "no table result"}, nil
	}
	next := f.tables[0]
	f.tables = f.tables[1:]
	return next, nil
}

type fakeRenderer struct {
	err      error
	rendered []internal.Quote
}

func (f *fakeRenderer) Render(q internal.Quote) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rendered = append(f.rendered, q)
	return []byte("%PDF-1.3 quote " + q.Number), nil
}

type memDocuments struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (m *memDocuments) Put(_ context.Context, name string, content []byte, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = content
	return "mem://" + name, nil
}

type outbox struct {
	mu       sync.Mutex
	sent     []internal.OutboundMail
	accounts []*internal.MailAccount
	err      error
}

func (o *outbox) Send(_ context.Context, account *internal.MailAccount, mail internal.OutboundMail) error {
	if o.err != nil {
		return o.err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, mail)
	o.accounts = append(o.accounts, account)
	return nil
}

type harness struct {
	db        *storage.DB
	svc       *Service
	extractor *fakeExtractor
	renderer  *fakeRenderer
	docs      *memDocuments
	outbox    *outbox
	account   internal.MailAccount
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.UpsertCustomer(ctx, internal.Customer{Email: "buyer@acme.test", Name: "Asha Buyer", Active: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertCustomer(ctx, internal.Customer{Email: "former@acme.test", Name: "Former", Active: false}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertProducts(ctx, []internal.Product{
		{Name: "LED Panel 2x2", BasePrice: 1200, Unit: "pcs", Active: true},
		{Name: "MCB 32A", BasePrice: 250, Unit: "pcs", Active: true},
		{Name: "Copper Cable 4 sqmm Black", BasePrice: 2100, Unit: "roll", Active: true},
	}); err != nil {
		t.Fatal(err)
	}
	accountID, err := db.UpsertMailAccount(ctx, internal.MailAccount{Email: "sales@seller.test", Provider: "imap", Host: "imap.seller.test", Port: 993, Active: true})
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		db:        db,
		extractor: &fakeExtractor{},
		renderer:  &fakeRenderer{},
		docs:      &memDocuments{},
		outbox:    &outbox{},
		account:   internal.MailAccount{ID: accountID, Email: "sales@seller.test"},
	}
	cfg := config.Config{
		MatchAdmissionThreshold: AdmissionThreshold,
		MatchAutoPriceThreshold: AutoPriceThreshold,
		AutoSendConfidence:      AutoSendConfidence,
		TaxRateLocal:            0.09,
		TaxRateCentral:          0.09,
		CurrencyWord:            "Rupees",
		QuoteValidityDays:       30,
		CompanyName:             "Seller Traders",
		AdminEmail:              "admin@seller.test",
	}
	h.svc = NewService(cfg, Deps{Store: db, Extractor: h.extractor, Renderer: h.renderer, Documents: h.docs, Dispatcher: h.outbox})
	h.svc.now = func() time.Time { return time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) }
	return h
}

func (h *harness) snapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	snap, err := catalog.Load(context.Background(), h.db)
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func rfq(id, from string) internal.RawMessage {
	return internal.RawMessage{
		Ref:         id,
		MessageID:   "<" + id + "@acme.test>",
		ThreadID:    "<" + id + "@acme.test>",
		FromAddress: from,
		FromName:    "Asha",
		Subject:     "RFQ for site",
		BodyText:    "Please quote 10 LED Panel 2x2 and 4 MCB 32A",
	}
}

func items(pairs ...any) []internal.ExtractedLineItem {
	out := []internal.ExtractedLineItem{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, internal.ExtractedLineItem{Name: pairs[i].(string), Quantity: pairs[i+1].(int)})
	}
	return out
}
