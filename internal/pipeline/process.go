package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"autoquote/internal"
	"autoquote/internal/catalog"
	"autoquote/internal/config"
	"autoquote/internal/util"
)

// Extractor pulls requested line items out of message text and spreadsheets.
// An error is returned only for timeouts and cancellation.
type Extractor interface {
	Extract(ctx context.Context, body, subject string) (internal.Extraction, error)
	ExtractFromTable(ctx context.Context, table internal.Table) (internal.Extraction, error)
}

type Renderer interface {
	Render(q internal.Quote) ([]byte, error)
}

// DocumentStore keeps rendered quotes and returns a reference to them.
type DocumentStore interface {
	Put(ctx context.Context, name string, content []byte, contentType string) (string, error)
}

// Dispatcher sends outbound mail. A nil account means the default sender.
type Dispatcher interface {
	Send(ctx context.Context, account *internal.MailAccount, mail internal.OutboundMail) error
}

type Store interface {
	InsertProcessedEmail(ctx context.Context, rec internal.ProcessedEmail) (int64, error)
	UpdateEmailStatus(ctx context.Context, id int64, change internal.StatusChange) error
	InsertQuote(ctx context.Context, q internal.Quote) error
}

type Deps struct {
	Store      Store
	Extractor  Extractor
	Renderer   Renderer
	Documents  DocumentStore
	Dispatcher Dispatcher
}

type Service struct {
	Deps
	thresholds      Thresholds
	terms           QuoteTerms
	companyName     string
	adminEmail      string
	dispatchTimeout time.Duration

	now   func() time.Time
	newID func() string
}

func NewService(cfg config.Config, deps Deps) *Service {
	return &Service{
		Deps: deps,
		thresholds: Thresholds{
			Admission:          cfg.MatchAdmissionThreshold,
			AutoPrice:          cfg.MatchAutoPriceThreshold,
			AutoSendConfidence: cfg.AutoSendConfidence,
		},
		terms: QuoteTerms{
			LocalTaxRate:   cfg.TaxRateLocal,
			CentralTaxRate: cfg.TaxRateCentral,
			Currency:       cfg.CurrencyWord,
			ValidityDays:   cfg.QuoteValidityDays,
		},
		companyName:     util.FirstNonEmpty(cfg.CompanyName, "Your Company"),
		adminEmail:      cfg.AdminEmail,
		dispatchTimeout: cfg.DispatchTimeout,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// Outcome is what happened to one inbound message. Ignored messages have no
// record; every other outcome has one in a terminal status.
type Outcome struct {
	Ignored     bool
	RecordID    int64
	Status      internal.EmailStatus
	Reason      internal.FlagReason
	Confidence  float64
	QuoteID     string
	QuoteNumber string
	Error       string
}

// ProcessMessage runs one message through whitelist, extraction, matching and
// routing against the given snapshot. The returned error is set only when the
// audit record itself could not be written; failures after that are recorded
// on the record as status error.
func (s *Service) ProcessMessage(ctx context.Context, account internal.MailAccount, snap *catalog.Snapshot, msg internal.RawMessage) (Outcome, error) {
	logger := log.With().Str("account", account.Email).Str("message_id", msg.MessageID).Str("sender", msg.FromAddress).Logger()

	customer, ok := snap.LookupCustomer(msg.FromAddress)
	if !ok {
		logger.Info().Msg("sender not whitelisted, ignoring")
		return Outcome{Ignored: true}, nil
	}

	input := BuildExtractionInput(msg)
	extraction, extractErr := s.extract(ctx, input)
	payload, aiConfidence := ExtractionPayload(extraction)

	rec := internal.ProcessedEmail{
		AccountID:    account.ID,
		MessageID:    msg.MessageID,
		ThreadID:     msg.ThreadID,
		FromAddress:  strings.ToLower(strings.TrimSpace(msg.FromAddress)),
		FromName:     msg.FromName,
		Subject:      msg.Subject,
		Body:         input.Body,
		Attachments:  attachmentsJSON(msg.Attachments),
		Confidence:   aiConfidence,
		AIExtraction: payload,
	}
	if msg.ArchivePath != "" {
		rec.RawRef = util.StringPtr(msg.ArchivePath)
	}
	id, err := s.Store.InsertProcessedEmail(ctx, rec)
	if err != nil {
		return Outcome{}, fmt.Errorf("record message %s: %w", msg.MessageID, err)
	}
	logger = logger.With().Int64("record_id", id).Logger()

	if extractErr != nil {
		return s.fail(ctx, logger, id, fmt.Errorf("extract: %w", extractErr)), nil
	}

	d := Decide(extraction, snap.Products, s.thresholds)
	if d.Action == ActionFlag {
		change := internal.StatusChange{Status: internal.StatusFlagged, FlagReason: &d.Reason}
		if d.Reason != internal.ReasonNotUnderstood {
			change.Confidence = util.FloatPtr(d.Confidence)
		}
		if err := s.Store.UpdateEmailStatus(ctx, id, change); err != nil {
			return s.fail(ctx, logger, id, fmt.Errorf("flag: %w", err)), nil
		}
		logger.Info().Str("status", string(internal.StatusFlagged)).Str("reason", string(d.Reason)).
			Float64("confidence", d.Confidence).Int("matched", len(d.Matched)).Int("unmatched", len(d.Unmatched)).
			Msg("message flagged for review")
		conf := d.Confidence
		if d.Reason == internal.ReasonNotUnderstood {
			conf = aiConfidence
		}
		return Outcome{RecordID: id, Status: internal.StatusFlagged, Reason: d.Reason, Confidence: conf}, nil
	}

	q, err := s.sendQuote(ctx, &account, RecipientFromCustomer(customer, msg.FromName), &id, d, replyTo{
		subject:    msg.Subject,
		messageID:  msg.MessageID,
		references: msg.ThreadID,
	})
	if err != nil {
		out := s.fail(ctx, logger, id, err)
		out.Confidence = d.Confidence
		return out, nil
	}

	change := internal.StatusChange{Status: internal.StatusAutoSent, Confidence: util.FloatPtr(d.Confidence), QuoteID: &q.ID}
	if err := s.Store.UpdateEmailStatus(ctx, id, change); err != nil {
		return s.fail(ctx, logger, id, fmt.Errorf("mark auto sent: %w", err)), nil
	}
	logger.Info().Str("status", string(internal.StatusAutoSent)).Float64("confidence", d.Confidence).
		Str("quote", q.Number).Float64("total", q.Total).Msg("quote auto-sent")
	return Outcome{RecordID: id, Status: internal.StatusAutoSent, Confidence: d.Confidence, QuoteID: q.ID, QuoteNumber: q.Number}, nil
}

// extract runs the body and every spreadsheet through the extractor and
// merges the results.
func (s *Service) extract(ctx context.Context, in ExtractionInput) (internal.Extraction, error) {
	body, err := s.Extractor.Extract(ctx, in.Body, in.Subject)
	if err != nil {
		return body, err
	}
	sources := []internal.Extraction{body}
	for _, table := range in.Tables {
		e, err := s.Extractor.ExtractFromTable(ctx, table)
		if err != nil {
			return MergeExtractions(append(sources, e)...), err
		}
		sources = append(sources, e)
	}
	return MergeExtractions(sources...), nil
}

type replyTo struct {
	subject    string
	messageID  string
	references string
}

// sendQuote prices, renders, stores and mails a quote, then persists it as
// sent. Any failing step aborts the rest and leaves no quote row behind.
func (s *Service) sendQuote(ctx context.Context, account *internal.MailAccount, to Recipient, emailID *int64, d Decision, reply replyTo) (internal.Quote, error) {
	items := make([]internal.QuoteLineItem, 0, len(d.Matched))
	for _, line := range d.Matched {
		items = append(items, PriceLine(line))
	}
	q, err := AssembleQuote(s.newID(), to, items, d.Unmatched, s.terms, s.now())
	if err != nil {
		return internal.Quote{}, fmt.Errorf("assemble quote: %w", err)
	}
	q.EmailID = emailID

	doc, err := s.Renderer.Render(q)
	if err != nil {
		return q, fmt.Errorf("render quote %s: %w", q.Number, err)
	}

	ioCtx := ctx
	if s.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		ioCtx, cancel = context.WithTimeout(ctx, s.dispatchTimeout)
		defer cancel()
	}

	ref, err := s.Documents.Put(ioCtx, "quote-"+q.ID+".pdf", doc, "application/pdf")
	if err != nil {
		return q, fmt.Errorf("store quote %s: %w", q.Number, err)
	}

	mail := internal.OutboundMail{
		To:      q.CustomerEmail,
		ToName:  q.CustomerName,
		Subject: replySubject(reply.subject, q.Number),
		Text:    s.replyText(q),
		Attachments: []internal.Attachment{{
			FileName:    "quote-" + q.Number + ".pdf",
			ContentType: "application/pdf",
			Size:        len(doc),
			Content:     doc,
		}},
		InReplyTo:  reply.messageID,
		References: reply.references,
	}
	if err := s.Dispatcher.Send(ioCtx, account, mail); err != nil {
		return q, fmt.Errorf("dispatch quote %s: %w", q.Number, err)
	}

	q.DocumentRef = &ref
	q.Status = internal.QuoteSent
	if err := s.Store.InsertQuote(ctx, q); err != nil {
		return q, fmt.Errorf("save sent quote %s: %w", q.Number, err)
	}
	return q, nil
}

func (s *Service) fail(ctx context.Context, logger zerolog.Logger, id int64, cause error) Outcome {
	msg := cause.Error()
	if err := s.Store.UpdateEmailStatus(ctx, id, internal.StatusChange{Status: internal.StatusError, ErrorMessage: &msg}); err != nil {
		logger.Error().Err(err).Msg("could not record processing error")
	}
	logger.Error().Err(cause).Str("status", string(internal.StatusError)).Msg("message processing failed")
	return Outcome{RecordID: id, Status: internal.StatusError, Error: msg}
}

func (s *Service) replyText(q internal.Quote) string {
	return fmt.Sprintf(`Dear %s,

Thank you for your quote request.

Please find attached your detailed quotation #%s.

This quote is valid for %d days from the date of issue.

If you have any questions, please don't hesitate to contact us.

Best regards,
%s`, util.FirstNonEmpty(q.CustomerName, "Customer"), q.Number, s.terms.ValidityDays, s.companyName)
}

func replySubject(subject, number string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "Your Quote Request #" + number
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

func attachmentsJSON(atts []internal.Attachment) string {
	meta := make([]internal.Attachment, 0, len(atts))
	for _, a := range atts {
		size := a.Size
		if size == 0 {
			size = len(a.Content)
		}
		meta = append(meta, internal.Attachment{FileName: a.FileName, ContentType: a.ContentType, Size: size})
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "[]"
	}
	return string(b)
}
