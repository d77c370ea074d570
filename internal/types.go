package internal

import (
	"strings"
	"time"
)

type EmailStatus string

const (
	StatusPending  EmailStatus = "pending"
	StatusAutoSent EmailStatus = "auto_sent"
	StatusFlagged  EmailStatus = "flagged"
	StatusError    EmailStatus = "error"
)

// Terminal reports whether no further transition is allowed from s.
func (s EmailStatus) Terminal() bool {
	return s == StatusAutoSent || s == StatusFlagged || s == StatusError
}

type FlagReason string

const (
	ReasonNotUnderstood FlagReason = "Not Understood"
	ReasonLowConfidence FlagReason = "Low Confidence"
	ReasonNoMatches     FlagReason = "No Matches"
)

type QuoteStatus string

const (
	QuoteGenerated QuoteStatus = "generated"
	QuoteSent      QuoteStatus = "sent"
)

type Customer struct {
	ID              int64   `db:"id" json:"id"`
	Email           string  `db:"email" json:"email"`
	Name            string  `db:"name" json:"name"`
	Company         *string `db:"company" json:"company,omitempty"`
	Phone           *string `db:"phone" json:"phone,omitempty"`
	TaxID           *string `db:"tax_id" json:"taxId,omitempty"`
	BillingAddress  *string `db:"billing_address" json:"billingAddress,omitempty"`
	ShippingAddress *string `db:"shipping_address" json:"shippingAddress,omitempty"`
	Active          bool    `db:"is_active" json:"active"`
	CreatedAt       string  `db:"created_at" json:"createdAt"`
}

type Product struct {
	ID            int64    `db:"id" json:"id"`
	Name          string   `db:"name" json:"name"`
	BasePrice     float64  `db:"base_price" json:"basePrice"`
	MinPrice      *float64 `db:"min_price" json:"minPrice,omitempty"`
	MaxPrice      *float64 `db:"max_price" json:"maxPrice,omitempty"`
	Unit          string   `db:"unit" json:"unit"`
	HSNCode       *string  `db:"hsn_code" json:"hsnCode,omitempty"`
	Description   *string  `db:"description" json:"description,omitempty"`
	Category      *string  `db:"category" json:"category,omitempty"`
	Active        bool     `db:"is_active" json:"active"`
	ImportBatchID *string  `db:"import_batch_id" json:"importBatchId,omitempty"`
	CreatedAt     string   `db:"created_at" json:"createdAt"`
}

type MailAccount struct {
	ID           int64   `db:"id" json:"id"`
	Email        string  `db:"email" json:"email"`
	Provider     string  `db:"provider" json:"provider"`
	Host         string  `db:"host" json:"host"`
	Port         int     `db:"port" json:"port"`
	Username     string  `db:"username" json:"username"`
	Password     string  `db:"password" json:"-"`
	UseTLS       bool    `db:"use_tls" json:"useTls"`
	Mailbox      string  `db:"mailbox" json:"mailbox"`
	UnreadOnly   bool    `db:"unread_only" json:"unreadOnly"`
	SinceDate    *string `db:"since_date" json:"sinceDate,omitempty"`
	BeforeDate   *string `db:"before_date" json:"beforeDate,omitempty"`
	Blacklist    string  `db:"blacklist" json:"blacklist"`
	RefreshToken *string `db:"refresh_token" json:"-"`
	Active       bool    `db:"is_active" json:"active"`
	LastChecked  *string `db:"last_checked_at" json:"lastCheckedAt,omitempty"`
}

// BlockedSenders returns the lowercased, comma separated blacklist entries.
func (a MailAccount) BlockedSenders() []string {
	out := []string{}
	for _, part := range strings.Split(a.Blacklist, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

type Attachment struct {
	FileName    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Content     []byte `json:"-"`
}

// RawMessage is one inbound message as yielded by a mailbox session.
// Ref is the provider handle used to mark the message seen; ArchivePath is
// where the raw bytes were kept, if anywhere.
type RawMessage struct {
	Ref         string
	ArchivePath string
	MessageID   string
	ThreadID    string
	FromAddress string
	FromName    string
	Subject     string
	BodyText    string
	BodyHTML    string
	ReceivedAt  time.Time
	Attachments []Attachment
	Raw         []byte
}

// Table is a spreadsheet attachment: header cells in column order and one
// header-keyed map per data row.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

type ExtractedLineItem struct {
	Name           string `json:"product"`
	Quantity       int    `json:"quantity"`
	Specifications string `json:"specifications,omitempty"`
}

// Extraction is either ExtractionSuccess or ExtractionFailure.
type Extraction interface {
	extraction()
}

type ExtractionSuccess struct {
	Items      []ExtractedLineItem `json:"products"`
	Confidence float64             `json:"confidence"`
	Raw        string              `json:"raw,omitempty"`
}

type ExtractionFailure struct {
	Reason string `json:"error"`
	Raw    string `json:"raw,omitempty"`
}

func (ExtractionSuccess) extraction() {}
func (ExtractionFailure) extraction() {}

type MatchResult struct {
	Product    Product `json:"product"`
	Similarity float64 `json:"similarity"`
}

type QuoteLineItem struct {
	ProductID      int64   `db:"product_id" json:"productId"`
	Name           string  `db:"name" json:"name"`
	RequestedName  string  `db:"requested_name" json:"requestedName"`
	HSNCode        string  `db:"hsn_code" json:"hsnCode,omitempty"`
	Unit           string  `db:"unit" json:"unit"`
	Quantity       int     `db:"quantity" json:"quantity"`
	UnitPrice      float64 `db:"unit_price" json:"unitPrice"`
	Total          float64 `db:"total" json:"total"`
	Specifications string  `db:"specifications" json:"specifications,omitempty"`
	Similarity     float64 `db:"similarity" json:"similarity"`
}

type Quote struct {
	ID              string              `db:"id" json:"id"`
	Number          string              `db:"number" json:"number"`
	EmailID         *int64              `db:"email_id" json:"emailId,omitempty"`
	CustomerEmail   string              `db:"customer_email" json:"customerEmail"`
	CustomerName    string              `db:"customer_name" json:"customerName"`
	Company         string              `db:"company" json:"company,omitempty"`
	TaxID           string              `db:"tax_id" json:"taxId,omitempty"`
	BillingAddress  string              `db:"billing_address" json:"billingAddress,omitempty"`
	ShippingAddress string              `db:"shipping_address" json:"shippingAddress,omitempty"`
	Items           []QuoteLineItem     `db:"-" json:"items"`
	Unmatched       []ExtractedLineItem `db:"-" json:"unmatched,omitempty"`
	Subtotal        float64             `db:"subtotal" json:"subtotal"`
	LocalTaxRate    float64             `db:"local_tax_rate" json:"localTaxRate"`
	CentralTaxRate  float64             `db:"central_tax_rate" json:"centralTaxRate"`
	LocalTax        float64             `db:"local_tax" json:"localTax"`
	CentralTax      float64             `db:"central_tax" json:"centralTax"`
	Total           float64             `db:"total" json:"total"`
	TotalInWords    string              `db:"total_in_words" json:"totalInWords"`
	IssuedAt        time.Time           `db:"-" json:"issuedAt"`
	ValidUntil      time.Time           `db:"-" json:"validUntil"`
	DocumentRef     *string             `db:"document_ref" json:"documentRef,omitempty"`
	Status          QuoteStatus         `db:"status" json:"status"`
	SentAt          *string             `db:"sent_at" json:"sentAt,omitempty"`
	CreatedAt       string              `db:"created_at" json:"createdAt"`
}

// ProcessedEmail is the audit record kept for every whitelisted inbound message.
type ProcessedEmail struct {
	ID           int64       `db:"id" json:"id"`
	AccountID    int64       `db:"account_id" json:"accountId"`
	MessageID    string      `db:"message_id" json:"messageId"`
	ThreadID     string      `db:"thread_id" json:"threadId"`
	FromAddress  string      `db:"from_email" json:"fromEmail"`
	FromName     string      `db:"from_name" json:"fromName"`
	Subject      string      `db:"subject" json:"subject"`
	Body         string      `db:"body" json:"body"`
	Attachments  string      `db:"attachments" json:"attachments"`
	Status       EmailStatus `db:"status" json:"status"`
	Confidence   float64     `db:"confidence" json:"confidence"`
	AIExtraction string      `db:"ai_extraction" json:"aiExtraction"`
	FlagReason   *string     `db:"flag_reason" json:"flagReason,omitempty"`
	ErrorMessage *string     `db:"error_message" json:"errorMessage,omitempty"`
	QuoteID      *string     `db:"quote_id" json:"quoteId,omitempty"`
	RawRef       *string     `db:"raw_ref" json:"rawRef,omitempty"`
	CreatedAt    string      `db:"created_at" json:"createdAt"`
	ProcessedAt  *string     `db:"processed_at" json:"processedAt,omitempty"`
}

// StatusChange moves a pending ProcessedEmail to a terminal status.
type StatusChange struct {
	Status       EmailStatus
	Confidence   *float64
	FlagReason   *FlagReason
	ErrorMessage *string
	QuoteID      *string
}

type Stats struct {
	Total    int `db:"total" json:"total"`
	AutoSent int `db:"auto_sent" json:"autoSent"`
	Flagged  int `db:"flagged" json:"flagged"`
	Today    int `db:"today" json:"today"`
}

type OutboundMail struct {
	To          string
	ToName      string
	Subject     string
	Text        string
	HTML        string
	InReplyTo   string
	References  string
	Attachments []Attachment
}
