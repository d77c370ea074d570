package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"autoquote/internal/ai"
	"autoquote/internal/config"
	"autoquote/internal/connectors"
	gmailconnector "autoquote/internal/connectors/gmail"
	imapconnector "autoquote/internal/connectors/imap"
	maildirconnector "autoquote/internal/connectors/maildir"
	smtpconnector "autoquote/internal/connectors/smtp"
	"autoquote/internal/documents"
	"autoquote/internal/listener"
	"autoquote/internal/lock"
	"autoquote/internal/pipeline"
	"autoquote/internal/render"
	"autoquote/internal/storage"
)

func newPipeline(ctx context.Context, cfg config.Config, db *storage.DB) (*pipeline.Service, error) {
	extractor, err := ai.NewExtractor(cfg)
	if err != nil {
		return nil, err
	}
	docs, err := documents.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("document store: %w", err)
	}
	return pipeline.NewService(cfg, pipeline.Deps{
		Store:      db,
		Extractor:  extractor,
		Renderer:   render.NewPDFRenderer(render.SellerFromConfig(cfg)),
		Documents:  docs,
		Dispatcher: smtpconnector.NewDispatcher(cfg),
	}), nil
}

// newMailboxes registers a connector per provider. Gmail is only available
// when OAuth client credentials are configured.
func newMailboxes(cfg config.Config) (*connectors.FetchService, error) {
	mailboxes := map[string]connectors.Mailbox{
		"imap":    imapconnector.NewConnector(),
		"maildir": maildirconnector.NewConnector(cfg.MaildropDir),
	}
	if cfg.GmailClientID != "" {
		gmail, err := gmailconnector.NewConnector(cfg)
		if err != nil {
			return nil, err
		}
		mailboxes["gmail"] = gmail
	} else {
		log.Debug().Msg("GMAIL_CLIENT_ID not set, gmail accounts will be skipped")
	}
	return connectors.NewFetchService(cfg.RawMailDir, mailboxes), nil
}

// newListener wires the sweep service around proc. The returned func releases
// the lock backend.
func newListener(cfg config.Config, db *storage.DB, proc *pipeline.Service) (*listener.Service, func() error, error) {
	mailboxes, err := newMailboxes(cfg)
	if err != nil {
		return nil, nil, err
	}
	locker, closeLocker, err := lock.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("lock backend: %w", err)
	}
	return listener.NewService(cfg, db, mailboxes, proc, locker), closeLocker, nil
}
