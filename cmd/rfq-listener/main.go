package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

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
	"autoquote/internal/logging"
	"autoquote/internal/pipeline"
	"autoquote/internal/render"
	"autoquote/internal/storage"
)

// rfq-listener sweeps every active mailbox on SWEEP_SCHEDULE and whenever a
// message lands in MAILDROP_DIR.
func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.Env, cfg.LogLevel, cfg.LogPretty)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	extractor, err := ai.NewExtractor(cfg)
	must(err)
	docs, err := documents.New(ctx, cfg)
	must(err)
	proc := pipeline.NewService(cfg, pipeline.Deps{
		Store:      db,
		Extractor:  extractor,
		Renderer:   render.NewPDFRenderer(render.SellerFromConfig(cfg)),
		Documents:  docs,
		Dispatcher: smtpconnector.NewDispatcher(cfg),
	})

	mailboxes := map[string]connectors.Mailbox{
		"imap":    imapconnector.NewConnector(),
		"maildir": maildirconnector.NewConnector(cfg.MaildropDir),
	}
	if cfg.GmailClientID != "" {
		gmail, err := gmailconnector.NewConnector(cfg)
		must(err)
		mailboxes["gmail"] = gmail
	}

	locker, closeLocker, err := lock.New(cfg)
	must(err)
	defer closeLocker()

	svc := listener.NewService(cfg, db, connectors.NewFetchService(cfg.RawMailDir, mailboxes), proc, locker)
	log.Info().Str("schedule", cfg.SweepSchedule).Str("maildrop", cfg.MaildropDir).Msg("rfq listener starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return svc.Watch(gctx) })
	must(g.Wait())
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
