package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"autoquote/internal"
	"autoquote/internal/api"
	"autoquote/internal/catalog"
	"autoquote/internal/config"
	"autoquote/internal/connectors"
	"autoquote/internal/logging"
	"autoquote/internal/pipeline"
	"autoquote/internal/storage"
	"autoquote/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.Env, cfg.LogLevel, cfg.LogPretty)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "catalog:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "xlsx or csv product sheet")
		_ = fs.Parse(args)
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		f, err := os.Open(*file)
		must(err)
		defer f.Close()
		res, err := catalog.NewImportService(db).Import(ctx, filepath.Base(*file), f)
		must(err)
		fmt.Printf("catalog import done batch=%s imported=%d errors=%d\n", res.BatchID, res.Imported, len(res.Errors))
		for _, e := range res.Errors {
			fmt.Printf("  row %d: %s\n", e.Row, e.Error)
		}
	case "catalog:pull":
		client, err := catalog.NewFeedClient(cfg)
		must(err)
		res, err := catalog.NewSyncService(db, client).Pull(ctx)
		must(err)
		fmt.Printf("catalog feed sync done batch=%s imported=%d retired=%d errors=%d\n", res.BatchID, res.Imported, res.Retired, len(res.Errors))
	case "catalog:template":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "product-template.csv"), "output csv path")
		_ = fs.Parse(args)
		must(os.MkdirAll(filepath.Dir(*out), 0o755))
		f, err := os.Create(*out)
		must(err)
		must(catalog.WriteTemplate(f))
		must(f.Close())
		fmt.Printf("template written to %s\n", *out)
	case "customer:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		email := fs.String("email", "", "customer email")
		name := fs.String("name", "", "contact name")
		company := fs.String("company", "", "company name")
		phone := fs.String("phone", "", "phone")
		taxID := fs.String("tax-id", "", "tax registration number")
		billing := fs.String("billing", "", "billing address")
		shipping := fs.String("shipping", "", "shipping address")
		_ = fs.Parse(args)
		if !strings.Contains(*email, "@") || strings.TrimSpace(*name) == "" {
			must(fmt.Errorf("--email and --name are required"))
		}
		id, err := db.UpsertCustomer(ctx, internal.Customer{
			Email:           *email,
			Name:            *name,
			Company:         optional(*company),
			Phone:           optional(*phone),
			TaxID:           optional(*taxID),
			BillingAddress:  optional(*billing),
			ShippingAddress: optional(*shipping),
			Active:          true,
		})
		must(err)
		fmt.Printf("customer saved id=%d email=%s\n", id, strings.ToLower(*email))
	case "customer:deactivate":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		email := fs.String("email", "", "customer email")
		_ = fs.Parse(args)
		must(db.SetCustomerActive(ctx, *email, false))
		fmt.Printf("customer deactivated email=%s\n", strings.ToLower(*email))
	case "account:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		email := fs.String("email", "", "mailbox address")
		provider := fs.String("provider", "imap", "imap|gmail|maildir")
		host := fs.String("host", "", "imap host")
		port := fs.Int("port", 993, "imap port")
		username := fs.String("username", "", "login (defaults to --email)")
		password := fs.String("password", "", "password or app password")
		useTLS := fs.Bool("tls", true, "implicit TLS")
		mailbox := fs.String("mailbox", "", "folder, gmail label or maildrop directory")
		unreadOnly := fs.Bool("unread-only", true, "fetch unread messages only")
		since := fs.String("since", "", "YYYY-MM-DD lower bound")
		before := fs.String("before", "", "YYYY-MM-DD upper bound")
		blacklist := fs.String("blacklist", "", "comma separated senders to skip")
		refreshToken := fs.String("refresh-token", "", "gmail oauth refresh token")
		_ = fs.Parse(args)
		if !strings.Contains(*email, "@") {
			must(fmt.Errorf("--email is required"))
		}
		id, err := db.UpsertMailAccount(ctx, internal.MailAccount{
			Email:        *email,
			Provider:     strings.ToLower(*provider),
			Host:         *host,
			Port:         *port,
			Username:     util.FirstNonEmpty(*username, *email),
			Password:     *password,
			UseTLS:       *useTLS,
			Mailbox:      *mailbox,
			UnreadOnly:   *unreadOnly,
			SinceDate:    optional(*since),
			BeforeDate:   optional(*before),
			Blacklist:    *blacklist,
			RefreshToken: optional(*refreshToken),
			Active:       true,
		})
		must(err)
		fmt.Printf("mail account saved id=%d email=%s provider=%s\n", id, *email, *provider)
	case "mail:sweep":
		proc, err := newPipeline(ctx, cfg, db)
		must(err)
		svc, closeLocker, err := newListener(cfg, db, proc)
		must(err)
		defer closeLocker()
		summary, err := svc.TriggerSweep(ctx, "cli")
		must(err)
		printJSON(summary)
	case "mail:listen":
		proc, err := newPipeline(ctx, cfg, db)
		must(err)
		svc, closeLocker, err := newListener(cfg, db, proc)
		must(err)
		defer closeLocker()
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return svc.Run(gctx) })
		g.Go(func() error { return svc.Watch(gctx) })
		must(g.Wait())
	case "review:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 50, "max records")
		_ = fs.Parse(args)
		records, err := db.ListReviewQueue(ctx, *limit)
		must(err)
		for _, r := range records {
			fmt.Printf("%d\t%s\t%s\t%s\t%s\n", r.ID, r.Status, util.Deref(r.FlagReason), r.FromAddress, r.Subject)
		}
		fmt.Printf("%d records\n", len(records))
	case "review:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "review-"+time.Now().Format("20060102")+".xlsx"), "output xlsx path")
		limit := fs.Int("limit", 500, "max records")
		_ = fs.Parse(args)
		records, err := db.ListReviewQueue(ctx, *limit)
		must(err)
		must(pipeline.ExportReviewQueue(records, *out))
		fmt.Printf("exported %d records to %s\n", len(records), *out)
	case "review:clear":
		n, err := db.ClearReviewQueue(ctx)
		must(err)
		fmt.Printf("review queue cleared deleted=%d\n", n)
	case "stats":
		st, err := db.Stats(ctx)
		must(err)
		last, err := db.GetMetadata(ctx, "last_sweep_at")
		must(err)
		fmt.Printf("total=%d auto_sent=%d flagged=%d today=%d last_sweep=%s\n", st.Total, st.AutoSent, st.Flagged, st.Today, util.Deref(last))
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		schedule := fs.Bool("schedule", false, "also run the cron sweep scheduler")
		_ = fs.Parse(args)
		proc, err := newPipeline(ctx, cfg, db)
		must(err)
		svc, closeLocker, err := newListener(cfg, db, proc)
		must(err)
		defer closeLocker()
		must(serve(ctx, cfg, api.NewServer(cfg, db, proc, svc), func(gctx context.Context) error {
			if !*schedule {
				return nil
			}
			return svc.Run(gctx)
		}))
	case "rfq:try":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "raw .eml message")
		_ = fs.Parse(args)
		raw, err := os.ReadFile(*file)
		must(err)
		msg, err := connectors.ParseMessage(raw)
		must(err)
		proc, err := newPipeline(ctx, cfg, db)
		must(err)
		snap, err := catalog.Load(ctx, db)
		must(err)
		preview, err := proc.Preview(ctx, snap, msg)
		must(err)
		printJSON(preview)
	default:
		usage()
		os.Exit(1)
	}
}

// serve runs the admin API until ctx is cancelled, alongside any background
// job.
func serve(ctx context.Context, cfg config.Config, server *api.Server, background func(context.Context) error) error {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return background(gctx) })
	return g.Wait()
}

func optional(v string) *string {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	return &v
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	must(err)
	fmt.Println(string(b))
}

func usage() {
	fmt.Println("usage: autoquote <command>")
	fmt.Println("commands:")
	fmt.Println("  catalog:import --file=products.xlsx")
	fmt.Println("  catalog:pull")
	fmt.Println("  catalog:template [--out=./out/product-template.csv]")
	fmt.Println("  customer:add --email=... --name=... [--company --phone --tax-id --billing --shipping]")
	fmt.Println("  customer:deactivate --email=...")
	fmt.Println("  account:add --email=... --provider=imap|gmail|maildir [--host --port --password --mailbox ...]")
	fmt.Println("  mail:sweep")
	fmt.Println("  mail:listen")
	fmt.Println("  review:list [--limit=50]")
	fmt.Println("  review:export [--out=./out/review.xlsx]")
	fmt.Println("  review:clear")
	fmt.Println("  stats")
	fmt.Println("  serve [--schedule]")
	fmt.Println("  rfq:try --file=message.eml")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
