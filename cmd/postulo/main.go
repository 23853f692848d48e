// Command postulo runs one application campaign from the terminal and prints
// the progress stream line by line.
//
// Usage:
//
//	postulo -identifiant jean@example.org -motdepasse secret -metier serveur -lieu Paris
//	postulo -config postulo.yaml -identifiant ... -motdepasse ... -metier boulanger
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/postulo/postulo/dbopen"
	"github.com/postulo/postulo/ledger"
	"github.com/postulo/postulo/scraper"
)

func main() {
	configPath := flag.String("config", "", "path to postulo.yaml config file")
	identifiant := flag.String("identifiant", "", "portal login identifier")
	motdepasse := flag.String("motdepasse", "", "portal password (or POSTULO_MOT_DE_PASSE)")
	metier := flag.String("metier", "", "search keywords")
	lieu := flag.String("lieu", "", "search location")
	subject := flag.String("subject", "", "subject id for the application ledger")
	dbPath := flag.String("db", "postulo.db", "application ledger database (empty = no ledger)")
	headless := flag.Bool("headless", true, "run the browser headless")
	maxOffres := flag.Int("max-offres", 0, "offer budget override")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, options{
		configPath:  *configPath,
		identifiant: *identifiant,
		motdepasse:  *motdepasse,
		metier:      *metier,
		lieu:        *lieu,
		subject:     *subject,
		dbPath:      *dbPath,
		headless:    *headless,
		maxOffres:   *maxOffres,
	}); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "usage: postulo -identifiant <login> -motdepasse <secret> -metier <keywords> [-lieu <location>]")
			os.Exit(2)
		}
		logger.Error("postulo: fatal", "error", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("missing required flags")

type options struct {
	configPath  string
	identifiant string
	motdepasse  string
	metier      string
	lieu        string
	subject     string
	dbPath      string
	headless    bool
	maxOffres   int
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	if opts.motdepasse == "" {
		opts.motdepasse = os.Getenv("POSTULO_MOT_DE_PASSE")
	}
	if opts.identifiant == "" || opts.motdepasse == "" || opts.metier == "" {
		return errUsage
	}

	cfg := scraper.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := scraper.LoadFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	engineOpts := []scraper.Option{scraper.WithLogger(logger)}
	if opts.dbPath != "" {
		db, err := dbopen.Open(opts.dbPath, dbopen.WithMkdirAll(), dbopen.WithSchema(ledger.Schema))
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer db.Close()
		engineOpts = append(engineOpts, scraper.WithLedger(scraper.NewStoreLedger(ledger.NewStore(db))))
		if opts.subject == "" {
			// The ledger key needs a subject; the login identifier is a
			// stable stand-in for single-user CLI use.
			opts.subject = opts.identifiant
		}
	}

	engine := scraper.New(cfg, engineOpts...)
	st := engine.Run(ctx, scraper.RunInput{
		SubjectID:  opts.subject,
		Identifier: opts.identifiant,
		Secret:     opts.motdepasse,
		Keywords:   opts.metier,
		Location:   opts.lieu,
		Headless:   opts.headless,
		MaxOffers:  opts.maxOffres,
	})

	var final *scraper.Summary
	for ev := range st.Events() {
		fmt.Println(ev.Line())
		if ev.Kind == scraper.KindFinal {
			final = ev.Summary
		}
	}

	if final == nil {
		return fmt.Errorf("run ended without a summary")
	}
	if final.Processed == 0 {
		return fmt.Errorf("no offers processed")
	}
	logger.Info("run complete", "summary", summaryJSON(final))
	return nil
}

func summaryJSON(s *scraper.Summary) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
