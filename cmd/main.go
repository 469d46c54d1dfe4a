package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"rostercal/internal/caldav"
	"rostercal/internal/config"
	"rostercal/internal/dispatch"
	"rostercal/internal/google"
	"rostercal/internal/invite"
	"rostercal/internal/ledger"
	"rostercal/internal/mail"
	"rostercal/internal/recipients"
	"rostercal/internal/roster"
	"rostercal/internal/sheet"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "rostercal",
		Usage: "Send calendar invites for every row of the babysitting roster.",
		Commands: []*cli.Command{
			authCommand(),
			runCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to read the roster and write events.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.OAuthConfig(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'default', 'family'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			if accountName == "" {
				accountName = "default"
			}
			tokenFile := google.TokenFile(accountName)

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Read the roster and send one invite per row.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Log the invites that would be sent without sending them."},
			&cli.IntFlag{Name: "watch", Value: 3600, Usage: "Run every N seconds instead of once."},
			&cli.StringFlag{Name: "cron", Usage: "Run on a cron schedule (e.g. \"0 7 * * 1\") instead of once."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No invites will be sent.")
			}

			d, err := newDispatcher(c.Context, logger, cfg, c.Bool("dry-run"))
			if err != nil {
				return err
			}

			switch {
			case c.IsSet("cron"):
				return runScheduled(c.Context, logger, d, c.String("cron"), cfg.TimeZone)
			case c.IsSet("watch"):
				return runWatch(c.Context, logger, d, time.Duration(c.Int("watch"))*time.Second)
			default:
				logger.Info("Running a single pass over the roster.")
				if err := runOnce(c.Context, logger, d); err != nil {
					return fmt.Errorf("roster run failed: %w", err)
				}
				return nil
			}
		},
	}
}

// newDispatcher wires the row source, sink and pipeline stages from cfg.
func newDispatcher(ctx context.Context, logger *slog.Logger, cfg *config.Config, dryRun bool) (*dispatch.Dispatcher, error) {
	var googleCreds google.Credentials
	if cfg.NeedsGoogle() {
		googleCreds = google.Credentials{
			ServiceAccountJSON: cfg.Google.ServiceAccount,
			ClientID:           cfg.Google.ClientID,
			ClientSecret:       cfg.Google.ClientSecret,
			Account:            cfg.Google.Account,
		}
	}

	var source dispatch.RowSource
	if cfg.RosterCSV != "" {
		source = sheet.NewCSVSource(logger, cfg.RosterCSV, cfg.Columns())
	} else {
		httpClient, err := google.HTTPClient(ctx, googleCreds)
		if err != nil {
			return nil, err
		}
		source, err = google.NewSheetSource(ctx, logger, httpClient, cfg.Google.SheetID, cfg.Google.SheetRange, cfg.Columns())
		if err != nil {
			return nil, err
		}
	}

	sink, err := newSink(ctx, logger, cfg, googleCreds, dryRun)
	if err != nil {
		return nil, err
	}

	if cfg.StateFile != "" && !dryRun {
		l, err := ledger.Open(logger, cfg.StateFile, sink)
		if err != nil {
			return nil, err
		}
		logger.Info("Skipping invites recorded in the ledger.", "file", cfg.StateFile, "entries", l.Len())
		sink = l
	}

	return dispatch.NewDispatcher(
		logger,
		source,
		roster.NewNormalizer(cfg.DateLayouts...),
		recipients.NewResolver(cfg.Recipients(), cfg.OwnerEmail),
		invite.NewBuilder(cfg.TitlePrefix, cfg.TimeZone),
		sink,
		dryRun,
	), nil
}

// newSink returns the configured sink. Dry runs skip any network setup.
func newSink(ctx context.Context, logger *slog.Logger, cfg *config.Config, creds google.Credentials, dryRun bool) (dispatch.Sink, error) {
	if dryRun {
		return nil, nil
	}

	switch cfg.Transport {
	case config.TransportMessage:
		client, err := mail.NewClient(mail.Settings{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return nil, err
		}
		return mail.NewSink(logger, client, cfg.SMTP.From), nil
	case config.TransportCalDAV:
		return caldav.NewSink(ctx, logger, caldav.Settings{
			Endpoint:     cfg.CalDAV.Endpoint,
			Username:     cfg.CalDAV.Username,
			Password:     cfg.CalDAV.Password,
			CalendarName: cfg.CalDAV.Calendar,
		})
	default:
		httpClient, err := google.HTTPClient(ctx, creds)
		if err != nil {
			return nil, err
		}
		return google.NewCalendarSink(ctx, logger, httpClient, cfg.Google.CalendarID)
	}
}

// runOnce performs one pass and logs a line per row plus the summary.
func runOnce(ctx context.Context, logger *slog.Logger, d *dispatch.Dispatcher) error {
	report, err := d.Run(ctx)
	if report != nil && err != nil {
		logger.Error("Run aborted.", report.Summary().LogAttrs()...)
	}
	return err
}

func runWatch(ctx context.Context, logger *slog.Logger, d *dispatch.Dispatcher, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("--watch needs a positive interval")
	}
	logger.Info("Starting watcher.", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := runOnce(ctx, logger, d); err != nil {
			logger.Error("Roster run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("Watcher stopped.")
			return nil
		case <-ticker.C:
		}
	}
}

func runScheduled(ctx context.Context, logger *slog.Logger, d *dispatch.Dispatcher, schedule, tz string) error {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", tz, err)
	}

	// A pass that outlasts the interval makes the next tick a no-op.
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(schedule, func() {
		if err := runOnce(ctx, logger, d); err != nil {
			logger.Error("Roster run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	logger.Info("Starting scheduler.", "schedule", schedule, "timezone", tz)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("Scheduler stopped.")
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
