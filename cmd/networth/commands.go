package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"github.com/bobmcallan/networth/internal/app"
	"github.com/bobmcallan/networth/internal/auth"
	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/models"
	"github.com/bobmcallan/networth/internal/server"
)

// configFlag is shared by every command that opens the app.
type configFlag struct {
	path string
}

func (c *configFlag) register(f *flag.FlagSet) {
	f.StringVar(&c.path, "config", "", "Path to networth.toml (default: $NETWORTH_CONFIG or ./networth.toml)")
}

// --- serveCmd ---

type serveCmd struct {
	configFlag
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "runs the REST API and the price scheduler" }
func (*serveCmd) Usage() string {
	return `serve [-config <file>]

Starts the HTTP API. Stops cleanly on SIGINT or SIGTERM.
`
}
func (c *serveCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := app.NewApp(ctx, c.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	common.PrintBanner(os.Stdout, a.Config, a.Logger)
	a.StartPriceScheduler()

	srv := server.NewServer(a)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	status := subcommands.ExitSuccess
	select {
	case <-sigChan:
		a.Logger.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		a.Logger.Error().Err(err).Msg("HTTP server failed")
		status = subcommands.ExitFailure
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	common.PrintShutdownBanner(os.Stdout, a.Logger)
	return status
}

// --- summaryCmd ---

type summaryCmd struct {
	configFlag
	currency string
	out      io.Writer
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "prints net worth and this month's cash flow" }
func (*summaryCmd) Usage() string {
	return `summary [-config <file>] [-currency <code>]

Reads local data and prints totals converted to the given currency,
or the data's base currency.
`
}
func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.currency, "currency", "", "Display currency (USD, COP, EUR, GBP, JPY, CAD, AUD)")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := app.NewApp(ctx, c.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := writeSummary(c.out, a, c.currency); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeSummary(w io.Writer, a *app.App, currency string) error {
	data := a.Data.Current()
	target := data.BaseCurrency
	if currency == "" {
		currency = a.Config.DisplayCurrency
	}
	if currency != "" {
		cur, err := models.ParseCurrency(currency)
		if err != nil {
			return err
		}
		target = cur
	}

	s, err := a.Engine.Summary(data, target)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Net worth        %s\n", models.FormatAmount(s.NetWorth, target))
	fmt.Fprintf(w, "  Stocks         %s\n", models.FormatAmount(s.Holdings.Stocks, target))
	fmt.Fprintf(w, "  Crypto         %s\n", models.FormatAmount(s.Holdings.Crypto, target))
	fmt.Fprintf(w, "  Fixed income   %s\n", models.FormatAmount(s.Holdings.FixedIncome, target))
	fmt.Fprintf(w, "  Variable       %s\n", models.FormatAmount(s.Holdings.Variable, target))
	fmt.Fprintf(w, "Monthly income   %s\n", models.FormatAmount(s.MonthlyIncome, target))
	fmt.Fprintf(w, "Monthly expenses %s\n", models.FormatAmount(s.MonthlyExpenses, target))
	fmt.Fprintf(w, "Net monthly      %s\n", models.FormatAmount(s.NetMonthly, target))
	return nil
}

// --- syncCmd ---

type syncCmd struct {
	configFlag
	token string
	out   io.Writer
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "signs in, loads the cloud copy and pushes local data" }
func (*syncCmd) Usage() string {
	return `sync [-config <file>] -token <jwt>

Signs in with the token, loads the cloud copy (which replaces local data
when the cloud has one) and then pushes the result back.
`
}
func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.token, "token", os.Getenv("NETWORTH_TOKEN"), "Session token (default: $NETWORTH_TOKEN)")
}

func (c *syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.token == "" {
		fmt.Fprintln(os.Stderr, "Error: -token is required.")
		return subcommands.ExitUsageError
	}
	a, err := app.NewApp(ctx, c.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.Data.Authenticate(ctx, c.token); err != nil {
		fmt.Fprintf(os.Stderr, "Sign in failed: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := a.Data.SyncNow(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
		return subcommands.ExitFailure
	}

	st := a.Data.Status()
	fmt.Fprintf(c.out, "Synced %s at version %d\n", st.UserID, st.RemoteVersion)
	return subcommands.ExitSuccess
}

// --- tokenCmd ---

type tokenCmd struct {
	configFlag
	user string
	out  io.Writer
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "signs a session token with the configured secret" }
func (*tokenCmd) Usage() string {
	return `token [-config <file>] -user <id>

For development against a local SurrealDB. Refused in production.
`
}
func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.user, "user", "", "User id to put in the token subject")
}

func (c *tokenCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required.")
		return subcommands.ExitUsageError
	}
	config, err := common.LoadConfig(app.ResolveConfigPath(c.path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return subcommands.ExitFailure
	}
	if config.IsProduction() {
		fmt.Fprintln(os.Stderr, "Error: token signing is disabled in production.")
		return subcommands.ExitFailure
	}

	token, err := signToken(config, c.user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.out, token)
	return subcommands.ExitSuccess
}

// --- versionCmd ---

type versionCmd struct {
	out io.Writer
}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "prints version information" }
func (*versionCmd) Usage() string            { return "version\n" }
func (*versionCmd) SetFlags(_ *flag.FlagSet) {}

func (c *versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	common.LoadVersionFromFile()
	fmt.Fprintln(c.out, common.GetVersionInfo().String())
	return subcommands.ExitSuccess
}

func signToken(config *common.Config, userID string) (string, error) {
	v, err := auth.NewVerifier(config.Auth)
	if err != nil {
		return "", err
	}
	return v.Sign(userID)
}
