// ABOUTME: Entry point for the vault capability registry.
// ABOUTME: Serves the admin API and offers info and balance-conversion commands.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/vault/internal/admin"
	"github.com/2389/vault/internal/auth"
	"github.com/2389/vault/internal/config"
	"github.com/2389/vault/internal/convert"
	"github.com/2389/vault/internal/logging"
	"github.com/2389/vault/internal/seed"
	"github.com/2389/vault/internal/store"
	"github.com/2389/vault/internal/telemetry"
	"github.com/2389/vault/plugins/core"
	_ "github.com/2389/vault/plugins/chatmeta"     // Register ChatMeta plugin
	_ "github.com/2389/vault/plugins/groupmanager" // Register GroupManager plugin
	_ "github.com/2389/vault/plugins/ledger"       // Register Ledger plugin
	_ "github.com/2389/vault/plugins/superperms"   // Register SuperPerms plugin
)

const shutdownTimeout = 10 * time.Second

var (
	port    string
	dbPath  string
	players int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vault",
		Short: "Vault - capability provider registry",
		Long: `Vault lets plugins offer economy, permission, and chat providers and
hands every consumer the single best one for each capability.

Bundled plugins:
  • ledger        SQLite economy with banks (priority normal)
  • superperms    In-memory fallback permissions (priority lowest)
  • groupmanager  YAML groups with inheritance (priority high)
  • chatmeta      Prefixes, suffixes, and chat metadata (priority normal)

Quick Start:
  vault serve                   # Enable plugins and serve the admin API on port 9000
  vault info                    # Show which provider is bound for each capability
  vault convert Ledger Other    # Move every balance from one economy to another
  vault seed                    # Fill the bound providers with demo players`,
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Enable plugins and start the admin HTTP server",
		Long: `Enable every compatible plugin and serve the admin API.

The server provides:
  • Provider and binding views at http://localhost:PORT/admin/providers
  • Binding audit log at http://localhost:PORT/admin/events
  • Plugin enable/disable at http://localhost:PORT/admin/plugins
  • Prometheus metrics at http://localhost:PORT/metrics
  • Health check at http://localhost:PORT/healthz

Environment Variables:
  VAULT_PORT                Server port (default: 9000)
  VAULT_DB                  Database path
  VAULT_LOG_LEVEL           debug, info, warn, error (default: info)
  VAULT_LOG_FORMAT          text or json (default: text)
  VAULT_DEFAULT_PRIORITY    Tier for providers that declare none (default: normal)
  VAULT_GROUPS_FILE         GroupManager YAML file (default: groups.yml)
  VAULT_TELEMETRY_SCHEDULE  Cron schedule for usage snapshots (default: @every 30m)
  VAULT_API_VERSION         Host API version plugins are checked against (default: 1.7.3)
  VAULT_ADMIN_TOKEN         Bearer token required for admin POST requests (default: none)`,
		RunE: runServe,
	}
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides VAULT_PORT)")
	serveCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Database path (overrides VAULT_DB)")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show registered providers and the binding for each capability",
		RunE:  runInfo,
	}
	infoCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Database path (overrides VAULT_DB)")

	convertCmd := &cobra.Command{
		Use:   "convert <from> <to>",
		Short: "Move every account balance from one economy provider to another",
		Long: `Convert deposits each account balance held by the source economy into the
destination economy and withdraws it from the source. Provider names match
case-insensitively. The source must be able to list its accounts.`,
		Args: cobra.ExactArgs(2),
		RunE: runConvert,
	}
	convertCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Database path (overrides VAULT_DB)")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the bound providers with demo players",
		Long: `Seed generates demo players and writes them through whichever economy,
permission, and chat providers are currently bound: an account and starting
balance, a few permission nodes, a group when the permission provider has it,
and a chat prefix.

Players are generated by OpenAI when OPENAI_API_KEY is set (model from
OPENAI_MODEL, default gpt-5-mini) and come from a static roster otherwise.

Note: Seed is not idempotent. Running it twice deposits the balances twice.`,
		RunE: runSeed,
	}
	seedCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Database path (overrides VAULT_DB)")
	seedCmd.Flags().IntVarP(&players, "players", "n", 20, "Number of players to generate")

	rootCmd.AddCommand(serveCmd, infoCmd, convertCmd, seedCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if port != "" {
		cfg.Port = port
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, a)
}

// serve runs the admin server and the background workers until ctx is done.
// Plugins are disabled before the audit recorder drains, and the store is
// closed last.
func serve(ctx context.Context, a *app) error {
	rec := store.NewRecorder(a.store, 256)
	unsubscribe := a.vault.Registry().Subscribe(rec.Observe)
	defer unsubscribe()

	collector := telemetry.NewCollector(a.vault.Registry(), a.vault.Resolver())
	defer collector.Close()
	reporter, err := telemetry.NewReporter(collector, a.cfg.TelemetrySchedule, a.log)
	if err != nil {
		a.store.Close()
		return err
	}

	// Workers outlive the HTTP server so the final unregistrations are recorded.
	workers, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rec.Run(workers) })
	g.Go(func() error { return reporter.Run(workers) })

	a.start(ctx)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           newRouter(a, collector),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.log.WithField("addr", srv.Addr).WithField("db", a.cfg.DBPath).Info("vault listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if herr := a.host.Shutdown(shutdownCtx); herr != nil {
			a.log.WithError(herr).Warn("plugin shutdown reported errors")
		}
		stopWorkers()
		return err
	})

	err = g.Wait()
	if dropped := rec.Dropped(); dropped > 0 {
		a.log.WithField("dropped", dropped).Warn("audit recorder dropped changes")
	}
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func newRouter(a *app, collector *telemetry.Collector) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(a.log))
	r.Use(auth.Middleware(a.cfg.AdminToken))

	// Favicon
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	admin.NewHandlers(admin.Deps{
		Registry: a.vault.Registry(),
		Resolver: a.vault.Resolver(),
		Host:     a.host,
		Events:   a.store,
		Metrics:  collector.Handler(),
		Logger:   a.log,
	}).RegisterRoutes(r)

	return r
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a.start(ctx)
	defer a.close(ctx)

	printInfo(cmd.OutOrStdout(), a)
	return nil
}

// printInfo lists each plugin and, per capability, every provider best first
// with the bound one marked.
func printInfo(w io.Writer, a *app) {
	fmt.Fprintf(w, "Host API %s\n\nPlugins:\n", a.host.APIVersion())
	for _, st := range a.host.Statuses() {
		state := "disabled"
		if st.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(w, "  %-14s %-8s %-9s %s\n", st.Manifest.Name, st.Manifest.Version, state, st.Health.Status)
	}

	for _, kind := range core.Kinds() {
		fmt.Fprintf(w, "\n%s:\n", kind)
		providers := a.vault.Providers(kind)
		if len(providers) == 0 {
			fmt.Fprintln(w, "  (none)")
			continue
		}
		bound, _ := a.vault.Binding(kind)
		for _, rec := range providers {
			marker := " "
			if rec.ID == bound.ID {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %-16s owner=%-14s priority=%s\n", marker, rec.Provider, rec.Owner, rec.Priority)
		}
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a.start(ctx)
	defer a.close(ctx)

	res, err := convert.New(a.vault.Registry(), a.log).Convert(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	printConversion(cmd.OutOrStdout(), res)
	if len(res.Failures) > 0 {
		return fmt.Errorf("%d accounts could not be converted", len(res.Failures))
	}
	return nil
}

func printConversion(w io.Writer, res convert.Result) {
	fmt.Fprintf(w, "Converted %s -> %s: %d of %d accounts moved (%.2f total), %d skipped\n",
		res.From, res.To, res.Moved, res.Accounts, res.Total, res.Skipped)
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  failed %s: %s\n", f.Account, f.Reason)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a.start(ctx)
	defer a.close(ctx)

	sum, err := seedPlayers(ctx, a, players)
	if err != nil {
		return err
	}
	printSeed(cmd.OutOrStdout(), sum)
	return nil
}

// seedPlayers generates n players and applies them to the bound providers.
// Players join only groups the bound permission provider already knows.
func seedPlayers(ctx context.Context, a *app, n int) (seed.Summary, error) {
	var groups []string
	if perm, ok := a.vault.Permission(); ok && perm.HasGroupSupport() {
		groups = perm.Groups()
	}

	gen := seed.NewGenerator(seed.Options{
		APIKey:  a.cfg.OpenAIKey,
		Model:   a.cfg.OpenAIModel,
		BaseURL: a.cfg.OpenAIBaseURL,
	}, a.log)
	data, err := gen.Generate(ctx, n, groups)
	if err != nil {
		return seed.Summary{}, err
	}
	return seed.Apply(ctx, a.vault, data)
}

func printSeed(w io.Writer, sum seed.Summary) {
	fmt.Fprintf(w, "Seeded %d players: %d accounts (%.2f deposited), %d permission nodes, %d group memberships, %d prefixes\n",
		sum.Players, sum.Accounts, sum.Deposited, sum.Permissions, sum.Groups, sum.Prefixes)
	for _, name := range sum.Failed {
		fmt.Fprintf(w, "  deposit refused for %s\n", name)
	}
}
