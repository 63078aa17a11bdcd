// Package main provides the saloon host entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/saloon/internal/api/shell"
	"github.com/osa030/saloon/internal/app/admission"
	"github.com/osa030/saloon/internal/app/notification"
	"github.com/osa030/saloon/internal/app/pricing"
	"github.com/osa030/saloon/internal/app/saloon"
	"github.com/osa030/saloon/internal/infra/config"
	"github.com/osa030/saloon/internal/infra/logger"
	"github.com/osa030/saloon/internal/infra/metrics"
	"github.com/osa030/saloon/internal/infra/store"
)

var (
	app        = kingpin.New("saloon", "Billiard, snooker and darts table timer")
	configPath = app.Flag("config", "Path to config file (defaults are used when missing)").Default("saloon.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// list-policies command
	listPoliciesCmd = app.Command("list-policies", "List pricing policies and admission filters and exit")
)

func init() {
	// shell command (default) - no need to store the command
	app.Command("shell", "Run the interactive shell (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listPoliciesCmd.FullCommand() {
		printPolicies()
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Saloon error: %v", err)
		os.Exit(1)
	}
}

// run executes the host. Using a separate function ensures deferred
// cleanup runs even when returning with an error.
func run(cfg *config.Config) error {
	st, err := store.Open(cfg.Store)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer st.Close()

	mgr, err := saloon.NewManager(cfg, st)
	if err != nil {
		return errors.Wrap(err, "failed to create saloon manager")
	}
	defer mgr.Close()

	mgr.Notifications().Subscribe(notification.LogSink(logger.Component("events")))

	if cfg.Metrics.Addr != "" {
		rec := metrics.NewRecorder()
		mgr.Notifications().Subscribe(rec)
		srv := metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, rec, zlog.Logger)
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Load(ctx); err != nil {
		return errors.Wrap(err, "failed to load tables")
	}
	zlog.Info().Msgf("Store: driver=%s path=%s tables=%d", cfg.Store.Driver, cfg.Store.Path, mgr.TableCount())

	executeHooks(cfg.Hooks.OnStarted, "on_started")
	defer executeHooks(cfg.Hooks.OnStopped, "on_stopped")

	svc := shell.NewService(mgr, cfg.Shell)
	sh := shell.New(svc, os.Stdin, os.Stdout, cfg.Shell.Prompt)

	shellErrCh := make(chan error, 1)
	go func() {
		shellErrCh <- sh.Run(ctx)
	}()

	// Wait for shutdown signal or the shell to exit
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("Received %s, saving and shutting down...", sig)
		cancel()
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer saveCancel()
		if err := mgr.Save(saveCtx); err != nil {
			return err
		}
	case err := <-shellErrCh:
		if err != nil {
			return err
		}
	}

	if open := mgr.OpenSessions(); open > 0 {
		zlog.Warn().Msgf("%d open sessions were not billed", open)
	}
	zlog.Info().Msg("Saloon stopped")
	return nil
}

// printPolicies prints available pricing policies and admission filters.
func printPolicies() {
	fmt.Println("Pricing Policies:")
	for _, name := range pricing.Names() {
		p, err := pricing.New(name, nil)
		if err != nil {
			fmt.Printf("  %-30s - (invalid defaults: %v)\n", name, err)
			continue
		}
		fmt.Printf("  %-30s - %s\n", p.Name(), p.Description())
	}

	fmt.Println("Admission Filters:")
	registered := admission.GetRegistered()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := registered[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
