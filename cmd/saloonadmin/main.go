// Package main provides the offline admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/osa030/saloon/internal/api/shell"
	"github.com/osa030/saloon/internal/app/saloon"
	"github.com/osa030/saloon/internal/infra/config"
	"github.com/osa030/saloon/internal/infra/logger"
	"github.com/osa030/saloon/internal/infra/store"
)

var (
	app        = kingpin.New("saloonadmin", "Offline table and history management")
	configPath = app.Flag("config", "Path to config file (defaults are used when missing)").Default("saloon.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()

	// tables command
	tablesCmd = app.Command("tables", "List tables").Alias("list")

	// history command
	historyCmd   = app.Command("history", "Show a table's completed sessions")
	historyTable = historyCmd.Arg("table", "Table position or name").Required().String()

	// report command
	reportCmd = app.Command("report", "Revenue summary")

	// add-table command
	addCmd  = app.Command("add-table", "Add a table")
	addName = addCmd.Arg("name", "Table name").Required().String()
	addKind = addCmd.Flag("kind", "Billiard, Snooker or Darts").Default("Billiard").String()
	addRate = addCmd.Flag("rate", "Hourly rate").Default("10").String()

	// edit-table command
	editCmd   = app.Command("edit-table", "Change a table")
	editTable = editCmd.Arg("table", "Table position or name").Required().String()
	editName  = editCmd.Flag("name", "New name").String()
	editKind  = editCmd.Flag("kind", "New kind").String()
	editRate  = editCmd.Flag("rate", "New hourly rate").String()

	// remove-table command
	removeCmd   = app.Command("remove-table", "Remove a table and its history")
	removeTable = removeCmd.Arg("table", "Table position or name").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stderr", Level: "warn"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if _, err := logger.Init(loggerConfig); err != nil {
		printError(os.Stdout, errors.Wrap(err, "failed to initialize logger"))
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		printError(os.Stdout, errors.Wrap(err, "failed to load config"))
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, command, os.Stdout); err != nil {
		printError(os.Stdout, err)
		os.Exit(1)
	}
}

// run executes one admin command against the configured store.
// The store and manager are closed before it returns.
func run(ctx context.Context, cfg *config.Config, command string, out io.Writer) error {
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

	if err := mgr.Load(ctx); err != nil {
		return errors.Wrap(err, "failed to load tables")
	}
	svc := shell.NewService(mgr, cfg.Shell)

	// Execute command
	var (
		resp    shell.Response
		changed bool
	)
	switch command {
	case tablesCmd.FullCommand():
		header(out, "TABLES")
		resp = svc.List()
	case historyCmd.FullCommand():
		header(out, "HISTORY")
		resp = svc.History([]string{*historyTable})
	case reportCmd.FullCommand():
		header(out, "REVENUE REPORT")
		resp = svc.Report()
	case addCmd.FullCommand():
		resp = svc.AddTable([]string{*addKind, *addRate, *addName})
		changed = true
	case editCmd.FullCommand():
		args := []string{*editTable}
		if *editName != "" {
			args = append(args, "name="+*editName)
		}
		if *editKind != "" {
			args = append(args, "kind="+*editKind)
		}
		if *editRate != "" {
			args = append(args, "rate="+*editRate)
		}
		if len(args) == 1 {
			return errors.New("nothing to change (use --name, --kind or --rate)")
		}
		resp = svc.EditTable(args)
		changed = true
	case removeCmd.FullCommand():
		resp = svc.RemoveTable([]string{*removeTable})
		changed = true
	default:
		return errors.Newf("unknown command %q", command)
	}

	if !resp.Success {
		return errors.New(resp.Message)
	}
	fmt.Fprintln(out, resp.Message)

	if changed {
		save := svc.Save(ctx)
		if !save.Success {
			return errors.New(save.Message)
		}
		color.New(color.FgGreen).Fprintln(out, save.Message)
	}
	return nil
}

func header(out io.Writer, title string) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(out)
	cyan.Fprintf(out, "=== %s ===\n", title)
}

func printError(out io.Writer, err error) {
	color.New(color.FgRed, color.Bold).Fprintf(out, "Error: %v\n", err)
}
