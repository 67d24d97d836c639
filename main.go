// ABOUTME: Entry point for the copain contact CLI
// ABOUTME: Routes subcommands and wires the store, sync engine, and manager
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/copainapp/copain/cli"
	"github.com/copainapp/copain/config"
	"github.com/copainapp/copain/db"
	"github.com/copainapp/copain/manager"
	"github.com/copainapp/copain/remote"
	"github.com/copainapp/copain/scanner"
	"github.com/copainapp/copain/store"
	contactsync "github.com/copainapp/copain/sync"
)

const version = "0.2.0"

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/copain/contacts.db)")
	contactsFile := flag.String("contacts-file", "device-contacts.json", "JSON file standing in for the device address book")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("copain version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := buildLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	database, err := db.OpenDatabase(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	repo := store.NewRepository(database, logger)
	if loadErr := repo.LoadError(); loadErr != nil {
		fmt.Printf("✗ Warning: persisted contacts could not be loaded, starting empty: %v\n", loadErr)
	}

	client := remote.NewClient(remote.Config{
		BaseURL:     cfg.APIURL,
		TokenSource: remote.NewStaticTokenSource(cfg.APIToken),
		Timeout:     cfg.HTTPTimeout,
	}, logger)

	engine := contactsync.NewEngine(repo, client, contactsync.Config{
		BatchSize:         cfg.BatchSize,
		Workers:           cfg.Workers,
		RequestsPerSecond: cfg.RequestsPerSecond,
		CacheTTL:          cfg.CacheTTL,
	}, logger)

	sc := scanner.New(scanner.FileSource{Path: *contactsFile}, logger)
	m := manager.New(repo, sc, engine, client, database, logger)

	ctx := context.Background()
	command := args[0]
	commandArgs := args[1:]

	// Remote-facing commands need credentials; local ones do not.
	switch command {
	case "sync", "detect", "delete", "wipe", "invite", "cancel-invite", "refresh-invites", "daemon":
		if err := cfg.RequireRemote(); err != nil {
			log.Fatalf("Error: %v", err)
		}
	}

	var cmdErr error
	switch command {
	case "scan":
		cmdErr = cli.ScanCommand(ctx, m, commandArgs)
	case "import":
		cmdErr = cli.ImportCommand(ctx, m, commandArgs)
	case "list":
		cmdErr = cli.ListCommand(repo, commandArgs)
	case "search":
		cmdErr = cli.SearchCommand(repo, commandArgs)
	case "stats":
		cmdErr = cli.StatsCommand(m, commandArgs)
	case "sync":
		cmdErr = cli.SyncCommand(ctx, m, commandArgs)
	case "detect":
		cmdErr = cli.DetectCommand(ctx, m, commandArgs)
	case "delete":
		cmdErr = cli.DeleteCommand(ctx, m, commandArgs)
	case "wipe":
		cmdErr = cli.WipeCommand(ctx, m, commandArgs)
	case "unblock":
		cmdErr = cli.UnblockCommand(m, commandArgs)
	case "invite":
		cmdErr = cli.InviteCommand(ctx, m, commandArgs)
	case "cancel-invite":
		cmdErr = cli.CancelInviteCommand(ctx, m, commandArgs)
	case "refresh-invites":
		cmdErr = cli.RefreshInvitesCommand(ctx, m, commandArgs)
	case "daemon":
		cmdErr = cli.DaemonCommand(ctx, m, commandArgs)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if cmdErr != nil {
		log.Fatalf("Error: %v", cmdErr)
	}
}

func buildLogger(verbose bool) *zap.Logger {
	logCfg := zap.NewDevelopmentConfig()
	logCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	if verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	return logger
}

func printUsage() {
	fmt.Println(`copain - contact unification and sync

Usage: copain [flags] <command> [command flags]

Local commands:
  scan              Read the device address book into the store
  import            Curate phones into the network (--phones, --sync)
  list              List contacts (--source, --page, --sort)
  search <query>    Ranked contact search
  stats             Network metrics and sync ledger

Remote commands:
  sync              Push the network to the backend (--force, --full)
  detect            Detect registered accounts
  delete            Remove one contact (--phone)
  wipe              Delete every remote record (--yes)
  unblock           Re-enable sync after a wipe
  invite            Send an invitation (--phone, --channel)
  cancel-invite     Withdraw a pending invitation (--phone)
  refresh-invites   Pull invitation statuses
  daemon            Periodic full sync (--interval)

Flags:
  --db-path         Database location
  --contacts-file   Device address-book JSON file
  --verbose         Debug logging
  --version         Show version`)
}
