// Command ledger posts and unposts stock documents and answers stock
// questions against the ledger database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

var version = "dev"

// Exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitRejected = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath string
		operator   string
		company    string
		asJSON     bool
	)
	fs.StringVar(&configPath, "config", "", "Path to config file (default: search ., ./config, /etc/erp)")
	fs.StringVar(&operator, "operator", os.Getenv("USER"), "Operator recorded in logs and audit entries")
	fs.StringVar(&company, "company", "", "Company ID recorded in logs")
	fs.BoolVar(&asJSON, "json", false, "Print results as JSON")
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}
	name, cmdArgs := fs.Arg(0), fs.Args()[1:]
	if name == "version" {
		fmt.Fprintln(stdout, version)
		return exitOK
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		fs.Usage()
		return exitUsage
	}
	if len(cmdArgs) < cmd.minArgs {
		fmt.Fprintf(stderr, "usage: ledger %s %s\n", name, cmd.usage)
		return exitUsage
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitFailure
	}
	defer func() { _ = log.Sync() }()

	ctx = logger.WithOperator(ctx, operator)
	if company != "" {
		ctx = logger.WithCompanyID(ctx, company)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start", zap.Error(err))
		return exitFailure
	}
	defer a.Close(context.WithoutCancel(ctx))
	ctx = logger.WithContext(ctx, a.log)

	started := time.Now()
	out := &printer{w: stdout, json: asJSON}
	if err := cmd.run(ctx, a, out, cmdArgs); err != nil {
		code := report(stderr, err)
		logger.L(ctx).Warn("Command failed",
			zap.String("command", name),
			zap.Int("exit_code", code),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return code
	}
	logger.L(ctx).Debug("Command finished",
		zap.String("command", name),
		zap.Duration("elapsed", time.Since(started)),
	)
	return exitOK
}

// report prints err and maps business rejections to their own exit code
func report(w io.Writer, err error) int {
	var de *shared.DomainError
	if errors.As(err, &de) {
		fmt.Fprintf(w, "rejected [%s]: %s\n", de.Code, de.Message)
		keys := make([]string, 0, len(de.Details))
		for k := range de.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, de.Details[k])
		}
		return exitRejected
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return exitFailure
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, `Inventory ledger

Usage:
  ledger [flags] <command> [arguments]

Commands:`)
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(w, "  %-10s %-44s %s\n", name, c.usage, c.help)
	}
	fmt.Fprintln(w, "  version    print the build version\n\nFlags:")
	fs.PrintDefaults()
	fmt.Fprintln(w, `
Environment Variables:
  ERP_DATABASE_DRIVER, ERP_DATABASE_HOST, ERP_DATABASE_PASSWORD, ERP_DATABASE_PATH,
  ERP_POSTING_NUMBERING, ERP_REDIS_HOST, ERP_LOG_LEVEL, ...`)
}
