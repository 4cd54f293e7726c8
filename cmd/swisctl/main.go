package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"swisctl/pkg/actions"
	"swisctl/pkg/config"
	"swisctl/pkg/inventory"
	"swisctl/pkg/logsink"
	"swisctl/pkg/outcome"
	"swisctl/pkg/secret"
	"swisctl/pkg/swis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	code := outcome.Code(err)
	var exit interface{ ExitCode() int }
	if err != nil && !errors.As(err, &exit) {
		// step failures are already in the log; everything else is not
		fmt.Fprintf(os.Stderr, "swisctl: %v\n", err)
	}
	os.Exit(code)
}

// run executes one invocation and returns nil, an *outcome.ExitError carrying
// the status, or a plain error for problems found before any logging.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "seal" {
		return runSeal(args[1:], stdin, stdout, stderr)
	}

	// ══════════════════════════════════════════════════════════════
	// CONFIGURATION
	// ══════════════════════════════════════════════════════════════
	conf, err := config.Load(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// ══════════════════════════════════════════════════════════════
	// STRUCTURED LOGGING
	// ══════════════════════════════════════════════════════════════
	logger, closeLog := openLog(conf, stderr)
	defer closeLog()
	slog.SetDefault(logger)

	reporter := outcome.NewReporter(logger)
	action := conf.ActionKind()

	logger.Info("Run started", "component", "main", "action", action, "server", conf.Server)

	// ══════════════════════════════════════════════════════════════
	// CREDENTIAL AND SESSION
	// ══════════════════════════════════════════════════════════════
	httpClient, err := swis.NewHTTPClient(swis.TransportOptions{CAFile: conf.CAFile, Insecure: conf.Insecure})
	if err != nil {
		return reporter.Report(outcome.Abort(action, "", outcome.StatusClientUnavailable, "create client", err))
	}

	credential, err := secret.Reconstruct(conf.Key, conf.KeyDelimiter, conf.SecretFile, conf.Username)
	if err != nil {
		return reporter.Report(outcome.Abort(action, "", outcome.StatusClientUnavailable, "load credential", err))
	}

	session, err := swis.Open(conf.Server, credential, swis.WithHTTPClient(httpClient), swis.WithLogger(logger))
	if err != nil {
		return reporter.Report(outcome.Abort(action, "", outcome.StatusSessionFailed, "open session", err))
	}
	defer session.Close()

	if !session.Validate(ctx) {
		err := fmt.Errorf("%w: probe query against %s returned nothing", swis.ErrConnection, session.BaseURL())
		return reporter.Report(outcome.Abort(action, "", outcome.StatusSessionFailed, "validate session", err))
	}

	// ══════════════════════════════════════════════════════════════
	// ACTION
	// ══════════════════════════════════════════════════════════════
	// Preconditions fail in order: configuration, session, then resolution.
	host, err := inventory.LocalHostname(conf.Hostname, conf.ShortHostname)
	if err != nil {
		return reporter.Report(outcome.Abort(action, "", outcome.StatusResolutionFailed, actions.StepResolveNode, err))
	}
	logger.Info("Local host name", "component", "main", "host", host)

	executor := actions.NewExecutor(session, logger)
	result := executor.Execute(ctx, actions.Request{
		Kind:       action,
		Host:       host,
		Group:      conf.Group,
		City:       conf.City,
		Department: conf.Department,
		DryRun:     conf.DryRun,
	})
	return reporter.Report(result)
}

// openLog opens the run log. When the file cannot be opened the run continues
// with console logging only.
func openLog(conf *config.Config, console io.Writer) (*slog.Logger, func()) {
	level, err := logsink.ParseLevel(conf.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	sink, err := logsink.Open(logsink.Options{
		Dir:     conf.LogDir,
		File:    conf.LogFile,
		Level:   level,
		Console: console,
	})
	if err != nil {
		logger := slog.New(logsink.ConsoleHandler(console, &slog.HandlerOptions{Level: level}))
		logger.Warn("Log file unavailable, logging to console only", "component", "main", "error", err)
		return logger, func() {}
	}
	return sink.Logger, func() { sink.Close() }
}
