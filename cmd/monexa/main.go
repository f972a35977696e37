// Command monexa is a terminal client for the Monexa finance API.
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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/panyam/monexa"
	"github.com/panyam/monexa/client"
	"github.com/panyam/monexa/internal/config"
	"github.com/panyam/monexa/internal/logger"
)

const usage = `usage: monexa [-config path] <command> [flags]

commands:
  login       -email <email> [-password <password>]
  logout
  whoami
  records     [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-category id] [-search text]
  summary     [-from YYYY-MM-DD] [-to YYYY-MM-DD]
  categories
  stats       [-from YYYY-MM-DD] [-to YYYY-MM-DD]
  export      -o <file|-> [-from YYYY-MM-DD] [-to YYYY-MM-DD]
`

// sessionEndedMessage is printed when the stored session can no longer be renewed
const sessionEndedMessage = "session ended, please log in again"

var errNotLoggedIn = errors.New("not logged in, run 'monexa login' first")

type app struct {
	api    *monexa.Client
	store  *client.CredentialStore
	logger *zap.Logger
	out    io.Writer
	errOut io.Writer
}

type command struct {
	run          func(ctx context.Context, a *app, args []string) error
	requiresAuth bool
}

var commands = map[string]command{
	"login":      {run: cmdLogin},
	"logout":     {run: cmdLogout},
	"whoami":     {run: cmdWhoami, requiresAuth: true},
	"records":    {run: cmdRecords, requiresAuth: true},
	"summary":    {run: cmdSummary, requiresAuth: true},
	"categories": {run: cmdCategories, requiresAuth: true},
	"stats":      {run: cmdStats, requiresAuth: true},
	"export":     {run: cmdExport, requiresAuth: true},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one CLI invocation and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("monexa", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "path to a YAML config file")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	log, err := logger.NewWithWriter(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer log.Sync()

	storage, cleanup, err := openStorage(ctx, cfg, log)
	defer cleanup()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	store := client.NewCredentialStore(storage, client.WithStoreLogger(log))
	d := client.NewDispatcher(cfg.BaseURL, store,
		client.WithHTTPClient(&http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
		client.WithRefreshThreshold(cfg.RefreshThreshold),
		client.WithRenewTimeout(cfg.RenewTimeout),
		client.WithLogger(log),
	)
	d.OnSessionEnded(func(string) {
		fmt.Fprintln(stderr, sessionEndedMessage)
	})

	a := &app{
		api:    monexa.NewClient(d, monexa.WithLogger(log)),
		store:  store,
		logger: log,
		out:    stdout,
		errOut: stderr,
	}

	if cmd.requiresAuth && !store.IsAuthenticated() {
		fmt.Fprintln(stderr, "error:", errNotLoggedIn)
		return 1
	}

	if err := cmd.run(ctx, a, global.Args()[1:]); err != nil {
		// the session-ended handler has already told the user
		if !errors.Is(err, client.ErrTokenRefreshFailed) {
			fmt.Fprintln(stderr, "error:", err)
		}
		return 1
	}
	return 0
}
