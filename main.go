package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"moob/api"
	"moob/config"
	"moob/crypto"
	"moob/discovery"
	"moob/logger"
	"moob/nav"
	"moob/session"
	"moob/storage"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("moob", flag.ContinueOnError)
	global.SetOutput(stderr)
	server := global.String("server", "", "backend base URL (overrides config and .env)")
	discover := global.Bool("discover", false, "look up the backend on the local network via mDNS")
	metricsFile := global.String("metrics-file", "", "write client request metrics in Prometheus text format to this file")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: moob [global flags] <command> [command flags]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "commands: login, register, logout, whoami, send, sent, stats, journal, discover, fake-backend")
		fmt.Fprintln(stderr)
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	log := logger.New("moob")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command, rest := global.Arg(0), global.Args()[1:]
	switch command {
	case "discover":
		return exitCode(log, runDiscover(ctx, rest, stdout))
	case "fake-backend":
		return exitCode(log, runFakeBackend(ctx, rest, stdout, log))
	}

	handler, ok := commands[command]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		global.Usage()
		return 2
	}

	app, err := newApp(ctx, appOptions{
		serverURL:   *server,
		discover:    *discover,
		metricsFile: *metricsFile,
		stdout:      stdout,
		log:         log,
	})
	if err != nil {
		log.WithError(err).Error("startup failed")
		return 1
	}
	defer app.Close()

	return exitCode(log, handler(ctx, app, rest))
}

func exitCode(log *logrus.Entry, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	case errors.Is(err, errReported):
		return 1
	default:
		log.WithError(err).Error("command failed")
		return 1
	}
}

type appOptions struct {
	serverURL   string
	discover    bool
	metricsFile string
	stdout      io.Writer
	log         *logrus.Entry
}

// app holds the wired client components shared by every command.
type app struct {
	cfg         *config.ClientConfig
	log         *logrus.Entry
	stdout      io.Writer
	store       *storage.Store
	router      *nav.Router
	registry    *prometheus.Registry
	metricsFile string
	client      *api.Client
	session     *session.Store
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dataDir := filepath.Dir(cfgPath)

	baseURL := cfg.APIBaseURL
	switch {
	case opts.serverURL != "":
		baseURL = opts.serverURL
	case opts.discover:
		found, err := discovery.ResolveBaseURL(ctx, discovery.Config{})
		if err != nil {
			return nil, fmt.Errorf("discover backend: %w", err)
		}
		opts.log.WithField("base_url", found).Info("discovered backend")
		baseURL = found
	}

	cipher, err := crypto.NewTokenCipher(cfg.TokenKeyPath, cfg.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("prepare token cipher: %w", err)
	}

	store, dbPath, err := storage.Open(dataDir, cipher)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	opts.log.WithFields(logrus.Fields{"config": cfgPath, "database": dbPath}).Debug("storage ready")

	if pruned, err := store.PruneExpired(); err != nil {
		opts.log.WithError(err).Warn("prune submission journal")
	} else if pruned > 0 {
		opts.log.WithField("rows", pruned).Debug("pruned submission journal")
	}

	router := nav.NewRouter(nav.RouteRoot)
	registry := prometheus.NewRegistry()

	client, err := api.NewClient(api.Options{
		BaseURL:   baseURL,
		Tokens:    store,
		Navigator: router,
		Logger:    logger.New("api"),
		Metrics:   api.NewMetrics(registry),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sess, err := session.New(session.Options{
		Client:    client,
		Tokens:    store,
		Navigator: router,
		Logger:    logger.New("session"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	client.OnUnauthorized(sess.Expire)
	sess.Initialize(ctx)

	return &app{
		cfg:         cfg,
		log:         opts.log,
		stdout:      opts.stdout,
		store:       store,
		router:      router,
		registry:    registry,
		metricsFile: opts.metricsFile,
		client:      client,
		session:     sess,
	}, nil
}

// Close flushes metrics and closes the database.
func (a *app) Close() {
	if a.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
			a.log.WithError(err).Warn("write metrics file")
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("database close error")
	}
}

// enter applies the route guard for route. It returns false, after
// navigating to the fallback, when the route is not reachable.
func (a *app) enter(route nav.Route) bool {
	resolved := nav.Resolve(route, a.session.Authenticated())
	a.router.Navigate(resolved)
	return resolved == route
}
