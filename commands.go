package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"moob/composer"
	"moob/discovery"
	"moob/fakebackend"
	"moob/history"
	"moob/models"
	"moob/nav"
	"moob/ui"
)

var (
	// errUsage marks a command-line mistake already explained to the user.
	errUsage = errors.New("usage error")
	// errReported marks a failure already rendered to stdout.
	errReported = errors.New("failure reported")
)

type commandFunc func(ctx context.Context, a *app, args []string) error

var commands = map[string]commandFunc{
	"login":    runLogin,
	"register": runRegister,
	"logout":   runLogout,
	"whoami":   runWhoami,
	"send":     runSend,
	"sent":     runSent,
	"stats":    runStats,
	"journal":  runJournal,
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func secretFromEnv(value, envKey string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envKey)
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (or MOOB_PASSWORD)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if !a.enter(nav.RouteLogin) {
		fmt.Fprintln(a.stdout, ui.Session(a.session.State()))
		return nil
	}
	a.session.ClearError()

	if err := a.session.Login(ctx, *email, secretFromEnv(*password, "MOOB_PASSWORD")); err != nil {
		fmt.Fprintln(a.stdout, ui.Session(a.session.State()))
		a.log.WithError(err).Debug("login failed")
		return errReported
	}
	fmt.Fprintln(a.stdout, ui.Session(a.session.State()))
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("register")
	username := fs.String("username", "", "display name (3-30 characters)")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password, at least 7 characters with a letter and a digit (or MOOB_PASSWORD)")
	confirm := fs.String("confirm", "", "password confirmation (defaults to -password)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if !a.enter(nav.RouteRegister) {
		fmt.Fprintln(a.stdout, ui.Session(a.session.State()))
		return nil
	}
	a.session.ClearError()

	pw := secretFromEnv(*password, "MOOB_PASSWORD")
	confirmation := *confirm
	if confirmation == "" {
		confirmation = pw
	}

	if err := a.session.RegisterConfirmed(ctx, *username, *email, pw, confirmation); err != nil {
		fmt.Fprintln(a.stdout, ui.Session(a.session.State()))
		a.log.WithError(err).Debug("registration failed")
		return errReported
	}
	fmt.Fprintln(a.stdout, ui.Session(a.session.State()))
	return nil
}

func runLogout(_ context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("logout"), args); err != nil {
		return err
	}
	a.session.Logout()
	fmt.Fprintln(a.stdout, ui.Session(a.session.State()))
	return nil
}

func runWhoami(_ context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("whoami"), args); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, ui.Session(a.session.State()))
	if !a.session.Authenticated() {
		return errReported
	}
	return nil
}

func runSend(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("send")
	platform := fs.String("platform", string(models.Platforms[0]), "telegram, slack, discord or whatsapp")
	content := fs.String("content", "", "message text (use - to read stdin)")
	to := fs.String("to", "", "recipients separated by commas, spaces or newlines")
	file := fs.String("file", "", "optional attachment path")
	delay := fs.Duration("redirect-delay", composer.DefaultRedirectDelay, "pause before showing sent messages")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if !a.requireSession(nav.RouteSendMessage) {
		return errReported
	}

	body := *content
	if body == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read content from stdin: %w", err)
		}
		body = string(raw)
	}

	comp, err := composer.New(composer.Options{
		Sender:            a.client,
		Navigator:         a.router,
		Journal:           a.store,
		Logger:            a.log.WithField("view", "composer"),
		MaxFileSizeBytes:  a.cfg.MaxFileSizeBytes(),
		AllowedMediaTypes: a.cfg.AllowedMediaTypes,
		RedirectDelay:     *delay,
	})
	if err != nil {
		return err
	}
	defer comp.Close()

	comp.SetPlatform(models.Platform(strings.ToLower(strings.TrimSpace(*platform))))
	comp.SetContent(body)
	comp.SetRecipientsText(*to)

	if *file != "" {
		att, err := composer.LoadAttachment(*file)
		if err != nil {
			return err
		}
		if err := comp.AttachFile(att); err != nil {
			fmt.Fprintln(a.stdout, ui.ComposerStatus(comp.Status()))
			return errReported
		}
	}

	if err := comp.Submit(ctx); err != nil {
		fmt.Fprintln(a.stdout, ui.ComposerStatus(comp.Status()))
		a.reportExpiry()
		return errReported
	}
	fmt.Fprintln(a.stdout, ui.ComposerStatus(comp.Status()))

	if !a.awaitRoute(ctx, nav.RouteSentMessages, *delay+time.Second) {
		return nil
	}
	return a.showSent(ctx, 0)
}

func runSent(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("sent")
	offset := fs.Int("offset", 0, "first message to show")
	page := fs.Int("page", 0, "page number (overrides -offset)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if !a.requireSession(nav.RouteSentMessages) {
		return errReported
	}

	start := *offset
	if *page > 0 {
		start = (*page - 1) * a.cfg.PageSize
	}
	return a.showSent(ctx, start)
}

func runStats(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("stats"), args); err != nil {
		return err
	}
	if !a.requireSession(nav.RouteDashboard) {
		return errReported
	}

	view, err := history.NewStatsView(a.client)
	if err != nil {
		return err
	}
	fetchErr := view.Fetch(ctx)
	fmt.Fprint(a.stdout, ui.Stats(view.State()))
	if fetchErr != nil {
		a.reportExpiry()
		return errReported
	}
	return nil
}

func runJournal(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("journal")
	limit := fs.Int("limit", 20, "entries to show")
	offset := fs.Int("offset", 0, "entries to skip")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	entries, err := a.store.ListSubmissions(*limit, *offset)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, ui.Journal(entries))
	return nil
}

func runDiscover(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("discover")
	timeout := fs.Duration("timeout", discovery.DefaultScanTimeout, "how long to listen for advertisements")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	backends, err := discovery.Lookup(ctx, discovery.Config{ScanTimeout: *timeout})
	if err != nil {
		return err
	}
	if len(backends) == 0 {
		fmt.Fprintln(stdout, discovery.ErrNoBackend.Error())
		return errReported
	}
	for _, backend := range backends {
		fmt.Fprintf(stdout, "%s\t%s\n", backend.Name, backend.BaseURL())
	}
	return nil
}

func runFakeBackend(ctx context.Context, args []string, stdout io.Writer, log *logrus.Entry) error {
	fs := newFlagSet("fake-backend")
	addr := fs.String("addr", "127.0.0.1:3000", "listen address")
	advertise := fs.Bool("advertise", false, "advertise the backend via mDNS")
	name := fs.String("name", "moob-fake", "mDNS instance name")
	demoEmail := fs.String("demo-email", "", "create a demo account with this email")
	demoPassword := fs.String("demo-password", "secret12", "demo account password")
	seed := fs.Int("seed", 0, "sent messages to seed for the demo account")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	backend := fakebackend.New()
	if *demoEmail != "" {
		username, _, _ := strings.Cut(*demoEmail, "@")
		userID := backend.AddUser(username, *demoEmail, *demoPassword)
		backend.SeedMessages(userID, *seed)
	}

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", *addr, err)
	}

	if *advertise {
		port := listener.Addr().(*net.TCPAddr).Port
		advertiser, err := discovery.Advertise(discovery.Config{InstanceName: *name, Port: port})
		if err != nil {
			log.WithError(err).Warn("mDNS advertisement failed")
		} else {
			defer advertiser.Stop()
		}
	}

	srv := &http.Server{
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(stdout, "fake backend listening on http://%s (press Ctrl+C to stop)\n", listener.Addr())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requireSession enters route, printing a hint when the guard bounces the
// user to login.
func (a *app) requireSession(route nav.Route) bool {
	if a.enter(route) {
		return true
	}
	fmt.Fprintln(a.stdout, ui.Session(a.session.State()))
	fmt.Fprintln(a.stdout, "run `moob login` first")
	return false
}

// reportExpiry prints a hint when the last request ended the session.
func (a *app) reportExpiry() {
	if !a.session.Authenticated() && a.router.Current() == nav.RouteLogin {
		fmt.Fprintln(a.stdout, "session expired, run `moob login` again")
	}
}

// awaitRoute blocks until the router reports route, the timeout passes or
// ctx ends.
func (a *app) awaitRoute(ctx context.Context, route nav.Route, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case got := <-a.router.Events():
			if got == route {
				return true
			}
		case <-timer.C:
			return a.router.Current() == route
		case <-ctx.Done():
			return false
		}
	}
}

func (a *app) showSent(ctx context.Context, offset int) error {
	pager, err := history.NewPager(history.Options{
		Fetcher: a.client,
		Limit:   a.cfg.PageSize,
		Logger:  a.log.WithField("view", "history"),
	})
	if err != nil {
		return err
	}

	fetchErr := pager.GoTo(ctx, offset)
	fmt.Fprint(a.stdout, ui.SentPage(pager.State()))
	if fetchErr != nil {
		a.reportExpiry()
		return errReported
	}
	return nil
}
