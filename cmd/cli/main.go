// Command mediadesk is a terminal front end for the media dashboard backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/api"
	"github.com/and161185/mediadesk/internal/config"
	"github.com/and161185/mediadesk/internal/errs"
	"github.com/and161185/mediadesk/internal/logging"
	"github.com/and161185/mediadesk/internal/service"
)

func usage() {
	fmt.Fprintf(os.Stderr, `mediadesk CLI
Usage:
  mediadesk [-config file] [-base-url URL] [-storage memory|file|postgres] <cmd> [args]

Commands:
  version
  login          -email <email> -password <password>      (saves token)
  logout
  whoami
  list           -kind blog|video|podcast|publication [-page N] [-limit N]
                 [-sort field] [-order asc|desc] [-search text]
  pinned         -kind <kind>
  delete         -kind <kind> -id <id>
  pin            -kind <kind> -id <id> [-off]
  upload         -kind <kind> -title <title> -file <path> [-cover <path>]
  stats
  suggestions
  suggest-add    -text <text> [-author <name>]
  suggest-rm     -id <id>
  notifications  [-page N]
  read           -id <id> | -all
  social
  live           -podcast <id> -file <audio> [-chunk bytes] [-every dur]
  live-stop      -podcast <id>
`)
	os.Exit(2)
}

var (
	version   = "dev"
	buildDate = "unknown"
)

// command runs one subcommand against an assembled dashboard.
type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":         cmdLogin,
	"logout":        cmdLogout,
	"whoami":        cmdWhoami,
	"list":          cmdList,
	"pinned":        cmdPinned,
	"delete":        cmdDelete,
	"pin":           cmdPin,
	"upload":        cmdUpload,
	"stats":         cmdStats,
	"suggestions":   cmdSuggestions,
	"suggest-add":   cmdSuggestAdd,
	"suggest-rm":    cmdSuggestRemove,
	"notifications": cmdNotifications,
	"read":          cmdRead,
	"social":        cmdSocial,
	"live":          cmdLive,
	"live-stop":     cmdLiveStop,
}

// app is what every command receives.
type app struct {
	cfg *config.Config
	d   *service.Dashboard
	log *zap.Logger
	out io.Writer
}

func main() {
	cfgPath := flag.String("config", os.Getenv("MEDIADESK_CONFIG"), "config file (YAML)")
	baseURL := flag.String("base-url", "", "backend base URL (overrides config)")
	driver := flag.String("storage", "", "storage driver: memory, file or postgres (overrides config)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	name := flag.Arg(0)
	if name == "version" {
		fmt.Printf("mediadesk %s (%s)\n", version, buildDate)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		usage()
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail(nil, err)
	}
	if *baseURL != "" {
		cfg.API.BaseURL = *baseURL
	}
	if *driver != "" {
		cfg.Storage.Driver = *driver
	}
	if err := cfg.Validate(); err != nil {
		fail(nil, err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fail(nil, err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStorage(ctx, cfg.Storage, log)
	if err != nil {
		fail(nil, err)
	}
	defer closeStore()

	d, err := service.Build(service.Config{
		API: api.Config{
			BaseURL:       cfg.API.BaseURL,
			Prefix:        cfg.API.Prefix,
			Timeout:       cfg.API.Timeout,
			UploadTimeout: cfg.API.UploadTimeout,
		},
		PageSize: cfg.API.PageSize,
		Log:      log,
	}, st)
	if err != nil {
		fail(nil, err)
	}
	defer d.Close()

	if err := cmd(ctx, &app{cfg: cfg, d: d, log: log, out: os.Stdout}, flag.Args()[1:]); err != nil {
		fail(d, err)
	}
}

// errUsage marks a command-line mistake; fail exits 2 for it.
var errUsage = errors.New("usage")

// fail prints the message a user should see and exits non-zero.
func fail(d *service.Dashboard, err error) {
	msg := err.Error()
	if d != nil {
		msg = d.Notice(err)
	}
	fmt.Fprintln(os.Stderr, msg)
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if errors.Is(err, errs.ErrNotAuthenticated) {
		fmt.Fprintln(os.Stderr, "run: mediadesk login -email <email> -password <password>")
	}
	os.Exit(1)
}
