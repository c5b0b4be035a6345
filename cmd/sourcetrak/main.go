package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/iliyamo/sourcetrak/internal/apiclient"
	"github.com/iliyamo/sourcetrak/internal/config"
	"github.com/iliyamo/sourcetrak/internal/session"
)

const usage = `usage: sourcetrak <command> [flags]

commands:
  signup    create an account and sign in
  login     sign in
  logout    sign out
  whoami    show the signed-in user
  submit    record farm data on a batch
  batch     show a batch and its history
  history   list your contributions
  qr        write a batch QR code as PNG
  share     copy a batch share link`

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"signup":  cmdSignup,
	"login":   cmdLogin,
	"logout":  cmdLogout,
	"whoami":  cmdWhoami,
	"submit":  cmdSubmit,
	"batch":   cmdBatch,
	"history": cmdHistory,
	"qr":      cmdQR,
	"share":   cmdShare,
}

// app is what every command shares: configuration, the backend client and
// the session persisted under the state directory.
type app struct {
	cfg   config.CLIConfig
	api   *apiclient.Client
	store *session.Store
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.LoadCLIConfig()
	api := apiclient.New(cfg.APIBaseURL, cfg.APITimeout)
	store := session.New(api, session.NewFileSnapshot(cfg.StateDir))
	store.Load(ctx)

	if err := cmd(ctx, &app{cfg: cfg, api: api, store: store}, os.Args[2:]); err != nil {
		if errors.Is(err, errNotSignedIn) {
			fmt.Fprintln(os.Stderr, "not signed in; run `sourcetrak login` first")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
