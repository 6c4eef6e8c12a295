package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/five82/squint/internal/app"
)

const usage = `usage: squint [-config path] <command> [flags]

commands:
  serve              run the poller and the HTTP API
  top [-remote]      run the terminal dashboard
  refresh            refresh once and print what was processed
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("squint", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "config path (default ~/.config/squint/config.toml)")
	prefsPath := global.String("prefs", "", "dashboard prefs path (default ~/.config/squint/prefs.toml)")
	if err := global.Parse(args); err != nil {
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{ConfigPath: *configPath, PrefsPath: *prefsPath}
	cmd, cmdArgs := rest[0], rest[1:]

	var err error
	switch cmd {
	case "serve":
		err = app.Serve(ctx, opts)
	case "top":
		fs := flag.NewFlagSet("top", flag.ContinueOnError)
		fs.SetOutput(stderr)
		remote := fs.Bool("remote", false, "read from a running squint serve at api_bind")
		if err := fs.Parse(cmdArgs); err != nil {
			return 2
		}
		opts.Remote = *remote
		err = app.Top(ctx, opts)
	case "refresh":
		err = app.RefreshOnce(ctx, opts, stdout)
	default:
		fmt.Fprintf(stderr, "squint: unknown command %q\n", cmd)
		global.Usage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "squint: %v\n", err)
		return 1
	}
	return 0
}
