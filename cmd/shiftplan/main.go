package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"shiftplan/internal/calendar"
	"shiftplan/internal/config"
	"shiftplan/internal/console"
	appLog "shiftplan/internal/log"
	"shiftplan/internal/session"
	"shiftplan/internal/store"
	"shiftplan/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	console    bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	} else {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}
	defer appLog.Sync()

	appLog.Info("shiftplan starting", "version", "0.1.0")

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc, fallback := conf.Location()
	if fallback {
		appLog.Warn("unknown timezone; using local time", "timezone", conf.Timezone, "local", loc.String())
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"preset_months", conf.PresetMonths,
		"single_calendar", conf.SingleCalendar,
		"grant_on_request", conf.Calendar.Grants(),
		"store_driver", conf.Store.Driver,
		"calendar_dir", conf.Calendar.Dir,
		"calendars", len(conf.Calendar.Calendars),
		"console", flags.console,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, conf.Store)
	if err != nil {
		appLog.Error("failed to open template store", err, "driver", conf.Store.Driver)
		os.Exit(1)
	}
	defer st.Close()

	var (
		gate calendar.Gate
		tty  *console.Terminal
	)
	if flags.console {
		tty = console.NewTerminal(os.Stdin, os.Stdout, console.IsTerminal(os.Stdin))
		gate = console.NewPromptGate(tty, conf.Calendar.Authorized)
	} else {
		gate = calendar.NewStaticGate(conf.Calendar.Authorized, conf.Calendar.Grants())
	}

	sink := calendar.NewDirSink(conf.Calendar.Dir, conf.Calendar.Calendars, gate)
	importer := &calendar.Importer{
		Sink:           sink,
		Gate:           gate,
		Location:       loc,
		SingleCalendar: conf.SingleCalendar,
	}
	sess := session.New(st, importer, session.Options{
		Location:     loc,
		PresetMonths: conf.PresetMonths,
	})
	defer sess.Close()

	if flags.console {
		done := make(chan error, 1)
		go func() { done <- console.NewShell(sess, tty).Run(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				appLog.Error("console shell failed", err)
			}
		case <-ctx.Done():
			appLog.Info("signal received, shutting down")
		}
	} else if err := web.StartServer(ctx, conf, sess, sink); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
	}

	appLog.Info("shiftplan exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./shiftplan.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.console, "console", false, "Run the terminal wizard instead of the HTTP server")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
