package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"homedash/internal/auth"
	"homedash/internal/blob"
	"homedash/internal/config"
	"homedash/internal/dashboard"
	"homedash/internal/ics"
	appLog "homedash/internal/log"
	"homedash/internal/scheduler"
	"homedash/internal/store"
	"homedash/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath   string
	listen       string
	once         bool
	importDir    string
	hashPassword string
}

func main() {
	flags := parseFlags()

	if flags.hashPassword != "" {
		hash, err := auth.HashPassword(flags.hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	loadDotEnv(".env.local", ".env")

	if err := run(flags); err != nil {
		appLog.Error("homedash failed", err)
		os.Exit(1)
	}
}

// loadDotEnv loads env files in order. Variables already set win, so the
// first file has the highest precedence. Missing files are skipped.
func loadDotEnv(files ...string) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			appLog.Warn("failed to load env file", "file", f, "err", err.Error())
		}
	}
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("homedash starting", "version", version)

	loc := conf.Location()
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"db_driver", conf.Database.Driver,
		"cache_backend", conf.Cache.Backend,
		"sources", len(conf.Sources),
		"proxy", conf.Proxy() != "",
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.Open(ctx, conf.Database.Driver, conf.Database.DSN)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	directory := auth.NewDirectory(auth.Options{
		AdminUser:   conf.Auth.AdminUser,
		AdminPass:   conf.Auth.AdminPass,
		FamilyUsers: conf.Auth.FamilyUsers,
		Secret:      conf.Auth.Secret,
		TokenTTL:    conf.Auth.TokenTTL,
	})
	if !directory.HasSecret() {
		appLog.Warn("AUTH_SECRET is not set; logins will fail")
	}

	st := store.New(db, store.NewCalendars(directory.Users(), conf.Calendars))
	defer func() {
		if err := st.Close(); err != nil {
			appLog.Error("closing store", err)
		}
	}()

	if flags.importDir != "" {
		report, err := st.Import(ctx, flags.importDir)
		if err != nil {
			return err
		}
		appLog.Info("import complete", "dir", flags.importDir, "events", report.Events, "todos", report.Todos, "settings", report.Settings)
		return nil
	}

	blobs, err := blob.Open(blob.Options{
		Backend:  conf.Cache.Backend,
		Dir:      conf.Cache.Dir,
		BoltPath: conf.Cache.BoltPath,
		RedisURL: conf.Cache.RedisURL,
		Prefix:   conf.Cache.Prefix,
	})
	if err != nil {
		return fmt.Errorf("opening calendar cache: %w", err)
	}
	defer func() {
		if err := blobs.Close(); err != nil {
			appLog.Error("closing calendar cache", err)
		}
	}()

	specs := make([]ics.SourceSpec, 0, len(conf.Sources))
	for _, src := range conf.Sources {
		specs = append(specs, ics.SourceSpec{ID: src.ID, URL: src.URL, TTL: src.TTL})
	}
	cache := ics.NewSourceCache(ics.NewFetcher(conf.Proxy()), blobs, specs, loc)

	sched, err := scheduler.New(cache, conf.RefreshCron, loc)
	if err != nil {
		return err
	}

	if flags.once {
		failed := sched.RunOnce(ctx)
		appLog.Info("refresh complete", "sources", len(specs), "failed", len(failed))
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	srv := web.NewServer(web.Deps{
		Store:     st,
		Calendars: cache,
		Dashboard: dashboard.New(st.Events, st.Settings, cache, loc).WithWeekMax(conf.WeekMaxEvents),
		Auth:      directory,
	})
	if err := web.Serve(ctx, conf.Listen, srv.Handler()); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	appLog.Info("homedash exiting")
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/homedash/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh every calendar source once and exit")
	flag.StringVar(&cfg.importDir, "import", "", "Import legacy events.json, todos.json and calendar-settings.json from DIR and exit")
	flag.StringVar(&cfg.hashPassword, "hash-password", "", "Print an argon2id hash of the given password and exit")

	flag.Parse()

	return cfg
}
