package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinoosan/filmorate/internal/config"
	"github.com/tinoosan/filmorate/internal/filmorate"
	"github.com/tinoosan/filmorate/internal/httpapi"
	"github.com/tinoosan/filmorate/internal/logging"
	"github.com/tinoosan/filmorate/internal/service/film"
	"github.com/tinoosan/filmorate/internal/service/reference"
	"github.com/tinoosan/filmorate/internal/service/user"
	"github.com/tinoosan/filmorate/internal/storage/memory"
	pgstore "github.com/tinoosan/filmorate/internal/storage/postgres"
	sqlitestore "github.com/tinoosan/filmorate/internal/storage/sqlite"
)

// backend is the union every storage implementation satisfies.
type backend interface {
	httpapi.FilmStore
	httpapi.UserStore
	reference.Repo
}

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("filmorate exited", "err", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeFn, err := openBackend(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if cfg.Dev.Seed {
		films, users, err := seedDev(ctx, store, logger)
		if err != nil {
			logger.Error("dev seed failed", "err", err)
		} else {
			logDevSeed(logger, cfg.Database.Driver, films, users)
			printDevSeedBanner(films, users)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.New(store, store, store, logger).Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("filmorate listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		logger.Info("filmorate stopped")
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// openBackend opens the configured store and applies the schema when requested.
func openBackend(ctx context.Context, db config.DatabaseConfig, logger *slog.Logger) (backend, func(), error) {
	switch db.Driver {
	case config.DriverPostgres:
		pg, err := pgstore.Open(ctx, db.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if db.InitSchema {
			if err := pg.InitSchema(ctx); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		logger.Info("storage backend: postgres")
		return pg, pg.Close, nil
	case config.DriverSQLite:
		lite, err := sqlitestore.Open(ctx, db.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if db.InitSchema {
			if err := lite.InitSchema(ctx); err != nil {
				lite.Close()
				return nil, nil, err
			}
		}
		logger.Info("storage backend: sqlite", "path", db.SQLitePath)
		return lite, func() { _ = lite.Close() }, nil
	default:
		logger.Info("storage backend: memory")
		return memory.New(), func() {}, nil
	}
}

// seedDev creates a few users, films, friendships and likes through the services
// so the usual rules apply to sample data too.
func seedDev(ctx context.Context, store backend, logger *slog.Logger) ([]filmorate.Film, []filmorate.User, error) {
	userSvc := user.New(store, store, logger)
	filmSvc := film.New(store, store, store, store, logger)

	day := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	var users []filmorate.User
	for _, u := range []filmorate.User{
		{Email: "ann@example.com", Login: "ann", Name: "Ann", Birthday: day(1990, time.March, 14)},
		{Email: "bob@example.com", Login: "bob", Birthday: day(1985, time.July, 2)},
		{Email: "cy@example.com", Login: "cy", Name: "Cy"},
	} {
		created, err := userSvc.Create(ctx, u)
		if err != nil {
			return nil, nil, err
		}
		users = append(users, created)
	}

	var films []filmorate.Film
	for _, f := range []filmorate.Film{
		{Name: "Arrival of a Train", Description: "Fifty seconds of a train pulling into La Ciotat.", ReleaseDate: *day(1896, time.January, 25), Duration: 1, Mpa: filmorate.Mpa{ID: 1}, Genres: []filmorate.Genre{{ID: 5}}},
		{Name: "Spirited Away", Description: "A girl works in a bathhouse for spirits.", ReleaseDate: *day(2001, time.July, 20), Duration: 125, Mpa: filmorate.Mpa{ID: 2}, Genres: []filmorate.Genre{{ID: 3}, {ID: 2}}},
		{Name: "Heat", Description: "A detective hunts a crew of professional thieves.", ReleaseDate: *day(1995, time.December, 15), Duration: 170, Mpa: filmorate.Mpa{ID: 4}, Genres: []filmorate.Genre{{ID: 4}, {ID: 6}}},
	} {
		created, err := filmSvc.Create(ctx, f)
		if err != nil {
			return nil, nil, err
		}
		films = append(films, created)
	}

	for _, pair := range [][2]int{{0, 1}, {0, 2}, {1, 2}} {
		if err := userSvc.AddFriend(ctx, users[pair[0]].ID, users[pair[1]].ID); err != nil {
			return nil, nil, err
		}
	}
	for _, like := range [][2]int{{1, 0}, {1, 1}, {1, 2}, {2, 0}} {
		if err := filmSvc.AddLike(ctx, films[like[0]].ID, users[like[1]].ID); err != nil {
			return nil, nil, err
		}
	}
	return films, users, nil
}

// logDevSeed emits structured logs with useful IDs
func logDevSeed(l *slog.Logger, backend string, films []filmorate.Film, users []filmorate.User) {
	ids := map[string]int64{}
	for _, u := range users {
		ids["user_"+u.Login] = u.ID
	}
	for i, f := range films {
		ids[fmt.Sprintf("film_%d", i+1)] = f.ID
	}
	l.Info("DEV seed ("+backend+")", "films", len(films), "users", len(users), "ids", ids)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(films []filmorate.Film, users []filmorate.User) {
	fmt.Println("==================== DEV SEED ====================")
	for _, u := range users {
		fmt.Printf("user_id: %d (%s)\n", u.ID, u.Login)
	}
	for _, f := range films {
		fmt.Printf("film_id: %d (%s)\n", f.ID, f.Name)
	}
	fmt.Println("==================================================")
}
