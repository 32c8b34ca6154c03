package infra

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"drawtica/internal/migrations"
)

// RunMigrations applies the embedded goose migrations. goose drives
// database/sql, so it opens its own short-lived lib/pq handle instead of
// borrowing the pgx pool.
func RunMigrations(ctx context.Context, databaseURL string, logger Logger) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration db: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	goose.SetLogger(gooseLogger{logger: logger})

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err == nil {
		logger.Info().Int64("version", version).Msg("migrations applied")
	}
	return nil
}

type gooseLogger struct {
	logger Logger
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Fatal().Msgf(format, v...)
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Debug().Msgf(format, v...)
}
