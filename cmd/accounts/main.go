package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"drawtica/internal/adapter/repo"
	"drawtica/internal/infra"
)

func main() {
	_ = godotenv.Load()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "accounts").Logger()
	cli := &cli{
		accounts: repo.NewAccountRepository(infra.NewSQLRunner(pool, logger)),
		out:      os.Stdout,
		prompt:   promptPassword,
		now:      time.Now,
	}
	if err := cli.run(ctx, os.Args[1:]); err != nil {
		exitWithError(err)
	}
}

// promptPassword reads without echo on a terminal and a plain line otherwise,
// so scripts can pipe the password in.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, label)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(raw), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "accounts: %v\n", err)
	os.Exit(1)
}
