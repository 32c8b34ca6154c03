package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"drawtica/internal/domain"
	"drawtica/internal/identity"
)

const usage = `usage: accounts <command> [flags]

commands:
  create  -email E [-name N] [-credits C]   create a verified account (password is prompted)
  list    [-limit N]                        list accounts, newest first
  credits -email E -set N                   set the credit balance
  tier    -email E -tier standard|elevated [-months M]
  delete  -email E -yes                     permanently delete an account`

type cli struct {
	accounts domain.AccountRepository
	out      io.Writer
	prompt   func(label string) (string, error)
	now      func() time.Time
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		return c.create(ctx, rest)
	case "list":
		return c.list(ctx, rest)
	case "credits":
		return c.credits(ctx, rest)
	case "tier":
		return c.tier(ctx, rest)
	case "delete":
		return c.delete(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (c *cli) create(ctx context.Context, args []string) error {
	fs := newFlags("create")
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	credits := fs.Int("credits", 3, "starting credits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}
	password, err := c.prompt("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if err := identity.CheckStrength(password); err != nil {
		return err
	}
	hash, err := identity.HashPassword(password)
	if err != nil {
		return err
	}
	acc := &domain.Account{
		Email:         *email,
		Name:          strings.TrimSpace(*name),
		PasswordHash:  hash,
		Credits:       *credits,
		Tier:          domain.TierStandard,
		EmailVerified: true,
	}
	if err := c.accounts.Create(ctx, acc); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	fmt.Fprintf(c.out, "created %s (%s) with %d credits\n", acc.Email, acc.ID, acc.Credits)
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := newFlags("list")
	limit := fs.Int("limit", 50, "maximum rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	accounts, err := c.accounts.List(ctx, *limit)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tCREDITS\tTIER\tEXPIRES\tVERIFIED")
	for _, a := range accounts {
		expires := "-"
		if a.TierExpiresAt != nil {
			expires = a.TierExpiresAt.UTC().Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%t\n", a.ID, a.Email, a.Credits, a.Tier, expires, a.EmailVerified)
	}
	return tw.Flush()
}

func (c *cli) lookup(ctx context.Context, email string) (*domain.Account, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("-email is required")
	}
	acc, err := c.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", email, err)
	}
	return acc, nil
}

// credits overwrites the balance. This is the administrative reset path; the
// request pipeline only ever debits through the guarded update.
func (c *cli) credits(ctx context.Context, args []string) error {
	fs := newFlags("credits")
	email := fs.String("email", "", "account email")
	set := fs.Int("set", -1, "new balance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *set < 0 {
		return errors.New("-set must be zero or more")
	}
	acc, err := c.lookup(ctx, *email)
	if err != nil {
		return err
	}
	if err := c.accounts.SetCredits(ctx, acc.ID, *set); err != nil {
		return fmt.Errorf("set credits: %w", err)
	}
	fmt.Fprintf(c.out, "%s: credits %d -> %d\n", acc.Email, acc.Credits, *set)
	return nil
}

func (c *cli) tier(ctx context.Context, args []string) error {
	fs := newFlags("tier")
	email := fs.String("email", "", "account email")
	tierFlag := fs.String("tier", "", "standard or elevated")
	months := fs.Int("months", 1, "elevated duration in months (0 = no expiry)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tier, ok := domain.ParseTier(*tierFlag)
	if !ok {
		return fmt.Errorf("unsupported tier %q", *tierFlag)
	}
	acc, err := c.lookup(ctx, *email)
	if err != nil {
		return err
	}
	var expires *time.Time
	if tier == domain.TierElevated && *months > 0 {
		t := c.now().UTC().AddDate(0, *months, 0)
		expires = &t
	}
	if err := c.accounts.SetTier(ctx, acc.ID, tier, expires); err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	if expires != nil {
		fmt.Fprintf(c.out, "%s: tier %s until %s\n", acc.Email, tier, expires.Format(time.DateOnly))
	} else {
		fmt.Fprintf(c.out, "%s: tier %s\n", acc.Email, tier)
	}
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	fs := newFlags("delete")
	email := fs.String("email", "", "account email")
	yes := fs.Bool("yes", false, "confirm deletion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("refusing to delete without -yes")
	}
	acc, err := c.lookup(ctx, *email)
	if err != nil {
		return err
	}
	if err := c.accounts.Delete(ctx, acc.ID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	fmt.Fprintf(c.out, "deleted %s (%s)\n", acc.Email, acc.ID)
	return nil
}
