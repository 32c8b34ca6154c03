package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"drawtica/internal/domain"
	"drawtica/internal/infra"
	"drawtica/internal/mailer"
)

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
)

type Options struct {
	Accounts        domain.AccountRepository
	Tokens          *TokenIssuer
	Mailer          mailer.Mailer
	StartingCredits int
	Logger          *infra.Logger
}

// Service implements registration, login, email verification and password
// reset on top of the account repository.
type Service struct {
	accounts        domain.AccountRepository
	tokens          *TokenIssuer
	mailer          mailer.Mailer
	startingCredits int
	logger          *infra.Logger
	now             func() time.Time
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Service{
		accounts:        opts.Accounts,
		tokens:          opts.Tokens,
		mailer:          opts.Mailer,
		startingCredits: opts.StartingCredits,
		logger:          logger,
		now:             time.Now,
	}
}

// Registration is the input of Register.
type Registration struct {
	Email    string
	Password string
	Name     string
}

// Session is an authenticated account with its bearer token.
type Session struct {
	Account *domain.Account
	Token   string
}

// Register creates an account with the starting credit balance and sends the
// verification email. A failed send is logged and does not undo the account.
func (s *Service) Register(ctx context.Context, in Registration) (*Session, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, domain.ErrMissingCredentials
	}
	if err := CheckStrength(in.Password); err != nil {
		return nil, err
	}
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	verifyToken, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(verifyTokenTTL)
	account := &domain.Account{
		Email:           email,
		Name:            strings.TrimSpace(in.Name),
		PasswordHash:    hash,
		Credits:         s.startingCredits,
		Tier:            domain.TierStandard,
		VerifyToken:     verifyToken,
		VerifyExpiresAt: &expires,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerification(ctx, account.Email, verifyToken); err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("identity: verification email failed")
	}

	token, err := s.tokens.IssueToken(account.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token}, nil
}

// FindAccountByEmail looks an account up case-insensitively.
func (s *Service) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
}

// Login checks the credentials. Unknown email and wrong password both yield
// domain.ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			VerifyCredential(password, dummyHash())
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if !VerifyCredential(password, account.PasswordHash) {
		return nil, domain.ErrUnauthorized
	}
	token, err := s.tokens.IssueToken(account.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token}, nil
}

// Authenticate resolves a bearer token to its account.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Account, error) {
	id, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	return account, err
}

// VerifyEmail marks the account owning token as verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*domain.Account, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrInvalidToken
	}
	return s.accounts.VerifyEmail(ctx, token, s.now())
}

// RequestPasswordReset stores a one hour reset token and mails the link. It
// returns nil for unknown emails so callers cannot tell which emails are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.FindAccountByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}
	token, err := newOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.accounts.SetResetToken(ctx, account.ID, token, s.now().Add(resetTokenTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, account.Email, token); err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("identity: reset email failed")
	}
	return nil
}

// ResetPassword replaces the password of the account holding an unexpired
// reset token and clears the token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if strings.TrimSpace(token) == "" {
		return domain.ErrInvalidToken
	}
	if err := CheckStrength(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.accounts.ResetPassword(ctx, token, hash, s.now())
}

// AccountByID loads the profile behind an authenticated request.
func (s *Service) AccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, id)
}
