package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plabarre/agenda/internal/config"
	"github.com/plabarre/agenda/internal/store"
)

// ErrEmailTaken reports a registration against an existing account.
var ErrEmailTaken = errors.New("auth: email already registered")

// BannedError carries the ban reason to the API layer.
type BannedError struct {
	Reason string
	Until  *time.Time
}

func (e *BannedError) Error() string {
	if e.Reason == "" {
		return "auth: account banned"
	}
	return "auth: account banned: " + e.Reason
}

// Service implements registration, login and token refresh.
type Service struct {
	cfg    *config.Config
	store  *store.Store
	issuer *TokenIssuer
}

func NewService(cfg *config.Config, st *store.Store, issuer *TokenIssuer) *Service {
	return &Service{cfg: cfg, store: st, issuer: issuer}
}

// Issuer exposes the token issuer for middleware wiring.
func (s *Service) Issuer() *TokenIssuer { return s.issuer }

// Register creates an account and converts any invitations pending on the
// email into real grants and group memberships.
func (s *Service) Register(ctx context.Context, email, name, password string) (*store.User, error) {
	if _, err := s.store.Users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	user, err := s.store.Users.Create(ctx, store.User{
		Email:          email,
		Name:           name,
		HashedPassword: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	if err := s.resolveInvitations(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) resolveInvitations(ctx context.Context, user *store.User) error {
	invs, err := s.store.Invitations.ListByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("resolve invitations: %w", err)
	}
	for _, inv := range invs {
		if _, err := s.store.Access.CreateGrant(ctx, store.AccessGrant{
			CalendarID:    inv.CalendarID,
			SubCalendarID: inv.SubCalendarID,
			UserID:        &user.ID,
			Permission:    inv.Permission,
		}); err != nil {
			return fmt.Errorf("resolve invitations: %w", err)
		}
		if inv.GroupID != nil {
			if err := s.store.Groups.AddMember(ctx, *inv.GroupID, user.ID); err != nil {
				return fmt.Errorf("resolve invitations: %w", err)
			}
		}
		if err := s.store.Invitations.Delete(ctx, inv.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("resolve invitations: %w", err)
		}
	}
	return nil
}

// Login authenticates the email/password pair and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, TokenPair, error) {
	user, err := s.store.Users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, TokenPair{}, ErrBadCredentials
	}
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("login: %w", err)
	}
	if err := CheckPassword(user.HashedPassword, password); err != nil {
		return nil, TokenPair{}, ErrBadCredentials
	}
	user, err = s.checkBan(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}

	// The configured admin email is promoted on its first login.
	if s.cfg.Auth.AdminEmail != "" && user.Email == s.cfg.Auth.AdminEmail && !user.IsAdmin {
		if err := s.store.Users.SetAdmin(ctx, user.ID, true); err != nil {
			return nil, TokenPair{}, fmt.Errorf("login: %w", err)
		}
		user.IsAdmin = true
	}

	pair, err := s.issuer.Pair(user.ID)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("login: %w", err)
	}
	return user, pair, nil
}

// Refresh validates a refresh token and rotates the whole pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*store.User, TokenPair, error) {
	userID, err := s.issuer.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return nil, TokenPair{}, err
	}
	user, err := s.store.Users.GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, TokenPair{}, ErrInvalidToken
	}
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("refresh: %w", err)
	}
	user, err = s.checkBan(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issuer.Pair(user.ID)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("refresh: %w", err)
	}
	return user, pair, nil
}

// checkBan enforces an active ban and lifts one whose expiry has passed.
func (s *Service) checkBan(ctx context.Context, user *store.User) (*store.User, error) {
	if !user.IsBanned {
		return user, nil
	}
	if user.BanUntil != nil && time.Now().After(*user.BanUntil) {
		if err := s.store.Users.SetBan(ctx, user.ID, false, nil, nil); err != nil {
			return nil, fmt.Errorf("lift ban: %w", err)
		}
		user.IsBanned = false
		user.BanReason = nil
		user.BanUntil = nil
		return user, nil
	}
	var reason string
	if user.BanReason != nil {
		reason = *user.BanReason
	}
	return nil, &BannedError{Reason: reason, Until: user.BanUntil}
}
