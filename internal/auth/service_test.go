package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plabarre/agenda/internal/config"
	"github.com/plabarre/agenda/internal/permission"
	"github.com/plabarre/agenda/internal/store"
)

type fakeUsers struct {
	store.UserRepository
	byEmail  map[string]*store.User
	setAdmin []uuid.UUID
	setBan   []uuid.UUID
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*store.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, user store.User) (*store.User, error) {
	user.ID = uuid.New()
	f.byEmail[user.Email] = &user
	return &user, nil
}

func (f *fakeUsers) SetAdmin(_ context.Context, id uuid.UUID, admin bool) error {
	f.setAdmin = append(f.setAdmin, id)
	return nil
}

func (f *fakeUsers) SetBan(_ context.Context, id uuid.UUID, banned bool, reason *string, until *time.Time) error {
	f.setBan = append(f.setBan, id)
	return nil
}

type fakeAccess struct {
	store.AccessRepository
	grants []store.AccessGrant
}

func (f *fakeAccess) CreateGrant(_ context.Context, g store.AccessGrant) (*store.AccessGrant, error) {
	g.ID = uuid.New()
	f.grants = append(f.grants, g)
	return &g, nil
}

type fakeGroups struct {
	store.GroupRepository
	added map[uuid.UUID][]uuid.UUID
}

func (f *fakeGroups) AddMember(_ context.Context, groupID, userID uuid.UUID) error {
	if f.added == nil {
		f.added = make(map[uuid.UUID][]uuid.UUID)
	}
	f.added[groupID] = append(f.added[groupID], userID)
	return nil
}

type fakeInvitations struct {
	store.InvitationRepository
	byEmail map[string][]store.PendingInvitation
	deleted []uuid.UUID
}

func (f *fakeInvitations) ListByEmail(_ context.Context, email string) ([]store.PendingInvitation, error) {
	return f.byEmail[email], nil
}

func (f *fakeInvitations) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestService(users *fakeUsers, access *fakeAccess, groups *fakeGroups, invs *fakeInvitations) *Service {
	cfg := &config.Config{}
	cfg.Auth.AdminEmail = "root@example.org"
	st := &store.Store{
		Users:       users,
		Access:      access,
		Groups:      groups,
		Invitations: invs,
	}
	return NewService(cfg, st, newTestIssuer())
}

func TestRegisterResolvesInvitations(t *testing.T) {
	users := &fakeUsers{byEmail: map[string]*store.User{}}
	access := &fakeAccess{}
	groups := &fakeGroups{}
	calID := uuid.New()
	groupID := uuid.New()
	invID := uuid.New()
	invs := &fakeInvitations{byEmail: map[string][]store.PendingInvitation{
		"new@example.org": {{
			ID:         invID,
			CalendarID: calID,
			Email:      "new@example.org",
			Permission: permission.ModifyOwn,
			GroupID:    &groupID,
		}},
	}}
	svc := newTestService(users, access, groups, invs)

	user, err := svc.Register(context.Background(), "new@example.org", "New User", "passw0rd!")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if len(access.grants) != 1 {
		t.Fatalf("created %d grants, want 1", len(access.grants))
	}
	g := access.grants[0]
	if g.CalendarID != calID || g.UserID == nil || *g.UserID != user.ID || g.Permission != permission.ModifyOwn {
		t.Fatalf("grant %+v does not match invitation", g)
	}
	if got := groups.added[groupID]; len(got) != 1 || got[0] != user.ID {
		t.Fatalf("group membership %v, want [%s]", got, user.ID)
	}
	if len(invs.deleted) != 1 || invs.deleted[0] != invID {
		t.Fatalf("deleted invitations %v, want [%s]", invs.deleted, invID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := &fakeUsers{byEmail: map[string]*store.User{
		"dup@example.org": {ID: uuid.New(), Email: "dup@example.org"},
	}}
	svc := newTestService(users, &fakeAccess{}, &fakeGroups{}, &fakeInvitations{})

	if _, err := svc.Register(context.Background(), "dup@example.org", "Dup", "pw"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("got %v, want ErrEmailTaken", err)
	}
}

func TestLogin(t *testing.T) {
	hashed, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	users := &fakeUsers{byEmail: map[string]*store.User{
		"a@example.org": {ID: uuid.New(), Email: "a@example.org", HashedPassword: hashed},
	}}
	svc := newTestService(users, &fakeAccess{}, &fakeGroups{}, &fakeInvitations{})

	user, pair, err := svc.Login(context.Background(), "a@example.org", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("login issued empty token pair")
	}
	if got, err := svc.issuer.Verify(pair.AccessToken, TokenAccess); err != nil || got != user.ID {
		t.Fatalf("access token subject %s err %v, want %s", got, err, user.ID)
	}

	if _, _, err := svc.Login(context.Background(), "a@example.org", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password: got %v, want ErrBadCredentials", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.org", "x"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("unknown email: got %v, want ErrBadCredentials", err)
	}
}

func TestLoginPromotesAdminEmail(t *testing.T) {
	hashed, _ := HashPassword("pw")
	u := &store.User{ID: uuid.New(), Email: "root@example.org", HashedPassword: hashed}
	users := &fakeUsers{byEmail: map[string]*store.User{u.Email: u}}
	svc := newTestService(users, &fakeAccess{}, &fakeGroups{}, &fakeInvitations{})

	user, _, err := svc.Login(context.Background(), u.Email, "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !user.IsAdmin {
		t.Fatal("admin email was not promoted")
	}
	if len(users.setAdmin) != 1 {
		t.Fatalf("SetAdmin called %d times, want 1", len(users.setAdmin))
	}
}

func TestLoginBanned(t *testing.T) {
	hashed, _ := HashPassword("pw")
	reason := "spam"
	users := &fakeUsers{byEmail: map[string]*store.User{
		"b@example.org": {ID: uuid.New(), Email: "b@example.org", HashedPassword: hashed, IsBanned: true, BanReason: &reason},
	}}
	svc := newTestService(users, &fakeAccess{}, &fakeGroups{}, &fakeInvitations{})

	_, _, err := svc.Login(context.Background(), "b@example.org", "pw")
	var banned *BannedError
	if !errors.As(err, &banned) {
		t.Fatalf("got %v, want BannedError", err)
	}
	if banned.Reason != "spam" {
		t.Fatalf("ban reason %q, want %q", banned.Reason, "spam")
	}
}

func TestLoginLiftsExpiredBan(t *testing.T) {
	hashed, _ := HashPassword("pw")
	past := time.Now().Add(-time.Hour)
	u := &store.User{ID: uuid.New(), Email: "c@example.org", HashedPassword: hashed, IsBanned: true, BanUntil: &past}
	users := &fakeUsers{byEmail: map[string]*store.User{u.Email: u}}
	svc := newTestService(users, &fakeAccess{}, &fakeGroups{}, &fakeInvitations{})

	user, _, err := svc.Login(context.Background(), u.Email, "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.IsBanned {
		t.Fatal("expired ban was not lifted")
	}
	if len(users.setBan) != 1 {
		t.Fatalf("SetBan called %d times, want 1", len(users.setBan))
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	hashed, _ := HashPassword("pw")
	u := &store.User{ID: uuid.New(), Email: "d@example.org", HashedPassword: hashed}
	users := &fakeUsers{byEmail: map[string]*store.User{u.Email: u}}
	svc := newTestService(users, &fakeAccess{}, &fakeGroups{}, &fakeInvitations{})

	_, pair, err := svc.Login(context.Background(), u.Email, "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	user, next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if user.ID != u.ID {
		t.Fatalf("refreshed user %s, want %s", user.ID, u.ID)
	}
	if next.AccessToken == "" || next.RefreshToken == "" {
		t.Fatal("refresh issued empty pair")
	}

	// An access token is not accepted as a refresh token.
	if _, _, err := svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}
