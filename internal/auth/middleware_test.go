package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"log/slog"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/keystore"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

// fakeRow is a canned pgx.Row: Scan assigns fixed values into dest in order.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		rv := reflect.ValueOf(d).Elem()
		vv := reflect.ValueOf(r.values[i])
		if !vv.IsValid() {
			continue
		}
		rv.Set(vv)
	}
	return nil
}

// fakeDBTX answers GetUserByID / GetUserOrganization queries from canned
// rows keyed by which table the SQL statement targets, since these are the
// only two queries the JWT stale-detection path issues.
type fakeDBTX struct {
	userRow         fakeRow
	membershipRow   fakeRow
}

func (f *fakeDBTX) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeDBTX) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (f *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if strings.Contains(sql, "user_organizations") {
		return f.membershipRow
	}
	return f.userRow
}

func testIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	return NewTokenIssuer(&keystore.JWTKeys{PrivateKey: priv, PublicKey: &priv.PublicKey}, 15*time.Minute, 168*time.Hour)
}

func TestAuthenticator_DevHeader_Defaults(t *testing.T) {
	a := NewAuthenticator(nil, nil, nil, false, slog.Default())

	r := httptest.NewRequest("GET", "/api/v1/agents", nil)
	userID := uuid.New()
	orgID := uuid.New()
	r.Header.Set("X-User-ID", userID.String())
	r.Header.Set("X-Org-ID", orgID.String())

	identity := a.authenticate(r)
	if identity.Method != MethodDevHeader {
		t.Fatalf("Method = %v, want MethodDevHeader", identity.Method)
	}
	if identity.Role != model.RoleOwner {
		t.Errorf("Role = %v, want default org_owner", identity.Role)
	}
	if identity.OrgID != orgID {
		t.Errorf("OrgID = %v, want %v", identity.OrgID, orgID)
	}
}

func TestAuthenticator_DevHeader_DisabledInProduction(t *testing.T) {
	a := NewAuthenticator(nil, nil, nil, true, slog.Default())

	r := httptest.NewRequest("GET", "/api/v1/agents", nil)
	r.Header.Set("X-User-ID", uuid.New().String())
	r.Header.Set("X-Org-ID", uuid.New().String())

	identity := a.authenticate(r)
	if identity.Method != MethodAnonymous {
		t.Fatalf("Method = %v, want MethodAnonymous (dev header must be inert in production)", identity.Method)
	}
}

func TestAuthenticator_JWT_StaleRoleDetected(t *testing.T) {
	issuer := testIssuer(t)
	userID := uuid.New()
	orgID := uuid.New()

	token, err := issuer.IssueAccessToken(userID, orgID, model.RoleOwner)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	fake := &fakeDBTX{
		userRow: fakeRow{values: []any{
			userID, (*uuid.UUID)(nil), "user@example.com", "Test User", (*string)(nil), model.UserActive, (*string)(nil),
			false, false, (*uuid.UUID)(nil), time.Now(), time.Now(),
		}},
		membershipRow: fakeRow{values: []any{
			userID, orgID, model.RoleViewerM, false, model.JoinedViaCreated, time.Now(),
		}},
	}

	a := NewAuthenticator(db.New(fake), fake, issuer, false, slog.Default())

	r := httptest.NewRequest("GET", "/api/v1/agents", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity := a.authenticate(r)
	if identity.Method != MethodJWT {
		t.Fatalf("Method = %v, want MethodJWT", identity.Method)
	}
	if !identity.RoleStale {
		t.Error("RoleStale = false, want true (DB role viewer disagrees with JWT role org_owner)")
	}
	if identity.Role != model.RoleViewerM {
		t.Errorf("Role = %v, want the DB role (viewer), never the stale JWT claim", identity.Role)
	}
}

func TestAuthenticator_JWT_FreshMatchesNotStale(t *testing.T) {
	issuer := testIssuer(t)
	userID := uuid.New()
	orgID := uuid.New()

	token, err := issuer.IssueAccessToken(userID, orgID, model.RoleDeveloperM)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	fake := &fakeDBTX{
		userRow: fakeRow{values: []any{
			userID, (*uuid.UUID)(nil), "user@example.com", "Test User", (*string)(nil), model.UserActive, (*string)(nil),
			false, false, (*uuid.UUID)(nil), time.Now(), time.Now(),
		}},
		membershipRow: fakeRow{values: []any{
			userID, orgID, model.RoleDeveloperM, false, model.JoinedViaCreated, time.Now(),
		}},
	}

	a := NewAuthenticator(db.New(fake), fake, issuer, false, slog.Default())

	r := httptest.NewRequest("GET", "/api/v1/agents", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity := a.authenticate(r)
	if identity.RoleStale {
		t.Error("RoleStale = true, want false (JWT role matches current membership)")
	}
}

func TestAuthenticator_JWT_DeletedUserIsAnonymous(t *testing.T) {
	issuer := testIssuer(t)
	userID := uuid.New()
	orgID := uuid.New()

	token, err := issuer.IssueAccessToken(userID, orgID, model.RoleOwner)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	fake := &fakeDBTX{
		userRow: fakeRow{values: []any{
			userID, (*uuid.UUID)(nil), "user@example.com", "Test User", (*string)(nil), model.UserDeleted, (*string)(nil),
			false, false, (*uuid.UUID)(nil), time.Now(), time.Now(),
		}},
	}

	a := NewAuthenticator(db.New(fake), fake, issuer, false, slog.Default())

	r := httptest.NewRequest("GET", "/api/v1/agents", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity := a.authenticate(r)
	if identity.Method != MethodAnonymous {
		t.Errorf("Method = %v, want MethodAnonymous for a deleted user", identity.Method)
	}
}

func TestAuthenticator_ExemptPathBypassesChain(t *testing.T) {
	if !ExemptPaths["/health"] {
		t.Fatal("/health must be exempt")
	}
	if ExemptPaths["/api/v1/external-agents/invoke"] {
		t.Fatal("invocation endpoint must not be exempt")
	}
}
