package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// CreateUser inserts a new user row.
func (q *Queries) CreateUser(ctx context.Context, u *model.User) error {
	const stmt = `
		INSERT INTO users (id, org_id, email, name, password_hash, status, role, mfa_enabled, is_super_admin, primary_organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING created_at, updated_at`
	return q.db.QueryRow(ctx, stmt,
		u.ID, u.OrgID, u.Email, u.Name, u.PasswordHash, u.Status, u.Role, u.MFAEnabled, u.IsSuperAdmin, u.PrimaryOrganizationID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetUserByEmail looks up a user by globally-unique email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	const stmt = `
		SELECT id, org_id, email, name, password_hash, status, role, mfa_enabled, is_super_admin, primary_organization_id, created_at, updated_at
		FROM users WHERE email = $1`
	var u model.User
	err := q.db.QueryRow(ctx, stmt, email).Scan(
		&u.ID, &u.OrgID, &u.Email, &u.Name, &u.PasswordHash, &u.Status, &u.Role, &u.MFAEnabled, &u.IsSuperAdmin,
		&u.PrimaryOrganizationID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID looks up a user by id.
func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const stmt = `
		SELECT id, org_id, email, name, password_hash, status, role, mfa_enabled, is_super_admin, primary_organization_id, created_at, updated_at
		FROM users WHERE id = $1`
	var u model.User
	err := q.db.QueryRow(ctx, stmt, id).Scan(
		&u.ID, &u.OrgID, &u.Email, &u.Name, &u.PasswordHash, &u.Status, &u.Role, &u.MFAEnabled, &u.IsSuperAdmin,
		&u.PrimaryOrganizationID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// CreateInvitation inserts a pending invitation.
func (q *Queries) CreateInvitation(ctx context.Context, inv *model.Invitation) error {
	const stmt = `
		INSERT INTO invitations (id, org_id, email, role, invited_by, token, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING created_at`
	return q.db.QueryRow(ctx, stmt,
		inv.ID, inv.OrgID, inv.Email, inv.Role, inv.InvitedBy, inv.Token, inv.Status, inv.ExpiresAt,
	).Scan(&inv.CreatedAt)
}

// GetInvitationByToken looks up an invitation by its single-use token.
func (q *Queries) GetInvitationByToken(ctx context.Context, token string) (*model.Invitation, error) {
	const stmt = `
		SELECT id, org_id, email, role, invited_by, token, status, expires_at, created_at
		FROM invitations WHERE token = $1`
	var inv model.Invitation
	err := q.db.QueryRow(ctx, stmt, token).Scan(
		&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.Token, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get invitation by token: %w", err)
	}
	return &inv, nil
}

// ListInvitations returns a page of an org's invitations, newest first,
// alongside the total row count so callers can build an OffsetPage.
func (q *Queries) ListInvitations(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*model.Invitation, int, error) {
	const countStmt = `SELECT count(*) FROM invitations WHERE org_id = $1`
	var total int
	if err := q.db.QueryRow(ctx, countStmt, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invitations: %w", err)
	}

	const stmt = `
		SELECT id, org_id, email, role, invited_by, token, status, expires_at, created_at
		FROM invitations WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, stmt, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invs []*model.Invitation
	for rows.Next() {
		var inv model.Invitation
		if err := rows.Scan(
			&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.Token, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan invitation: %w", err)
		}
		invs = append(invs, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list invitations: %w", err)
	}
	return invs, total, nil
}

// MarkInvitationAccepted transitions a pending invitation to accepted. The
// WHERE clause pins the transition to happen at most once: a second call
// against an already-accepted row affects zero rows.
func (q *Queries) MarkInvitationAccepted(ctx context.Context, id uuid.UUID) (bool, error) {
	const stmt = `
		UPDATE invitations SET status = $2 WHERE id = $1 AND status = $3`
	tag, err := q.db.Exec(ctx, stmt, id, model.InvitationAccepted, model.InvitationPending)
	if err != nil {
		return false, fmt.Errorf("mark invitation accepted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
