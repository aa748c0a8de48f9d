package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// CreateOrganization inserts a new organization row.
func (q *Queries) CreateOrganization(ctx context.Context, org *model.Organization) error {
	const stmt = `
		INSERT INTO organizations (id, name, slug, status, plan_tier, sso_domain, allow_domain_join, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at`
	return q.db.QueryRow(ctx, stmt,
		org.ID, org.Name, org.Slug, org.Status, org.PlanTier, org.SSODomain, org.AllowDomainJoin, org.Settings,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
}

// GetOrganizationByID fetches a non-deleted organization by id.
func (q *Queries) GetOrganizationByID(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	const stmt = `
		SELECT id, name, slug, status, plan_tier, sso_domain, allow_domain_join, settings, created_at, updated_at
		FROM organizations WHERE id = $1 AND status <> $2`
	var org model.Organization
	err := q.db.QueryRow(ctx, stmt, id, model.OrganizationDeleted).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Status, &org.PlanTier, &org.SSODomain, &org.AllowDomainJoin, &org.Settings,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// GetOrganizationBySlug fetches an organization by its unique slug.
func (q *Queries) GetOrganizationBySlug(ctx context.Context, slug string) (*model.Organization, error) {
	const stmt = `
		SELECT id, name, slug, status, plan_tier, sso_domain, allow_domain_join, settings, created_at, updated_at
		FROM organizations WHERE slug = $1`
	var org model.Organization
	err := q.db.QueryRow(ctx, stmt, slug).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Status, &org.PlanTier, &org.SSODomain, &org.AllowDomainJoin, &org.Settings,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	return &org, nil
}

// SoftDeleteOrganization marks an organization deleted without removing the row.
func (q *Queries) SoftDeleteOrganization(ctx context.Context, id uuid.UUID) error {
	const stmt = `UPDATE organizations SET status = $2, updated_at = now() WHERE id = $1`
	_, err := q.db.Exec(ctx, stmt, id, model.OrganizationDeleted)
	return err
}

// CreateUserOrganization inserts a membership row. At most one row per user
// may have is_primary = true; callers must clear any prior primary first.
func (q *Queries) CreateUserOrganization(ctx context.Context, m *model.UserOrganization) error {
	const stmt = `
		INSERT INTO user_organizations (user_id, org_id, role, is_primary, joined_via, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at`
	return q.db.QueryRow(ctx, stmt, m.UserID, m.OrgID, m.Role, m.IsPrimary, m.JoinedVia).Scan(&m.CreatedAt)
}

// GetUserOrganization fetches the membership row joining user and org, which
// carries the effective role enforced by RBAC/ABAC.
func (q *Queries) GetUserOrganization(ctx context.Context, userID, orgID uuid.UUID) (*model.UserOrganization, error) {
	const stmt = `
		SELECT user_id, org_id, role, is_primary, joined_via, created_at
		FROM user_organizations WHERE user_id = $1 AND org_id = $2`
	var m model.UserOrganization
	err := q.db.QueryRow(ctx, stmt, userID, orgID).Scan(
		&m.UserID, &m.OrgID, &m.Role, &m.IsPrimary, &m.JoinedVia, &m.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user %s has no membership in org %s: %w", userID, orgID, err)
		}
		return nil, fmt.Errorf("get user organization: %w", err)
	}
	return &m, nil
}

// GetOrganizationDomain looks up a verified auto-join domain.
func (q *Queries) GetOrganizationDomain(ctx context.Context, domain string) (*model.OrganizationDomain, error) {
	const stmt = `
		SELECT id, org_id, domain, is_verified, auto_join_enabled, default_role, created_at
		FROM organization_domains WHERE domain = $1 AND is_verified = true AND auto_join_enabled = true`
	var d model.OrganizationDomain
	err := q.db.QueryRow(ctx, stmt, domain).Scan(
		&d.ID, &d.OrgID, &d.Domain, &d.IsVerified, &d.AutoJoinEnabled, &d.DefaultRole, &d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get organization domain: %w", err)
	}
	return &d, nil
}
