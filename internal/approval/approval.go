// Package approval gates invocations that cross a cost or policy trigger
// behind a human decision (spec.md §4.6): create a pending ApprovalRequest,
// block the invocation until an authorized approver decides it within a TTL,
// and never let a decided request change again.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/model"
	"github.com/integrum-global/kaizen-studio/internal/rbac"
)

// Sentinel errors the manager returns; handlers map these to the FORBIDDEN,
// NOT_FOUND or CONFLICT API error codes.
var (
	ErrAlreadyDecided         = errors.New("approval: request already decided")
	ErrApprovalExpired        = errors.New("approval: request has expired")
	ErrSelfApprovalNotAllowed = errors.New("approval: requester cannot approve their own request")
	ErrUnauthorizedApprover   = errors.New("approval: principal is not an authorized approver")
	ErrApprovalNotFound       = errors.New("approval: request not found")
)

// DefaultTTL is how long a pending request waits for a decision before the
// sweep worker expires it, absent an explicit override.
const DefaultTTL = 24 * time.Hour

// Notifier fans a pending approval out to a configured channel. Notification
// failure must never block the approval lifecycle (spec.md §4.6), so the
// Manager only logs notifier errors; it never returns them.
type Notifier interface {
	Notify(ctx context.Context, req *model.ApprovalRequest) error
}

// Manager owns the pending/approved/rejected/expired state machine.
type Manager struct {
	db        *db.Queries
	notifiers []Notifier
}

func NewManager(queries *db.Queries, notifiers ...Notifier) *Manager {
	return &Manager{db: queries, notifiers: notifiers}
}

// Request creates a pending ApprovalRequest for an invocation and fans the
// notification out best-effort.
func (m *Manager) Request(ctx context.Context, orgID, invocationID uuid.UUID, requestedBy *uuid.UUID, reason string, ttl time.Duration) (*model.ApprovalRequest, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	req := &model.ApprovalRequest{
		ID:           uuid.New(),
		OrgID:        orgID,
		InvocationID: invocationID,
		RequestedBy:  requestedBy,
		Reason:       reason,
		Status:       model.ApprovalPending,
		ExpiresAt:    time.Now().Add(ttl),
	}
	if err := m.db.CreateApprovalRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("approval: creating request: %w", err)
	}

	m.notify(ctx, req)
	return req, nil
}

func (m *Manager) notify(ctx context.Context, req *model.ApprovalRequest) {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, req); err != nil {
			slog.Warn("approval notifier failed", "approval_id", req.ID, "error", err)
		}
	}
}

// Decide applies an approve/reject decision. approverRole must hold
// "approvals:decide" (org_admin+, spec.md §4.2) or the decision is rejected
// as unauthorized outright. approverID must not equal the request's
// RequestedBy (self-approval is rejected outright), and the request must
// still be pending and unexpired.
func (m *Manager) Decide(ctx context.Context, orgID, requestID, approverID uuid.UUID, approverRole model.Role, approve bool, note string) (*model.ApprovalRequest, error) {
	if !rbac.Require(approverRole, "approvals:decide") {
		return nil, ErrUnauthorizedApprover
	}

	req, err := m.db.GetApprovalRequestByID(ctx, orgID, requestID)
	if err != nil {
		return nil, ErrApprovalNotFound
	}

	if req.Status != model.ApprovalPending {
		return nil, ErrAlreadyDecided
	}
	if time.Now().After(req.ExpiresAt) {
		if _, expErr := m.db.ExpireApprovalRequest(ctx, req.ID); expErr != nil {
			return nil, fmt.Errorf("approval: expiring stale request: %w", expErr)
		}
		return nil, ErrApprovalExpired
	}
	if req.RequestedBy != nil && *req.RequestedBy == approverID {
		return nil, ErrSelfApprovalNotAllowed
	}

	newStatus := model.ApprovalRejected
	if approve {
		newStatus = model.ApprovalApproved
	}

	ok, err := m.db.DecideApprovalRequest(ctx, req.ID, approverID, note, newStatus)
	if err != nil {
		return nil, fmt.Errorf("approval: recording decision: %w", err)
	}
	if !ok {
		// Lost a race with a concurrent decision or the sweep worker.
		return nil, ErrAlreadyDecided
	}

	req.Status = newStatus
	req.DecidedBy = &approverID
	req.DecisionNote = note
	return req, nil
}

// Get fetches an approval request by ID, scoped to its org.
func (m *Manager) Get(ctx context.Context, orgID, requestID uuid.UUID) (*model.ApprovalRequest, error) {
	req, err := m.db.GetApprovalRequestByID(ctx, orgID, requestID)
	if err != nil {
		return nil, ErrApprovalNotFound
	}
	return req, nil
}

// Sweeper periodically expires pending requests whose TTL has elapsed, the
// same ticker-loop shape the teacher's escalation engine uses for its
// tier-timeout sweep.
type Sweeper struct {
	db       *db.Queries
	interval time.Duration
	onExpire func(ctx context.Context, req *model.ApprovalRequest)
}

func NewSweeper(queries *db.Queries, interval time.Duration, onExpire func(ctx context.Context, req *model.ApprovalRequest)) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{db: queries, interval: interval, onExpire: onExpire}
}

// Run blocks until ctx is cancelled, expiring overdue pending requests each tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	expired, err := s.db.ListExpiredPendingApprovals(ctx, time.Now())
	if err != nil {
		return
	}
	for _, req := range expired {
		ok, err := s.db.ExpireApprovalRequest(ctx, req.ID)
		if err != nil || !ok {
			continue
		}
		req.Status = model.ApprovalExpired
		if s.onExpire != nil {
			s.onExpire(ctx, req)
		}
	}
}
