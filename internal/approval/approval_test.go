package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

type fakeNotifier struct {
	called bool
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, req *model.ApprovalRequest) error {
	f.called = true
	return f.err
}

func TestNotify_CallsEveryNotifierRegardlessOfEarlierFailures(t *testing.T) {
	first := &fakeNotifier{err: errors.New("channel unreachable")}
	second := &fakeNotifier{}
	m := &Manager{notifiers: []Notifier{first, second}}

	m.notify(context.Background(), &model.ApprovalRequest{})

	if !first.called {
		t.Fatal("expected the first (failing) notifier to be called")
	}
	if !second.called {
		t.Fatal("expected the second notifier to still be called after the first failed")
	}
}

func TestNotify_NoNotifiersConfiguredDoesNothing(t *testing.T) {
	m := &Manager{}
	m.notify(context.Background(), &model.ApprovalRequest{})
}

func TestNewSweeper_NonPositiveIntervalDefaultsTo30Seconds(t *testing.T) {
	s := NewSweeper(nil, 0, nil)
	if s.interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s", s.interval)
	}

	s = NewSweeper(nil, -time.Second, nil)
	if s.interval != 30*time.Second {
		t.Fatalf("negative interval: interval = %v, want 30s", s.interval)
	}
}

func TestNewSweeper_PositiveIntervalIsKept(t *testing.T) {
	s := NewSweeper(nil, 5*time.Minute, nil)
	if s.interval != 5*time.Minute {
		t.Fatalf("interval = %v, want 5m", s.interval)
	}
}

func TestDecide_RejectsApproverWithoutPermissionBeforeTouchingTheStore(t *testing.T) {
	m := &Manager{} // db left nil: the permission check must short-circuit first
	_, err := m.Decide(context.Background(), uuid.New(), uuid.New(), uuid.New(), model.RoleViewerM, true, "")
	if !errors.Is(err, ErrUnauthorizedApprover) {
		t.Fatalf("err = %v, want ErrUnauthorizedApprover", err)
	}
}
