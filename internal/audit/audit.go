// Package audit is an async, buffered audit log writer (spec.md §4.9).
// Entries are sent to an internal channel and flushed by a background
// goroutine so a write failure or slow insert never delays the request that
// triggered it.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/auth"
	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

// Entry is a single audit log entry queued for async writing.
type Entry struct {
	OrgID        uuid.UUID
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *string
	Details      json.RawMessage
	IPAddress    string
	UserAgent    string
	Status       model.AuditStatus
	ErrorMessage *string
}

// Writer is an async, buffered audit log writer.
type Writer struct {
	db      *db.Queries
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

func NewWriter(queries *db.Queries, logger *slog.Logger) *Writer {
	return &Writer{
		db:      queries,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start begins the background goroutine that flushes audit entries.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an audit entry for async writing. It never blocks the
// caller; if the buffer is full the entry is dropped and a warning logged.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"action", entry.Action, "resource_type", entry.ResourceType)
	}
}

// LogFromRequest builds an Entry from the request's resolved identity and
// the handler's classification of the handled route, then enqueues it.
// Handlers in the authenticated /api/v1 group call it directly after
// handling a state-changing request (spec.md §4.9); it applies no method or
// principal filter of its own.
func (w *Writer) LogFromRequest(r *http.Request, action, resourceType string, resourceID *string, details json.RawMessage, statusCode int) {
	identity := auth.FromContext(r.Context())
	entry := Entry{
		OrgID:        identity.OrgID,
		UserID:       identity.UserID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    clientIP(r),
		UserAgent:    r.Header.Get("User-Agent"),
		Status:       model.AuditSuccess,
	}
	if statusCode >= 400 {
		entry.Status = model.AuditFailure
	}

	w.Log(entry)
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		log := &model.AuditLog{
			ID:           uuid.New(),
			OrgID:        e.OrgID,
			UserID:       e.UserID,
			Action:       e.Action,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Details:      e.Details,
			IPAddress:    e.IPAddress,
			UserAgent:    e.UserAgent,
			Status:       e.Status,
			ErrorMessage: e.ErrorMessage,
		}
		if err := w.db.CreateAuditLogEntry(ctx, log); err != nil {
			w.logger.Error("writing audit log entry", "error", err,
				"action", e.Action, "resource_type", e.ResourceType)
		}
	}
}

// clientIP extracts the client IP, preferring X-Forwarded-For / X-Real-IP
// over RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String()
	}
	return ""
}
