package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionPreview        AuditAction = "import_preview"
	ActionDiscard        AuditAction = "import_discard"
	ActionCommit         AuditAction = "import_commit"
	ActionCommitRejected AuditAction = "import_commit_rejected"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string        `json:"id"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	OwnerID      string        `json:"ownerId"`
	PreviewID    string        `json:"previewId,omitempty"`
	Source       string        `json:"source,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	RowsAffected int           `json:"rowsAffected,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
type AuditLogParams struct {
	Action       AuditAction
	OwnerID      string
	PreviewID    string
	Source       string
	RowsAffected int
	Summary      string
	Reason       string
}

func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionCommit:
		return SeverityHigh
	case ActionCommitRejected:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AuditLog writes audit entries to a dedicated logger and keeps the most
// recent ones in memory.
type AuditLog struct {
	logger *slog.Logger

	mu     sync.Mutex
	recent []AuditEntry
	limit  int
}

// NewAuditLog keeps up to limit recent entries.
func NewAuditLog(logger *slog.Logger, limit int) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 100
	}
	return &AuditLog{logger: logger.With("component", "audit"), limit: limit}
}

// Record stamps, logs and stores one entry. Request metadata comes from
// ctx.
func (a *AuditLog) Record(ctx context.Context, params AuditLogParams) AuditEntry {
	entry := AuditEntry{
		ID:           uuid.NewString(),
		Action:       params.Action,
		Severity:     determineSeverity(params.Action),
		OwnerID:      params.OwnerID,
		PreviewID:    params.PreviewID,
		Source:       params.Source,
		IPAddress:    GetIPAddressFromContext(ctx),
		UserAgent:    GetUserAgentFromContext(ctx),
		RowsAffected: params.RowsAffected,
		Summary:      params.Summary,
		Reason:       params.Reason,
		CreatedAt:    time.Now().UTC(),
	}

	a.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("audit_id", entry.ID),
		slog.String("action", string(entry.Action)),
		slog.String("severity", string(entry.Severity)),
		slog.String("owner_id", entry.OwnerID),
		slog.String("preview_id", entry.PreviewID),
		slog.String("ip", entry.IPAddress),
		slog.Int("rows_affected", entry.RowsAffected),
		slog.String("reason", entry.Reason),
	)

	a.mu.Lock()
	a.recent = append(a.recent, entry)
	if over := len(a.recent) - a.limit; over > 0 {
		a.recent = append(a.recent[:0], a.recent[over:]...)
	}
	a.mu.Unlock()

	return entry
}

// Recent returns up to n entries for ownerID, newest first.
func (a *AuditLog) Recent(ownerID string, n int) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AuditEntry, 0, n)
	for i := len(a.recent) - 1; i >= 0 && len(out) < n; i-- {
		if a.recent[i].OwnerID == ownerID {
			out = append(out, a.recent[i])
		}
	}
	return out
}
