package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
	"github.com/shplep/homecontentslistpro-sub000/internal/events"
	"github.com/shplep/homecontentslistpro-sub000/internal/ingest"
	"github.com/shplep/homecontentslistpro-sub000/internal/metrics"
	"github.com/shplep/homecontentslistpro-sub000/internal/session"
)

// Config holds the service limits. Zero values fall back to defaults.
type Config struct {
	PreviewTTL    time.Duration
	CommitTimeout time.Duration
	LockTTL       time.Duration
	MaxRows       int
	MaxFileSize   int64
}

func (c Config) withDefaults() Config {
	if c.PreviewTTL <= 0 {
		c.PreviewTTL = 30 * time.Minute
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 45 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 15 * time.Minute
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 10 << 20
	}
	return c
}

// Deps are the collaborators a Service needs. Store and Sessions are
// required. A nil Locker disables the per-owner commit lock.
type Deps struct {
	Store      importer.Store
	Normalizer *importer.Normalizer
	Sessions   session.Store
	Locker     session.Locker
	Limiter    *CommitLimiter
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Audit      *AuditLog
	Logger     *slog.Logger
}

// Service runs the two-phase import: preview, then commit.
type Service struct {
	store      importer.Store
	normalizer *importer.Normalizer
	sessions   session.Store
	locker     session.Locker
	limiter    *CommitLimiter
	publisher  events.Publisher
	metrics    *metrics.Metrics
	audit      *AuditLog
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
}

// NewService creates a new Service instance.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("new service: store is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("new service: session store is required")
	}

	s := &Service{
		store:      deps.Store,
		normalizer: deps.Normalizer,
		sessions:   deps.Sessions,
		locker:     deps.Locker,
		limiter:    deps.Limiter,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		audit:      deps.Audit,
		logger:     deps.Logger,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
	if s.normalizer == nil {
		s.normalizer = importer.DefaultNormalizer()
	}
	if s.limiter == nil {
		s.limiter = NewCommitLimiter(DefaultMaxConcurrentCommits, DefaultMaxWaitTime)
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.audit == nil {
		s.audit = NewAuditLog(s.logger, 0)
	}
	return s, nil
}

// Limiter exposes the commit limiter for health reporting and shutdown.
func (s *Service) Limiter() *CommitLimiter { return s.limiter }

// Audit exposes the audit log.
func (s *Service) Audit() *AuditLog { return s.audit }

func checkOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrOwnerRequired
	}
	return nil
}

// PreviewFile decodes an uploaded file and previews its rows. size is the
// declared length, or -1 when unknown.
func (s *Service) PreviewFile(ctx context.Context, ownerID, filename, contentType string, r io.Reader, size int64) (*session.Session, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	if r == nil || size == 0 {
		return nil, ErrNoFile
	}
	if size > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, size, s.cfg.MaxFileSize)
	}

	lr := &io.LimitedReader{R: r, N: s.cfg.MaxFileSize + 1}
	rows, err := ingest.Decode(filename, contentType, lr, ingest.Limits{MaxRows: s.cfg.MaxRows})
	if lr.N <= 0 {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, s.cfg.MaxFileSize)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return s.PreviewRows(ctx, ownerID, filename, rows)
}

// PreviewRows builds a preview and stores it as a session the owner can
// commit until it expires. A preview with row errors is still stored so
// the caller can show it.
func (s *Service) PreviewRows(ctx context.Context, ownerID, source string, rows []importer.RawRow) (*session.Session, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	if s.cfg.MaxRows > 0 && len(rows) > s.cfg.MaxRows {
		return nil, fmt.Errorf("%w: %d rows, limit %d", ingest.ErrTooManyRows, len(rows), s.cfg.MaxRows)
	}

	p := importer.BuildPreview(rows, s.normalizer)
	sess := session.New(ownerID, source, p, s.now(), s.cfg.PreviewTTL)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("store preview: %w", err)
	}

	s.metrics.RecordPreview(len(rows), p.HasErrors())
	s.audit.Record(ctx, AuditLogParams{
		Action:       ActionPreview,
		OwnerID:      ownerID,
		PreviewID:    sess.ID,
		Source:       source,
		RowsAffected: len(rows),
	})

	e := events.NewEvent(events.TypePreviewed, ownerID, sess.ID)
	e.Source = source
	e.Rows = len(rows)
	e.Errors = len(p.Errors)
	e.Warnings = len(p.Warnings)
	s.publish(ctx, e)

	s.logger.Info("import previewed",
		"owner_id", ownerID,
		"preview_id", sess.ID,
		"rows", len(rows),
		"items", len(p.Items),
		"errors", len(p.Errors),
		"warnings", len(p.Warnings),
	)
	return sess, nil
}

// GetPreview returns an owner's stored preview. Previews of other owners
// are reported as not found.
func (s *Service) GetPreview(ctx context.Context, ownerID, previewID string) (*session.Session, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, previewID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrPreviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load preview: %w", err)
	}
	if sess.OwnerID != ownerID {
		return nil, ErrPreviewNotFound
	}
	return sess, nil
}

// DiscardPreview deletes a stored preview.
func (s *Service) DiscardPreview(ctx context.Context, ownerID, previewID string) error {
	sess, err := s.GetPreview(ctx, ownerID, previewID)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("discard preview: %w", err)
	}

	s.audit.Record(ctx, AuditLogParams{Action: ActionDiscard, OwnerID: ownerID, PreviewID: sess.ID, Source: sess.Source})
	e := events.NewEvent(events.TypeDiscarded, ownerID, sess.ID)
	e.Source = sess.Source
	s.publish(ctx, e)
	return nil
}

type commitOutcome struct {
	result *importer.Result
	err    error
}

// CommitImport applies a stored preview. The preview must belong to
// ownerID and have no row errors. At most one commit per owner runs at a
// time, and the preview is consumed on success.
//
// Once started, a commit runs to completion even if ctx is cancelled. If
// it takes longer than the commit timeout the call returns
// ErrCommitStillRunning and the commit finishes in the background.
func (s *Service) CommitImport(ctx context.Context, ownerID, previewID string, opts importer.Options) (*importer.Result, error) {
	sess, err := s.GetPreview(ctx, ownerID, previewID)
	if err != nil {
		return nil, err
	}
	if sess.Preview == nil || sess.Preview.HasErrors() {
		s.reject(ctx, sess, ErrPreviewHasErrors)
		return nil, ErrPreviewHasErrors
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.reject(ctx, sess, err)
		return nil, err
	}

	lock, err := s.lockOwner(ctx, ownerID)
	if err != nil {
		s.limiter.Release()
		s.reject(ctx, sess, err)
		return nil, err
	}

	// Another commit may have consumed the preview while we waited.
	if _, err := s.sessions.Get(ctx, previewID); err != nil {
		s.unlock(ctx, lock, ownerID)
		s.limiter.Release()
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrPreviewNotFound
		}
		return nil, fmt.Errorf("load preview: %w", err)
	}

	detached := context.WithoutCancel(ctx)
	done := make(chan commitOutcome, 1)
	go func() {
		res, err := s.runCommit(detached, sess, opts)
		s.unlock(detached, lock, ownerID)
		s.limiter.Release()
		done <- commitOutcome{result: res, err: err}
	}()

	timer := time.NewTimer(s.cfg.CommitTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		s.logger.Warn("import still running after timeout",
			"owner_id", ownerID, "preview_id", previewID, "timeout", s.cfg.CommitTimeout)
		return nil, fmt.Errorf("commit %s: %w", previewID, ErrCommitStillRunning)
	case <-ctx.Done():
		return nil, fmt.Errorf("commit %s: %w", previewID, ctx.Err())
	}
}

func (s *Service) runCommit(ctx context.Context, sess *session.Session, opts importer.Options) (*importer.Result, error) {
	logger := s.logger.With("owner_id", sess.OwnerID, "preview_id", sess.ID)
	exec := importer.NewExecutor(s.store,
		importer.WithLogger(logger),
		importer.WithObserver(s.metrics),
	)

	s.metrics.CommitsInFlight.Inc()
	defer s.metrics.CommitsInFlight.Dec()

	start := s.now()
	result, err := exec.Commit(ctx, sess.OwnerID, sess.Preview, opts)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordCommit("failed", elapsed)
		s.audit.Record(ctx, AuditLogParams{
			Action: ActionCommitRejected, OwnerID: sess.OwnerID, PreviewID: sess.ID, Source: sess.Source, Reason: err.Error(),
		})
		return nil, fmt.Errorf("commit %s: %w", sess.ID, err)
	}

	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		logger.Warn("committed preview not deleted", "error", err)
	}

	s.metrics.RecordCommit("success", elapsed)
	s.audit.Record(ctx, AuditLogParams{
		Action:       ActionCommit,
		OwnerID:      sess.OwnerID,
		PreviewID:    sess.ID,
		Source:       sess.Source,
		RowsAffected: result.Created.Items + result.Updated.Items,
		Summary:      result.Summary,
	})

	e := events.NewEvent(events.TypeCompleted, sess.OwnerID, sess.ID)
	e.Source = sess.Source
	e.Options = &opts
	e.Result = result
	s.publish(ctx, e)

	logger.Info("import committed",
		"houses_created", result.Created.Houses,
		"rooms_created", result.Created.Rooms,
		"items_created", result.Created.Items,
		"items_updated", result.Updated.Items,
		"items_skipped", result.Skipped.Items,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

func (s *Service) lockOwner(ctx context.Context, ownerID string) (session.Lock, error) {
	if s.locker == nil {
		return nil, nil
	}
	lock, err := s.locker.Acquire(ctx, ownerID, s.cfg.LockTTL)
	if errors.Is(err, session.ErrLocked) {
		return nil, ErrCommitInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("lock owner: %w", err)
	}
	return lock, nil
}

func (s *Service) unlock(ctx context.Context, lock session.Lock, ownerID string) {
	if lock == nil {
		return
	}
	if err := lock.Release(ctx); err != nil {
		s.logger.Warn("owner lock release failed", "owner_id", ownerID, "error", err)
	}
}

func (s *Service) reject(ctx context.Context, sess *session.Session, err error) {
	s.metrics.RecordCommit("rejected", 0)
	s.audit.Record(ctx, AuditLogParams{
		Action:    ActionCommitRejected,
		OwnerID:   sess.OwnerID,
		PreviewID: sess.ID,
		Source:    sess.Source,
		Reason:    err.Error(),
	})
}

// publish delivers an event. Delivery failures are logged, never returned:
// the import itself already happened.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("event publish failed", "type", string(e.Type), "preview_id", e.PreviewID, "error", err)
	}
}
