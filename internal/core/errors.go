package core

import "errors"

var (
	ErrPreviewNotFound  = errors.New("import preview not found")
	ErrPreviewHasErrors = errors.New("import preview has row errors")
	ErrCommitInProgress = errors.New("an import is already running for this owner")
	ErrTooManyCommits   = errors.New("too many concurrent imports, please try again later")
	ErrOwnerRequired    = errors.New("owner id is required")
	ErrFileTooLarge     = errors.New("file too large")
	ErrNoFile           = errors.New("no file provided")
	ErrInvalidRequest   = errors.New("invalid request")

	// ErrCommitStillRunning means the caller stopped waiting; the commit
	// carries on and finishes in the background.
	ErrCommitStillRunning = errors.New("import is still running")
)
