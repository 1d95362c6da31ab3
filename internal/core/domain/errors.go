package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	// Job creation returns this when an active job is already held
	// for the same (installation, repository) pair.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running for the installation.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrInstallationRemoved indicates the installation was removed
	// while work was in flight. Jobs observing it stop between pages.
	ErrInstallationRemoved = errors.New("installation removed")

	// Authentication Errors.

	// ErrAuthRequired indicates no credentials are configured for the installation.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthExpired indicates the authentication has expired and refresh failed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrAuthInvalid indicates the authentication credentials are invalid.
	ErrAuthInvalid = errors.New("authentication invalid")

	// Provider Errors.

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrRepoInaccessible indicates the repository no longer exists or
	// is not visible to the installation. This is a permanent failure
	// for the repository's job, never retried.
	ErrRepoInaccessible = errors.New("repository inaccessible")
)
