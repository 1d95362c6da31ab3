package domain

import "time"

// ActivityType classifies one provider activity item.
type ActivityType string

// Activity types recognized by the canonicaliser. Unknown types are
// still ingested with a generic canonical text.
const (
	ActivityPush         ActivityType = "push"
	ActivityPullRequest  ActivityType = "pull_request"
	ActivityReview       ActivityType = "review"
	ActivityIssue        ActivityType = "issue"
	ActivityIssueComment ActivityType = "issue_comment"
)

// RawActivity is one activity item as fetched from the provider,
// flattened into the fields the canonicaliser needs. The connector
// owns the mapping from provider payload shapes to this struct.
type RawActivity struct {
	// Type is the provider-agnostic activity classification.
	Type ActivityType

	// Action is the payload action where the provider supplies one
	// (e.g. "opened", "closed", "merged" for pull requests).
	Action string

	// ActorID is the provider's numeric actor identifier.
	ActorID int64

	// ActorLogin is the actor's login name.
	ActorLogin string

	// RepoFullName is the repository the activity happened in.
	RepoFullName string

	// CreatedAt is the provider timestamp of the activity.
	CreatedAt time.Time

	// Title is the issue/PR title, if any.
	Title string

	// Number is the issue/PR number, if any.
	Number int

	// Ref is the branch ref for pushes (e.g. "refs/heads/main").
	Ref string

	// CommitCount is the number of commits in a push.
	CommitCount int

	// Body is comment or review text, if any.
	Body string

	// Metrics holds change-size counters, if the payload carries them.
	Metrics EventMetrics

	// URL is the canonical provider URL for the activity.
	URL string
}

// EventMetrics are change-size counters attached to an event.
type EventMetrics struct {
	// Additions is the number of lines added.
	Additions int `json:"additions"`

	// Deletions is the number of lines deleted.
	Deletions int `json:"deletions"`

	// FilesChanged is the number of files touched.
	FilesChanged int `json:"filesChanged"`
}

// EventActor identifies who performed an event.
type EventActor struct {
	// GHID is the provider's numeric identifier.
	GHID int64

	// GHLogin is the provider login name.
	GHLogin string
}

// EventRepo identifies where an event happened.
type EventRepo struct {
	// FullName is "owner/repo".
	FullName string

	// Owner is the owner segment of FullName.
	Owner string
}

// CanonicalEvent is the normalised, provider-agnostic representation
// of one activity item. It is derived deterministically from a
// RawActivity and never mutated after creation.
type CanonicalEvent struct {
	// ID is the unique identifier assigned at persistence.
	ID string

	// Type is the activity classification.
	Type ActivityType

	// Actor identifies who performed the event.
	Actor EventActor

	// Repo identifies where the event happened.
	Repo EventRepo

	// Timestamp is the provider timestamp of the event.
	Timestamp time.Time

	// CanonicalText is the human-readable normalised description.
	CanonicalText string

	// SourceURL is the normalised provider URL.
	SourceURL string

	// Metrics are the change-size counters.
	Metrics EventMetrics

	// ContentHash is the deterministic digest of
	// {CanonicalText, SourceURL, Metrics} used for deduplication.
	ContentHash string
}
