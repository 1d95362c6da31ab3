package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// eventStore implements driven.EventStore.
type eventStore struct {
	store *Store
}

var _ driven.EventStore = (*eventStore)(nil)

// Insert persists the event unless a fact with the same content hash
// already exists. The actor and repository rows are upserted in the
// same transaction, and the unique index on content_hash makes the
// duplicate check and the write a single atomic step.
func (s *eventStore) Insert(ctx context.Context, event *domain.CanonicalEvent) (driven.InsertOutcome, error) {
	if event == nil || event.ContentHash == "" {
		return driven.OutcomeDuplicate, domain.ErrInvalidInput
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return driven.OutcomeDuplicate, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO actors (gh_id, gh_login)
		VALUES (?, ?)
		ON CONFLICT(gh_id) DO UPDATE SET gh_login = excluded.gh_login
	`, event.Actor.GHID, event.Actor.GHLogin); err != nil {
		return driven.OutcomeDuplicate, fmt.Errorf("upserting actor: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO repositories (full_name, owner)
		VALUES (?, ?)
		ON CONFLICT(full_name) DO NOTHING
	`, event.Repo.FullName, event.Repo.Owner); err != nil {
		return driven.OutcomeDuplicate, fmt.Errorf("upserting repository: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO canonical_events
			(id, type, actor_gh_id, repo_full_name, occurred_at, canonical_text,
			source_url, additions, deletions, files_changed, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`, event.ID, string(event.Type), event.Actor.GHID, event.Repo.FullName,
		event.Timestamp.UTC().Format(time.RFC3339), event.CanonicalText,
		event.SourceURL, event.Metrics.Additions, event.Metrics.Deletions,
		event.Metrics.FilesChanged, event.ContentHash,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return driven.OutcomeDuplicate, fmt.Errorf("inserting event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return driven.OutcomeDuplicate, fmt.Errorf("checking event insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return driven.OutcomeDuplicate, fmt.Errorf("committing transaction: %w", err)
	}

	if affected == 0 {
		return driven.OutcomeDuplicate, nil
	}
	return driven.OutcomeInserted, nil
}

// GetByContentHash retrieves an event by its content hash.
func (s *eventStore) GetByContentHash(ctx context.Context, hash string) (*domain.CanonicalEvent, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT e.id, e.type, e.actor_gh_id, a.gh_login, e.repo_full_name, r.owner,
			e.occurred_at, e.canonical_text, e.source_url,
			e.additions, e.deletions, e.files_changed, e.content_hash
		FROM canonical_events e
		JOIN actors a ON a.gh_id = e.actor_gh_id
		JOIN repositories r ON r.full_name = e.repo_full_name
		WHERE e.content_hash = ?
	`, hash)

	var event domain.CanonicalEvent
	var eventType, occurredAt string
	if err := row.Scan(&event.ID, &eventType, &event.Actor.GHID, &event.Actor.GHLogin,
		&event.Repo.FullName, &event.Repo.Owner, &occurredAt, &event.CanonicalText,
		&event.SourceURL, &event.Metrics.Additions, &event.Metrics.Deletions,
		&event.Metrics.FilesChanged, &event.ContentHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}

	event.Type = domain.ActivityType(eventType)
	event.Timestamp = parseTime(occurredAt)

	return &event, nil
}

// CountByRepo returns the number of stored events for a repository.
func (s *eventStore) CountByRepo(ctx context.Context, repoFullName string) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM canonical_events WHERE repo_full_name = ?",
		repoFullName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return count, nil
}
