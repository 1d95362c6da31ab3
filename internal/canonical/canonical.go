// Package canonical transforms raw provider activity into normalised
// canonical events and computes the deterministic content hash that
// makes repeated ingestion idempotent.
//
// Everything here is a pure transformation: identical logical input
// always produces an identical event and hash, regardless of how the
// provider happened to order or format incidental fields.
package canonical

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
)

// Canonicalise maps one raw provider activity item into the normalised
// canonical shape. Unknown activity types are still canonicalised with
// a generic description rather than rejected; dropping facts on the
// floor is worse than a bland sentence.
func Canonicalise(raw *domain.RawActivity) (*domain.CanonicalEvent, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	event := &domain.CanonicalEvent{
		Type: raw.Type,
		Actor: domain.EventActor{
			GHID:    raw.ActorID,
			GHLogin: raw.ActorLogin,
		},
		Repo: domain.EventRepo{
			FullName: raw.RepoFullName,
			Owner:    ownerOf(raw.RepoFullName),
		},
		Timestamp:     raw.CreatedAt,
		CanonicalText: canonicalText(raw),
		SourceURL:     NormaliseURL(raw.URL),
		Metrics:       raw.Metrics,
	}
	event.ContentHash = ComputeContentHash(event.CanonicalText, event.SourceURL, event.Metrics)
	return event, nil
}

// canonicalText builds the human-readable description for one activity.
func canonicalText(raw *domain.RawActivity) string {
	actor := raw.ActorLogin
	if actor == "" {
		actor = "someone"
	}
	repo := raw.RepoFullName

	switch raw.Type {
	case domain.ActivityPush:
		branch := shortRef(raw.Ref)
		commits := "commits"
		if raw.CommitCount == 1 {
			commits = "commit"
		}
		return fmt.Sprintf("%s pushed %d %s to %s in %s", actor, raw.CommitCount, commits, branch, repo)

	case domain.ActivityPullRequest:
		verb := prVerb(raw.Action)
		return fmt.Sprintf("%s %s pull request #%d %q in %s", actor, verb, raw.Number, raw.Title, repo)

	case domain.ActivityReview:
		return fmt.Sprintf("%s reviewed pull request #%d %q in %s", actor, raw.Number, raw.Title, repo)

	case domain.ActivityIssue:
		verb := raw.Action
		if verb == "" {
			verb = "updated"
		}
		return fmt.Sprintf("%s %s issue #%d %q in %s", actor, verb, raw.Number, raw.Title, repo)

	case domain.ActivityIssueComment:
		return fmt.Sprintf("%s commented on #%d %q in %s", actor, raw.Number, raw.Title, repo)

	default:
		return fmt.Sprintf("%s performed %s in %s", actor, string(raw.Type), repo)
	}
}

// prVerb maps a pull request payload action to a past-tense verb.
func prVerb(action string) string {
	switch action {
	case "opened":
		return "opened"
	case "closed":
		return "closed"
	case "merged":
		return "merged"
	case "reopened":
		return "reopened"
	case "":
		return "updated"
	default:
		return action
	}
}

// shortRef strips the refs/heads/ prefix from a push ref.
func shortRef(ref string) string {
	if branch, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
		return branch
	}
	if ref == "" {
		return "default branch"
	}
	return ref
}

// ownerOf returns the owner segment of an "owner/repo" name.
func ownerOf(fullName string) string {
	owner, _, found := strings.Cut(fullName, "/")
	if !found {
		return fullName
	}
	return owner
}

// NormaliseURL trims surrounding whitespace and drops a single
// trailing slash, except when the URL is a root (no path beyond the
// host), which keeps its slash.
func NormaliseURL(url string) string {
	url = strings.TrimSpace(url)
	if !strings.HasSuffix(url, "/") {
		return url
	}
	trimmed := strings.TrimSuffix(url, "/")
	if trimmed == "" || isRootURL(trimmed) {
		return url
	}
	return trimmed
}

// isRootURL reports whether url has no path beyond the host.
func isRootURL(url string) bool {
	rest := url
	if i := strings.Index(url, "://"); i >= 0 {
		rest = url[i+3:]
	}
	return !strings.Contains(rest, "/")
}
