package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// FetchTimelinePage fetches one page of a repository's activity
// timeline. The returned cursor addresses the next page; HasNextPage
// is false once the provider reports no further pages.
func (c *Client) FetchTimelinePage(ctx context.Context, repoFullName string, opts driven.PageOptions) (*driven.TimelinePage, error) {
	if err := c.ensureClient(ctx); err != nil {
		return nil, err
	}

	owner, repo, found := strings.Cut(repoFullName, "/")
	if !found {
		return nil, fmt.Errorf("parse repo name %q: %w", repoFullName, domain.ErrInvalidInput)
	}

	cursor, err := DecodeCursor(opts.Cursor)
	if err != nil {
		return nil, err
	}

	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	listOpts := &gh.ListOptions{Page: cursor.Page, PerPage: perPage}
	events, resp, err := c.gh.Activity.ListRepositoryEvents(ctx, owner, repo, listOpts)
	if err != nil {
		return nil, c.wrapError(err, "list events")
	}
	c.rateLimiter.UpdateFromResponse(resp)

	page := &driven.TimelinePage{
		HasNextPage: resp.NextPage != 0,
		Budget: domain.RateBudget{
			Remaining: resp.Rate.Remaining,
			Reset:     resp.Rate.Reset.Time,
		},
	}
	if page.HasNextPage {
		page.Cursor = cursor.Next(resp.NextPage).Encode()
	}

	for _, event := range events {
		raw, ok := mapEvent(event)
		if !ok {
			continue
		}
		// Window filtering is client-side; the events API has no since
		// parameter.
		if !opts.Since.IsZero() && raw.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && raw.CreatedAt.After(opts.Until) {
			continue
		}
		page.Items = append(page.Items, raw)
	}

	return page, nil
}

// mapEvent flattens one provider event into a RawActivity. Events with
// unparseable payloads are skipped rather than failing the page.
func mapEvent(event *gh.Event) (domain.RawActivity, bool) {
	if event == nil {
		return domain.RawActivity{}, false
	}

	raw := domain.RawActivity{
		RepoFullName: event.GetRepo().GetName(),
		CreatedAt:    event.GetCreatedAt().Time,
	}
	if actor := event.GetActor(); actor != nil {
		raw.ActorID = actor.GetID()
		raw.ActorLogin = actor.GetLogin()
	}

	payload, err := event.ParsePayload()
	if err != nil {
		return domain.RawActivity{}, false
	}

	switch p := payload.(type) {
	case *gh.PushEvent:
		raw.Type = domain.ActivityPush
		raw.Ref = p.GetRef()
		raw.CommitCount = p.GetSize()
		if raw.CommitCount == 0 {
			raw.CommitCount = len(p.Commits)
		}
		raw.URL = pushURL(raw.RepoFullName, p)

	case *gh.PullRequestEvent:
		raw.Type = domain.ActivityPullRequest
		raw.Action = p.GetAction()
		raw.Number = p.GetNumber()
		if pr := p.GetPullRequest(); pr != nil {
			raw.Title = pr.GetTitle()
			raw.URL = pr.GetHTMLURL()
			raw.Metrics = domain.EventMetrics{
				Additions:    pr.GetAdditions(),
				Deletions:    pr.GetDeletions(),
				FilesChanged: pr.GetChangedFiles(),
			}
			// GitHub reports merges as "closed" with the merged flag set.
			if raw.Action == "closed" && pr.GetMerged() {
				raw.Action = "merged"
			}
		}

	case *gh.PullRequestReviewEvent:
		raw.Type = domain.ActivityReview
		raw.Action = p.GetAction()
		if pr := p.GetPullRequest(); pr != nil {
			raw.Title = pr.GetTitle()
			raw.Number = pr.GetNumber()
		}
		if review := p.GetReview(); review != nil {
			raw.URL = review.GetHTMLURL()
			raw.Body = review.GetBody()
		}

	case *gh.IssuesEvent:
		raw.Type = domain.ActivityIssue
		raw.Action = p.GetAction()
		if issue := p.GetIssue(); issue != nil {
			raw.Title = issue.GetTitle()
			raw.Number = issue.GetNumber()
			raw.URL = issue.GetHTMLURL()
		}

	case *gh.IssueCommentEvent:
		raw.Type = domain.ActivityIssueComment
		raw.Action = p.GetAction()
		if issue := p.GetIssue(); issue != nil {
			raw.Title = issue.GetTitle()
			raw.Number = issue.GetNumber()
		}
		if comment := p.GetComment(); comment != nil {
			raw.URL = comment.GetHTMLURL()
			raw.Body = comment.GetBody()
		}

	default:
		return domain.RawActivity{}, false
	}

	return raw, true
}

// pushURL builds a stable URL for a push event. Push payloads carry no
// HTML URL, so one is derived from the head commit.
func pushURL(repoFullName string, p *gh.PushEvent) string {
	if head := p.GetHead(); head != "" {
		return fmt.Sprintf("https://github.com/%s/commit/%s", repoFullName, head)
	}
	return fmt.Sprintf("https://github.com/%s", repoFullName)
}
