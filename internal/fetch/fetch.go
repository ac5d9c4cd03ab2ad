// Package fetch implements the Change Fetcher (spec.md §4.C): turning a
// ChangeSource into (ChangeMetadata, unified diff text). Remote sources are
// resolved against a hosted Git provider; manual sources are a passthrough.
//
// Adapted from the teacher's internal/providers/gitlab/gitlab.go, which
// builds a gitlab.Client from a URL+token pair and parses a merge request
// URL with a dedicated regex (extractMRInfo). Here the client-go library's
// own MergeRequests service is used directly instead of the teacher's
// hand-rolled GitLabHTTPClient, since nothing about that wrapper's behavior
// is part of the spec and the retrieval pack names client-go itself as the
// dependency to exercise.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/livereview-cr/livereview-cr/internal/apperrors"
	"github.com/livereview-cr/livereview-cr/internal/redact"
	"github.com/livereview-cr/livereview-cr/internal/retry"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

// Fetcher resolves a ChangeSource into metadata plus unified diff text.
type Fetcher interface {
	Fetch(ctx context.Context, source reviewmodel.ChangeSource) (*reviewmodel.ChangeMetadata, string, error)
}

// mrRefRe mirrors the teacher's extractMRInfo pattern: everything before
// "/-/merge_requests/<iid>" is the project's URL-encoded path.
var mrRefRe = regexp.MustCompile(`^(.+)/-/merge_requests/(\d+)$`)

// GitLabFetcher fetches merge request metadata and diffs from a GitLab
// instance (gitlab.com or self-hosted) via the official client-go SDK.
type GitLabFetcher struct {
	baseURL  string
	scrubber *redact.Scrubber
}

// NewGitLabFetcher builds a Fetcher against the GitLab instance at baseURL
// (e.g. "https://gitlab.com"). Per-request access tokens are supplied by
// ChangeSource.AccessToken, not fixed at construction time, so a single
// Fetcher can serve reviews against many repositories with different
// credentials.
func NewGitLabFetcher(baseURL string) *GitLabFetcher {
	return &GitLabFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		scrubber: redact.New(),
	}
}

// newClient builds a fresh client-go Client for a single fetch, scoped to
// the caller-supplied token rather than a fixed credential on the Fetcher.
func (f *GitLabFetcher) newClient(token string) (*gitlab.Client, error) {
	client := gitlab.NewClient(nil, token)
	if f.baseURL != "" {
		if err := client.SetBaseURL(fmt.Sprintf("%s/api/v4", f.baseURL)); err != nil {
			return nil, fmt.Errorf("failed to set GitLab API base URL: %w", err)
		}
	}
	return client, nil
}

// Fetch resolves source into metadata and unified diff text.
//
// A manual source is a pure passthrough: no network call, no retry.
// A remote source is parsed into (project path, MR IID), then the merge
// request and its changes are fetched with up to retry.FetcherConfig's
// retries on transient failures.
func (f *GitLabFetcher) Fetch(ctx context.Context, source reviewmodel.ChangeSource) (*reviewmodel.ChangeMetadata, string, error) {
	if source.Kind == reviewmodel.ChangeSourceManual {
		return source.Metadata, source.DiffText, nil
	}

	if source.AccessToken != "" {
		f.scrubber.Add(source.AccessToken)
	}

	projectPath, mrIID, err := parseMergeRequestURL(source.ProviderURL)
	if err != nil {
		return nil, "", &apperrors.ChangeSourceError{
			Kind:    apperrors.ChangeSourceURLFormat,
			Message: "could not extract project and merge request IID from URL",
			Cause:   err,
		}
	}

	client, err := f.newClient(source.AccessToken)
	if err != nil {
		return nil, "", f.classify(err, "failed to construct GitLab client")
	}

	var (
		meta     *reviewmodel.ChangeMetadata
		diffText string
	)

	result := retry.Do(ctx, retry.FetcherConfig(), f.shouldRetry, nil, func(ctx context.Context) error {
		mr, _, err := client.MergeRequests.GetMergeRequest(projectPath, mrIID, nil, gitlab.WithContext(ctx))
		if err != nil {
			return f.classify(err, "failed to fetch merge request")
		}

		changes, _, err := client.MergeRequests.ListMergeRequestDiffs(projectPath, mrIID, nil, gitlab.WithContext(ctx))
		if err != nil {
			return f.classify(err, "failed to fetch merge request changes")
		}

		meta = &reviewmodel.ChangeMetadata{
			Repository:    projectPath,
			PRNumber:      mrIID,
			Title:         mr.Title,
			Author:        authorName(mr),
			HeadCommitSHA: mr.SHA,
			BaseBranch:    mr.TargetBranch,
			HeadBranch:    mr.SourceBranch,
		}
		diffText = renderUnifiedDiff(changes)
		return nil
	})

	if !result.Success {
		return nil, "", result.LastError
	}
	return meta, f.scrubber.Redact(diffText), nil
}

func authorName(mr *gitlab.MergeRequest) string {
	if mr.Author == nil {
		return ""
	}
	return mr.Author.Username
}

// renderUnifiedDiff reassembles client-go's per-file diff entries into one
// unified diff payload the diffparse package can consume.
func renderUnifiedDiff(changes []*gitlab.MergeRequestDiff) string {
	var b strings.Builder
	for _, c := range changes {
		oldPath, newPath := c.OldPath, c.NewPath
		b.WriteString(fmt.Sprintf("diff --git a/%s b/%s\n", oldPath, newPath))
		switch {
		case c.NewFile:
			b.WriteString("new file mode 100644\n")
			b.WriteString("--- /dev/null\n")
			b.WriteString(fmt.Sprintf("+++ b/%s\n", newPath))
		case c.DeletedFile:
			b.WriteString(fmt.Sprintf("--- a/%s\n", oldPath))
			b.WriteString("+++ /dev/null\n")
		default:
			b.WriteString(fmt.Sprintf("--- a/%s\n", oldPath))
			b.WriteString(fmt.Sprintf("+++ b/%s\n", newPath))
		}
		b.WriteString(c.Diff)
		if !strings.HasSuffix(c.Diff, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// parseMergeRequestURL extracts a project path and MR IID from a GitLab
// merge request URL, grounded on the teacher's extractMRInfo.
func parseMergeRequestURL(mrURL string) (string, int, error) {
	parsed, err := url.Parse(mrURL)
	if err != nil {
		return "", 0, fmt.Errorf("invalid URL: %w", err)
	}
	path := strings.TrimPrefix(parsed.Path, "/")

	matches := mrRefRe.FindStringSubmatch(path)
	if len(matches) != 3 {
		return "", 0, fmt.Errorf("not a merge request URL: %s", mrURL)
	}

	iid, err := strconv.Atoi(matches[2])
	if err != nil {
		return "", 0, fmt.Errorf("invalid merge request IID: %w", err)
	}
	return matches[1], iid, nil
}

// classify maps a client-go error into a typed ChangeSourceError, scrubbing
// any credential that may have leaked into the error text.
func (f *GitLabFetcher) classify(err error, message string) error {
	kind := apperrors.ChangeSourceTransport

	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case 404:
			kind = apperrors.ChangeSourceNotFound
		case 401, 403:
			kind = apperrors.ChangeSourceAuth
		case 429:
			kind = apperrors.ChangeSourceRateLimited
		}
	}

	return f.scrubber.RedactError(&apperrors.ChangeSourceError{Kind: kind, Message: message, Cause: err})
}

func (f *GitLabFetcher) shouldRetry(err error) bool {
	var cse *apperrors.ChangeSourceError
	if errors.As(err, &cse) {
		return cse.Kind == apperrors.ChangeSourceTransport || cse.Kind == apperrors.ChangeSourceRateLimited
	}
	return false
}
