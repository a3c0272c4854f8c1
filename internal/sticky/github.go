package sticky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v74/github"
)

const (
	// commentsPerPage is the single page of comments searched for the marker
	commentsPerPage = 100

	maxRetries = 2
)

// GitHubService implements CommentService with pull request issue comments
type GitHubService struct {
	client     *github.Client
	owner      string
	repo       string
	newBackOff func() backoff.BackOff
}

// NewGitHubService creates a service for repository ("owner/name").
// An empty apiURL uses api.github.com.
func NewGitHubService(token, repository, apiURL string) (*GitHubService, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q, expected owner/name", repository)
	}

	client := github.NewClient(&http.Client{Timeout: 30 * time.Second})
	if token != "" {
		client = client.WithAuthToken(token)
	}

	if apiURL != "" {
		base, err := url.Parse(strings.TrimRight(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid api url: %w", err)
		}

		client.BaseURL = base
	}

	return &GitHubService{
		client: client,
		owner:  owner,
		repo:   repo,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(backoff.WithInitialInterval(time.Second))
		},
	}, nil
}

// ListComments returns the first page of comments on the pull request
func (s *GitHubService) ListComments(ctx context.Context, thread int) ([]Comment, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: commentsPerPage},
	}

	var comments []Comment
	err := s.retry(ctx, func() error {
		list, _, err := s.client.Issues.ListComments(ctx, s.owner, s.repo, thread, opts)
		if err != nil {
			return err
		}

		comments = make([]Comment, 0, len(list))
		for _, c := range list {
			comments = append(comments, Comment{ID: c.GetID(), Body: c.GetBody()})
		}

		return nil
	})

	return comments, err
}

// CreateComment adds a new comment to the pull request
func (s *GitHubService) CreateComment(ctx context.Context, thread int, body string) (Comment, error) {
	var created Comment
	err := s.retry(ctx, func() error {
		c, _, err := s.client.Issues.CreateComment(ctx, s.owner, s.repo, thread, &github.IssueComment{Body: github.Ptr(body)})
		if err != nil {
			return err
		}

		created = Comment{ID: c.GetID(), Body: c.GetBody()}
		return nil
	})

	return created, err
}

// UpdateComment replaces the body of comment id
func (s *GitHubService) UpdateComment(ctx context.Context, id int64, body string) error {
	return s.retry(ctx, func() error {
		_, _, err := s.client.Issues.EditComment(ctx, s.owner, s.repo, id, &github.IssueComment{Body: github.Ptr(body)})
		return err
	})
}

// retry runs op with bounded backoff. Permission errors are not retried.
func (s *GitHubService) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), maxRetries), ctx)

	return backoff.Retry(func() error {
		err := classify(op())
		if errors.Is(err, ErrPermissionDenied) {
			return backoff.Permanent(err)
		}

		return err
	}, b)
}

// classify maps forbidden and not-found responses to ErrPermissionDenied.
// GitHub answers 404 instead of 403 when the token cannot see the repository.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusForbidden, http.StatusNotFound, http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}

	return err
}
