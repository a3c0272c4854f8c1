// Package sticky keeps a single, repeatedly updated report comment per pull request.
//
// The comment is found by an HTML comment marker at the top of its body, which does not
// show up in rendered markdown. Only the first page of comments is searched, so on a
// thread with more comments than one page holds the existing comment may be missed and
// a second one created.
package sticky

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Marker identifies the sticky comment
const Marker = "<!-- cachestat:sticky-report -->"

// ErrPermissionDenied is returned by a CommentService when the token may not write comments
var ErrPermissionDenied = errors.New("permission denied")

// Comment is an existing discussion comment
type Comment struct {
	ID   int64
	Body string
}

// CommentService lists, creates and updates comments on a thread
type CommentService interface {
	ListComments(ctx context.Context, thread int) ([]Comment, error)
	CreateComment(ctx context.Context, thread int, body string) (Comment, error)
	UpdateComment(ctx context.Context, id int64, body string) error
}

// Action is what Publish did
type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Skipped Action = "skipped"
)

const (
	ReasonNotApplicable    = "not-applicable"
	ReasonPermissionDenied = "permission-denied"
	ReasonNotConfigured    = "not-configured"
)

// Result describes the outcome of Publish
type Result struct {
	Action    Action
	CommentID int64

	// Reason is set when Action is Skipped
	Reason string
}

func (r Result) String() string {
	if r.Action == Skipped {
		return fmt.Sprintf("%s(%s)", r.Action, r.Reason)
	}

	return fmt.Sprintf("%s(%d)", r.Action, r.CommentID)
}

// Reporter publishes report bodies through a CommentService
type Reporter struct {
	svc    CommentService
	logger zerolog.Logger
}

// NewReporter creates a reporter. A nil svc makes every Publish a not-configured skip.
func NewReporter(svc CommentService, logger zerolog.Logger) *Reporter {
	return &Reporter{svc: svc, logger: logger}
}

// Publish updates the marked comment on thread, or creates it.
// A thread of 0 means there is no review context and nothing is sent.
// Permission errors are returned as a skip, not an error.
func (r *Reporter) Publish(ctx context.Context, body string, thread int) (Result, error) {
	if thread <= 0 {
		return Result{Action: Skipped, Reason: ReasonNotApplicable}, nil
	}

	if r.svc == nil {
		return Result{Action: Skipped, Reason: ReasonNotConfigured}, nil
	}

	full := Marker + "\n" + body

	res, err := r.publish(ctx, full, thread)
	if errors.Is(err, ErrPermissionDenied) {
		r.logger.Debug().Err(err).Int("thread", thread).Msg("Comment write rejected")
		return Result{Action: Skipped, Reason: ReasonPermissionDenied}, nil
	}

	return res, err
}

func (r *Reporter) publish(ctx context.Context, body string, thread int) (Result, error) {
	comments, err := r.svc.ListComments(ctx, thread)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list comments: %w", err)
	}

	if existing, ok := findMarked(comments); ok {
		r.logger.Debug().Int64("comment", existing.ID).Msg("Updating sticky comment")

		if err := r.svc.UpdateComment(ctx, existing.ID, body); err != nil {
			return Result{}, fmt.Errorf("failed to update comment %d: %w", existing.ID, err)
		}

		return Result{Action: Updated, CommentID: existing.ID}, nil
	}

	created, err := r.svc.CreateComment(ctx, thread, body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create comment: %w", err)
	}

	return Result{Action: Created, CommentID: created.ID}, nil
}

func findMarked(comments []Comment) (Comment, bool) {
	for _, c := range comments {
		if strings.Contains(c.Body, Marker) {
			return c, true
		}
	}

	return Comment{}, false
}
