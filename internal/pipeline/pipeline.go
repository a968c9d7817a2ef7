// Package pipeline orchestrates publishing an escalation to the remote
// ticket system: post the comment, upload attachments in order, update the
// status state machine, and record every action in the audit trail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/models"
	"github.com/zulandar/handoff/internal/publisher"
	"github.com/zulandar/handoff/internal/render"
	"gorm.io/gorm"
)

// DefaultCallTimeout bounds one remote call so a hung upload cannot block
// the remaining attachments indefinitely.
const DefaultCallTimeout = 5 * time.Minute

var (
	// ErrAlreadyPosted is returned when posting an escalation that is
	// already posted. Nothing is written.
	ErrAlreadyPosted = errors.New("escalation already posted")
	// ErrNotInFailedState is returned when retrying an escalation that is
	// not in post_failed. Nothing is written.
	ErrNotInFailedState = errors.New("escalation is not in a failed state")
	// ErrAlreadyInProgress is returned when a run for the same escalation
	// id is already in flight. Nothing is written.
	ErrAlreadyInProgress = errors.New("a posting run is already in progress for this escalation")
)

// RenderFunc produces the markdown comment for an escalation.
type RenderFunc func(db *gorm.DB, esc *models.Escalation) (string, error)

// Coordinator drives posting runs. At most one run per escalation id is
// active at a time, enforced by an in-memory per-id token on top of the
// store's optimistic status check.
type Coordinator struct {
	db          *gorm.DB
	pub         publisher.Publisher
	renderFn    RenderFunc
	callTimeout time.Duration

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// Opts holds parameters for creating a Coordinator.
type Opts struct {
	DB          *gorm.DB
	Publisher   publisher.Publisher
	Render      RenderFunc    // defaults to the built-in markdown renderer
	CallTimeout time.Duration // defaults to DefaultCallTimeout
}

// New creates a Coordinator.
func New(opts Opts) (*Coordinator, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("pipeline: db is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("pipeline: publisher is required")
	}
	c := &Coordinator{
		db:          opts.DB,
		pub:         opts.Publisher,
		renderFn:    opts.Render,
		callTimeout: opts.CallTimeout,
		inFlight:    make(map[int64]struct{}),
	}
	if c.renderFn == nil {
		c.renderFn = defaultRender
	}
	if c.callTimeout <= 0 {
		c.callTimeout = DefaultCallTimeout
	}
	return c, nil
}

// Post publishes a draft or previously failed escalation: comment first,
// then each attachment in input order. Returns ErrAlreadyPosted,
// ErrAlreadyInProgress or escalation.ErrNotFound before any side effect.
func (c *Coordinator) Post(ctx context.Context, id int64, filePaths []string) (*PostResult, error) {
	if !c.acquire(id) {
		return nil, fmt.Errorf("pipeline: escalation %d: %w", id, ErrAlreadyInProgress)
	}
	defer c.release(id)

	esc, err := escalation.Get(c.db, id)
	if err != nil {
		return nil, err
	}
	status := escalation.Status(esc.Status)
	if status == escalation.StatusPosted {
		return nil, fmt.Errorf("pipeline: escalation %d: %w", id, ErrAlreadyPosted)
	}
	if !status.CanPost() {
		return nil, fmt.Errorf("pipeline: escalation %d has invalid status %q", id, esc.Status)
	}

	return c.run(ctx, esc, filePaths, false)
}

// Retry re-invokes the pipeline for an escalation in post_failed. Steps the
// audit trail records as already succeeded are skipped: a recorded
// post_succeeded suppresses the comment, and each attachment with a
// recorded attachment_succeeded is not re-sent. This is what keeps retries
// from double-posting.
func (c *Coordinator) Retry(ctx context.Context, id int64, filePaths []string) (*PostResult, error) {
	if !c.acquire(id) {
		return nil, fmt.Errorf("pipeline: escalation %d: %w", id, ErrAlreadyInProgress)
	}
	defer c.release(id)

	esc, err := escalation.Get(c.db, id)
	if err != nil {
		return nil, err
	}
	if escalation.Status(esc.Status) != escalation.StatusPostFailed {
		return nil, fmt.Errorf("pipeline: escalation %d is %s: %w", id, esc.Status, ErrNotInFailedState)
	}

	return c.run(ctx, esc, filePaths, true)
}

// run executes one pipeline pass. The caller has already validated the
// precondition and holds the in-flight token.
func (c *Coordinator) run(ctx context.Context, esc *models.Escalation, filePaths []string, isRetry bool) (*PostResult, error) {
	result := &PostResult{EscalationID: esc.ID}

	// Step 1: make sure the markdown we send is cached on the record.
	// A fresh post always re-renders (fields may have changed since the
	// last cache); a retry reuses the cached artifact when present so the
	// retried comment matches what the first attempt sent.
	markdown, err := c.ensureMarkdown(esc, isRetry)
	if err != nil {
		return nil, err
	}
	// Reload so the optimistic status check sees the markdown write.
	esc, err = escalation.Get(c.db, esc.ID)
	if err != nil {
		return nil, err
	}
	loadedAt := esc.UpdatedAt

	// Step 2: the comment. A comment failure stops the run — files with no
	// context comment on the ticket would be misleading.
	skipComment := false
	if isRetry {
		skipComment, err = escalation.HasAudit(c.db, esc.ID, escalation.ActionPostSucceeded)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case skipComment:
		result.Comment = CommentOutcome{State: OutcomeSkipped}
	default:
		if err := escalation.AppendAudit(c.db, esc.ID, escalation.ActionPostAttempted, ""); err != nil {
			return nil, err
		}
		remoteID, postErr := c.postComment(ctx, esc.TicketRef, markdown)
		if postErr != nil {
			if err := escalation.AppendAudit(c.db, esc.ID, escalation.ActionPostFailed, classifiedDetails(postErr)); err != nil {
				return nil, err
			}
			if err := escalation.UpdateStatus(c.db, esc.ID, escalation.StatusPostFailed, nil, loadedAt); err != nil {
				return nil, err
			}
			result.Comment = CommentOutcome{
				State:   OutcomeFailure,
				Kind:    postErr.Kind,
				Message: postErr.Message,
			}
			result.FinalStatus = escalation.StatusPostFailed
			return result, nil
		}
		if err := escalation.AppendAudit(c.db, esc.ID, escalation.ActionPostSucceeded, remoteID); err != nil {
			return nil, err
		}
		result.Comment = CommentOutcome{State: OutcomeSuccess, RemoteID: remoteID}
	}

	// Step 3: attachments, strictly in input order, continuing past
	// failures. Partial attachment success is a valid, reportable end
	// state.
	for _, path := range filePaths {
		name := filepath.Base(path)

		if isRetry {
			done, err := escalation.HasAuditDetail(c.db, esc.ID, escalation.ActionAttachmentSucceeded, name)
			if err != nil {
				return nil, err
			}
			if done {
				result.Attachments = append(result.Attachments, AttachmentOutcome{File: name, State: OutcomeSkipped})
				continue
			}
		}

		if err := escalation.AppendAudit(c.db, esc.ID, escalation.ActionAttachmentAttempted, name); err != nil {
			return nil, err
		}
		attachErr := c.attachFile(ctx, esc.TicketRef, path)
		if attachErr != nil {
			details := fmt.Sprintf("%s: %s", name, classifiedDetails(attachErr))
			if err := escalation.AppendAudit(c.db, esc.ID, escalation.ActionAttachmentFailed, details); err != nil {
				return nil, err
			}
			result.Attachments = append(result.Attachments, AttachmentOutcome{
				File:    name,
				State:   OutcomeFailure,
				Kind:    attachErr.Kind,
				Message: attachErr.Message,
			})
			continue
		}
		if err := escalation.AppendAudit(c.db, esc.ID, escalation.ActionAttachmentSucceeded, name); err != nil {
			return nil, err
		}
		result.Attachments = append(result.Attachments, AttachmentOutcome{File: name, State: OutcomeSuccess})
	}

	// Step 4: classify the overall outcome and move the status machine.
	if len(result.FailedAttachments()) == 0 {
		now := time.Now()
		if err := escalation.UpdateStatus(c.db, esc.ID, escalation.StatusPosted, &now, loadedAt); err != nil {
			return nil, err
		}
		result.FinalStatus = escalation.StatusPosted
	} else {
		if err := escalation.UpdateStatus(c.db, esc.ID, escalation.StatusPostFailed, nil, loadedAt); err != nil {
			return nil, err
		}
		result.FinalStatus = escalation.StatusPostFailed
	}
	if err := escalation.AppendAudit(c.db, esc.ID, escalation.ActionStatusChanged, string(result.FinalStatus)); err != nil {
		return nil, err
	}
	return result, nil
}

// ensureMarkdown returns the markdown to send, rendering and caching it
// when needed.
func (c *Coordinator) ensureMarkdown(esc *models.Escalation, isRetry bool) (string, error) {
	if isRetry && esc.MarkdownOutput != nil && *esc.MarkdownOutput != "" {
		return *esc.MarkdownOutput, nil
	}
	markdown, err := c.renderFn(c.db, esc)
	if err != nil {
		return "", fmt.Errorf("pipeline: render escalation %d: %w", esc.ID, err)
	}
	if err := escalation.UpdateMarkdown(c.db, esc.ID, markdown); err != nil {
		return "", err
	}
	return markdown, nil
}

// postComment calls the publisher with a per-call timeout and guarantees a
// classified error.
func (c *Coordinator) postComment(ctx context.Context, ticketRef, markdown string) (string, *publisher.Error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	remoteID, err := c.pub.PostComment(callCtx, ticketRef, markdown)
	if err != nil {
		return "", classify("post_comment", err)
	}
	return remoteID, nil
}

// attachFile calls the publisher with a per-call timeout and guarantees a
// classified error.
func (c *Coordinator) attachFile(ctx context.Context, ticketRef, path string) *publisher.Error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	if err := c.pub.AttachFile(callCtx, ticketRef, path); err != nil {
		return classify("attach_file", err)
	}
	return nil
}

// classify coerces any publisher failure into a classified error. Timeouts
// count as network; anything else unclassified is a server error.
func classify(op string, err error) *publisher.Error {
	var pubErr *publisher.Error
	if errors.As(err, &pubErr) {
		return pubErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &publisher.Error{Kind: publisher.KindNetwork, Op: op, Message: "call timed out", Err: err}
	}
	return &publisher.Error{Kind: publisher.KindServerError, Op: op, Message: err.Error(), Err: err}
}

// classifiedDetails formats an error for the audit trail: kind first, then
// the message.
func classifiedDetails(err *publisher.Error) string {
	if err.Message == "" {
		return string(err.Kind)
	}
	return fmt.Sprintf("%s: %s", err.Kind, err.Message)
}

// defaultRender renders with the escalation's template, when it has one.
func defaultRender(db *gorm.DB, esc *models.Escalation) (string, error) {
	var tmpl *models.Template
	if esc.TemplateID != nil {
		var loaded models.Template
		if err := db.First(&loaded, *esc.TemplateID).Error; err == nil {
			tmpl = &loaded
		}
	}
	return render.Markdown(esc, tmpl)
}

// acquire takes the per-id run token. Returns false when a run is already
// in flight for the id.
func (c *Coordinator) acquire(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[id]; busy {
		return false
	}
	c.inFlight[id] = struct{}{}
	return true
}

// release frees the per-id run token. Called on every exit path.
func (c *Coordinator) release(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}
