// Package publisher wraps the remote ticket-system side effects (post a
// comment, attach a file) behind a uniform interface with per-call error
// classification.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies a remote-call failure. The pipeline uses it to decide
// what is worth retrying and what needs user action.
type Kind string

const (
	KindAuth           Kind = "auth"
	KindNotFound       Kind = "not_found"
	KindRateLimited    Kind = "rate_limited"
	KindNetwork        Kind = "network"
	KindServerError    Kind = "server_error"
	KindFileUnreadable Kind = "file_unreadable"
)

// Error is a classified remote-call failure.
type Error struct {
	Kind    Kind
	Op      string // e.g. "post_comment", "attach_file"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("publisher: %s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("publisher: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a later identical call might succeed without
// user action. Auth, not-found and unreadable-file failures need a human;
// server errors are ambiguous and treated as retryable.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindNetwork, KindServerError:
		return true
	}
	return false
}

// Publisher is the capability set the posting pipeline needs. Both
// operations send exactly once per call; the caller decides about retries.
type Publisher interface {
	// PostComment publishes markdown as a comment on the ticket and
	// returns the remote comment id.
	PostComment(ctx context.Context, ticketRef, markdown string) (string, error)
	// AttachFile uploads a local file to the ticket.
	AttachFile(ctx context.Context, ticketRef, filePath string) error
}

// netError converts a transport-level failure into a classified Error.
// Timeouts and connection failures are all KindNetwork.
func netError(op string, err error) *Error {
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			msg = fmt.Sprintf("timeout: %v", urlErr.Err)
		}
	} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
		msg = fmt.Sprintf("timeout: %v", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "deadline exceeded"
	}
	return &Error{Kind: KindNetwork, Op: op, Message: msg, Err: err}
}

// statusError maps an HTTP response status to a classified Error.
func statusError(op string, status int, message string) *Error {
	var kind Kind
	switch {
	case status == 401 || status == 403:
		kind = KindAuth
	case status == 404:
		kind = KindNotFound
	case status == 429:
		kind = KindRateLimited
	case status == 413:
		// File rejected as too large: the user must fix the file.
		kind = KindFileUnreadable
	default:
		kind = KindServerError
	}
	if message == "" {
		message = fmt.Sprintf("remote returned %d", status)
	}
	return &Error{Kind: kind, Op: op, Message: message}
}
