package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// githubMaxInlineBytes caps how much file content is inlined into a
// comment. GitHub comments max out at 65536 characters.
const githubMaxInlineBytes = 60 << 10

// GitHubClient publishes escalations as issue comments. The Issues API has
// no attachment upload, so AttachFile posts the file as a fenced follow-up
// comment. Ticket refs use the form "owner/repo#123".
type GitHubClient struct {
	client *github.Client
}

// NewGitHub creates a GitHub Issues client authenticated with a static
// token.
func NewGitHub(token string) (*GitHubClient, error) {
	if token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), src)
	return &GitHubClient{client: github.NewClient(httpClient)}, nil
}

// NewGitHubWithClient creates a client around an existing *github.Client,
// used by tests to point at a stub server.
func NewGitHubWithClient(client *github.Client) *GitHubClient {
	return &GitHubClient{client: client}
}

// ParseIssueRef splits an "owner/repo#123" ticket ref.
func ParseIssueRef(ticketRef string) (owner, repo string, number int, err error) {
	repoPart, numPart, ok := strings.Cut(ticketRef, "#")
	if !ok {
		return "", "", 0, fmt.Errorf("github: ticket ref %q is not owner/repo#number", ticketRef)
	}
	owner, repo, ok = strings.Cut(repoPart, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", 0, fmt.Errorf("github: ticket ref %q is not owner/repo#number", ticketRef)
	}
	number, err = strconv.Atoi(numPart)
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("github: ticket ref %q has invalid issue number", ticketRef)
	}
	return owner, repo, number, nil
}

// PostComment publishes markdown as an issue comment and returns the
// comment id.
func (c *GitHubClient) PostComment(ctx context.Context, ticketRef, markdown string) (string, error) {
	const op = "post_comment"

	owner, repo, number, err := ParseIssueRef(ticketRef)
	if err != nil {
		return "", &Error{Kind: KindNotFound, Op: op, Message: err.Error(), Err: err}
	}

	comment := &github.IssueComment{Body: github.Ptr(markdown)}
	created, resp, err := c.client.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		return "", classifyGitHub(op, ticketRef, resp, err)
	}
	return strconv.FormatInt(created.GetID(), 10), nil
}

// AttachFile posts the file's content as a fenced follow-up comment.
func (c *GitHubClient) AttachFile(ctx context.Context, ticketRef, filePath string) error {
	const op = "attach_file"

	owner, repo, number, err := ParseIssueRef(ticketRef)
	if err != nil {
		return &Error{Kind: KindNotFound, Op: op, Message: err.Error(), Err: err}
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return &Error{Kind: KindFileUnreadable, Op: op, Message: fmt.Sprintf("read %s: %v", filePath, err), Err: err}
	}
	if len(data) > githubMaxInlineBytes {
		return &Error{
			Kind:    KindFileUnreadable,
			Op:      op,
			Message: fmt.Sprintf("%s is %dKB, too large to inline in a comment", filepath.Base(filePath), len(data)>>10),
		}
	}
	if !utf8.Valid(data) {
		return &Error{
			Kind:    KindFileUnreadable,
			Op:      op,
			Message: fmt.Sprintf("%s is binary, only text files can be inlined", filepath.Base(filePath)),
		}
	}

	body := fmt.Sprintf("**Attachment: `%s`**\n\n```\n%s\n```\n", filepath.Base(filePath), strings.TrimRight(string(data), "\n"))
	comment := &github.IssueComment{Body: github.Ptr(body)}
	_, resp, err := c.client.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		return classifyGitHub(op, ticketRef, resp, err)
	}
	return nil
}

// FetchTicket retrieves an issue and its comments.
func (c *GitHubClient) FetchTicket(ctx context.Context, ticketRef string) (*Ticket, error) {
	const op = "fetch_ticket"

	owner, repo, number, err := ParseIssueRef(ticketRef)
	if err != nil {
		return nil, &Error{Kind: KindNotFound, Op: op, Message: err.Error(), Err: err}
	}

	issue, resp, err := c.client.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, classifyGitHub(op, ticketRef, resp, err)
	}

	ticket := &Ticket{
		Ref:         ticketRef,
		Summary:     issue.GetTitle(),
		Description: issue.GetBody(),
		Status:      issue.GetState(),
		Reporter:    issue.GetUser().GetLogin(),
		Assignee:    issue.GetAssignee().GetLogin(),
	}

	comments, resp, err := c.client.Issues.ListComments(ctx, owner, repo, number, nil)
	if err != nil {
		return nil, classifyGitHub(op, ticketRef, resp, err)
	}
	for _, comment := range comments {
		ticket.Comments = append(ticket.Comments, TicketComment{
			Author:  comment.GetUser().GetLogin(),
			Body:    comment.GetBody(),
			Created: comment.GetCreatedAt().Format("2006-01-02T15:04:05Z"),
		})
	}
	return ticket, nil
}

// TestConnection verifies the token and returns the authenticated login.
func (c *GitHubClient) TestConnection(ctx context.Context) (string, error) {
	const op = "test_connection"

	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", classifyGitHub(op, "", resp, err)
	}
	return user.GetLogin(), nil
}

// classifyGitHub maps a go-github error to a classified Error.
func classifyGitHub(op, ticketRef string, resp *github.Response, err error) *Error {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return classifyGitHubStatus(op, ticketRef, errResp.Response.StatusCode, err)
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &Error{Kind: KindRateLimited, Op: op, Message: "GitHub rate limit exceeded", Err: err}
	}
	if resp != nil && resp.StatusCode >= 400 {
		return classifyGitHubStatus(op, ticketRef, resp.StatusCode, err)
	}
	return netError(op, err)
}

func classifyGitHubStatus(op, ticketRef string, status int, err error) *Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Kind: KindAuth, Op: op, Message: "invalid or unauthorized token", Err: err}
	case http.StatusNotFound:
		return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("issue %s not found", ticketRef), Err: err}
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Op: op, Message: "GitHub rate limited", Err: err}
	default:
		return &Error{Kind: KindServerError, Op: op, Message: fmt.Sprintf("GitHub returned %d", status), Err: err}
	}
}
