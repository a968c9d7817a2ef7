package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	// jiraDefaultTimeout bounds standard API calls.
	jiraDefaultTimeout = 10 * time.Second
	// jiraUploadTimeout bounds attachment uploads.
	jiraUploadTimeout = 5 * time.Minute
	// jiraMaxAttachmentBytes is Jira's attachment size limit.
	jiraMaxAttachmentBytes = 100 << 20
)

// JiraClient talks to the Jira Cloud REST API v3. It implements Publisher,
// Fetcher and ConnectionTester.
type JiraClient struct {
	baseURL      string
	email        string
	apiToken     string
	client       *http.Client
	uploadClient *http.Client
}

// JiraOpts holds parameters for creating a JiraClient.
type JiraOpts struct {
	BaseURL  string // e.g. https://yourteam.atlassian.net
	Email    string
	APIToken string
	// For testing: inject HTTP clients instead of the defaults.
	Client       *http.Client
	UploadClient *http.Client
}

// NewJira creates a Jira client with separate timeouts for standard calls
// and uploads.
func NewJira(opts JiraOpts) (*JiraClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("jira: base URL is required")
	}
	if opts.Email == "" || opts.APIToken == "" {
		return nil, fmt.Errorf("jira: email and API token are required")
	}

	c := &JiraClient{
		baseURL:      opts.BaseURL,
		email:        opts.Email,
		apiToken:     opts.APIToken,
		client:       opts.Client,
		uploadClient: opts.UploadClient,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: jiraDefaultTimeout}
	}
	if c.uploadClient == nil {
		c.uploadClient = &http.Client{Timeout: jiraUploadTimeout}
	}
	return c, nil
}

func (c *JiraClient) authHeader() string {
	credentials := c.email + ":" + c.apiToken
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}

// PostComment publishes markdown as a comment on the issue and returns the
// remote comment id.
func (c *JiraClient) PostComment(ctx context.Context, ticketRef, markdown string) (string, error) {
	const op = "post_comment"

	// Minimal ADF wrapper around the rendered text.
	payload := map[string]interface{}{
		"body": map[string]interface{}{
			"type":    "doc",
			"version": 1,
			"content": []interface{}{
				map[string]interface{}{
					"type": "paragraph",
					"content": []interface{}{
						map[string]interface{}{"type": "text", "text": markdown},
					},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Kind: KindServerError, Op: op, Message: fmt.Sprintf("encode body: %v", err), Err: err}
	}

	url := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", c.baseURL, ticketRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", netError(op, err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", netError(op, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(op, ticketRef, resp); err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", &Error{Kind: KindServerError, Op: op, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return created.ID, nil
}

// AttachFile uploads a local file to the issue.
func (c *JiraClient) AttachFile(ctx context.Context, ticketRef, filePath string) error {
	const op = "attach_file"

	info, err := os.Stat(filePath)
	if err != nil {
		return &Error{Kind: KindFileUnreadable, Op: op, Message: fmt.Sprintf("file not found: %s", filePath), Err: err}
	}
	if info.Size() > jiraMaxAttachmentBytes {
		return &Error{
			Kind:    KindFileUnreadable,
			Op:      op,
			Message: fmt.Sprintf("file too large (%dMB), Jira limit is 100MB", info.Size()>>20),
		}
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return &Error{Kind: KindFileUnreadable, Op: op, Message: fmt.Sprintf("read %s: %v", filePath, err), Err: err}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return &Error{Kind: KindFileUnreadable, Op: op, Message: fmt.Sprintf("build multipart: %v", err), Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return &Error{Kind: KindFileUnreadable, Op: op, Message: fmt.Sprintf("build multipart: %v", err), Err: err}
	}
	if err := writer.Close(); err != nil {
		return &Error{Kind: KindFileUnreadable, Op: op, Message: fmt.Sprintf("build multipart: %v", err), Err: err}
	}

	url := fmt.Sprintf("%s/rest/api/3/issue/%s/attachments", c.baseURL, ticketRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return netError(op, err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", writer.FormDataContentType())
	// Required by Jira for multipart uploads.
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return netError(op, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return c.checkStatus(op, ticketRef, resp)
}

// FetchTicket retrieves the issue fields used to prefill an escalation.
func (c *JiraClient) FetchTicket(ctx context.Context, ticketRef string) (*Ticket, error) {
	const op = "fetch_ticket"

	url := fmt.Sprintf(
		"%s/rest/api/3/issue/%s?fields=summary,description,status,reporter,assignee,comment",
		c.baseURL, ticketRef,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, netError(op, err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, netError(op, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(op, ticketRef, resp); err != nil {
		return nil, err
	}

	var issue jiraIssueResponse
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, &Error{Kind: KindServerError, Op: op, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}

	ticket := &Ticket{
		Ref:         issue.Key,
		Summary:     issue.Fields.Summary,
		Description: issue.Fields.Description,
		Status:      issue.Fields.Status.Name,
	}
	if issue.Fields.Reporter != nil {
		ticket.Reporter = issue.Fields.Reporter.DisplayName
	}
	if issue.Fields.Assignee != nil {
		ticket.Assignee = issue.Fields.Assignee.DisplayName
	}
	for _, comment := range issue.Fields.Comment.Comments {
		ticket.Comments = append(ticket.Comments, TicketComment{
			Author:  comment.Author.DisplayName,
			Body:    comment.Body,
			Created: comment.Created,
		})
	}
	return ticket, nil
}

// TestConnection verifies credentials and returns the account display name.
func (c *JiraClient) TestConnection(ctx context.Context) (string, error) {
	const op = "test_connection"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/api/3/myself", nil)
	if err != nil {
		return "", netError(op, err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", netError(op, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(op, "", resp); err != nil {
		return "", err
	}

	var myself struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&myself); err != nil {
		return "", &Error{Kind: KindServerError, Op: op, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return myself.DisplayName, nil
}

// checkStatus returns nil for 2xx and a classified Error otherwise.
func (c *JiraClient) checkStatus(op, ticketRef string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var msg string
	switch resp.StatusCode {
	case 401:
		msg = "invalid credentials"
	case 403:
		msg = fmt.Sprintf("no permission on %s, check API token permissions", ticketRef)
	case 404:
		msg = fmt.Sprintf("ticket %s not found", ticketRef)
	case 429:
		retryAfter := resp.Header.Get("Retry-After")
		if retryAfter == "" {
			retryAfter = "60"
		}
		msg = fmt.Sprintf("rate limited, retry in %s seconds", retryAfter)
	case 413:
		msg = "file rejected by Jira as too large, try compressing it"
	default:
		msg = fmt.Sprintf("Jira returned %d", resp.StatusCode)
	}
	return statusError(op, resp.StatusCode, msg)
}

// Jira API response structures.
type jiraIssueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		Reporter *jiraUser `json:"reporter"`
		Assignee *jiraUser `json:"assignee"`
		Comment  struct {
			Comments []struct {
				Author  jiraUser `json:"author"`
				Body    string   `json:"body"`
				Created string   `json:"created"`
			} `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
}

type jiraUser struct {
	DisplayName string `json:"displayName"`
}
