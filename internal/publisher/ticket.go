package publisher

import "context"

// Ticket is the remote ticket view used to prefill an escalation and feed
// the LLM summarizer.
type Ticket struct {
	Ref         string
	Summary     string
	Description string
	Status      string
	Reporter    string
	Assignee    string
	Comments    []TicketComment
}

// TicketComment is one comment on a remote ticket.
type TicketComment struct {
	Author  string
	Body    string
	Created string
}

// Fetcher reads tickets from the remote system. Kept separate from
// Publisher: the pipeline only publishes, the editing flow only fetches.
type Fetcher interface {
	FetchTicket(ctx context.Context, ticketRef string) (*Ticket, error)
}

// ConnectionTester verifies credentials against the remote system and
// returns the authenticated display name.
type ConnectionTester interface {
	TestConnection(ctx context.Context) (string, error)
}
