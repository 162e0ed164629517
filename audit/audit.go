// Package audit searches the organization audit log page by page.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jathurchan/proknow/client"
)

// DefaultPageSize is used when a query does not set one.
const DefaultPageSize = 25

const searchRoute = "/audit/events/search"

// ErrNoMorePages is returned by Next on the last page.
var ErrNoMorePages = errors.New("no more audit log pages")

// Query filters audit events. Zero fields are not sent.
type Query struct {
	PageSize     int        `json:"page_size,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Types        []string   `json:"types,omitempty"`
	UserName     string     `json:"user_name,omitempty"`
	PatientName  string     `json:"patient_name,omitempty"`
	WorkspaceID  string     `json:"workspace_id,omitempty"`
	ResourceID   string     `json:"resource_id,omitempty"`
	Methods      []string   `json:"methods,omitempty"`
	URI          string     `json:"uri,omitempty"`
	StatusCodes  []string   `json:"status_codes,omitempty"`
	UserAgent    string     `json:"user_agent,omitempty"`
	IPAddress    string     `json:"ip_address,omitempty"`
	Organization string     `json:"organization_id,omitempty"`
}

// Event is one audit log entry.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	UserID        string    `json:"user_id,omitempty"`
	UserName      string    `json:"user_name,omitempty"`
	PatientID     string    `json:"patient_id,omitempty"`
	PatientName   string    `json:"patient_name,omitempty"`
	WorkspaceID   string    `json:"workspace_id,omitempty"`
	WorkspaceName string    `json:"workspace_name,omitempty"`
	ResourceID    string    `json:"resource_id,omitempty"`
	ResourceName  string    `json:"resource_name,omitempty"`
	Method        string    `json:"method,omitempty"`
	URI           string    `json:"uri,omitempty"`
	StatusCode    string    `json:"status_code,omitempty"`
}

// Page is one page of search results.
type Page struct {
	Total      int
	Items      []Event
	PageNumber int

	logs  *Logs
	query Query
}

type searchRequest struct {
	Query
	PageNumber int `json:"page_number"`
}

type searchResponse struct {
	Total int     `json:"total"`
	Items []Event `json:"items"`
}

// Logs is the audit log service.
type Logs struct {
	requestor client.Requestor
}

// New creates the audit log service.
func New(requestor client.Requestor) *Logs {
	return &Logs{requestor: requestor}
}

// Query returns the first page of events matching q.
func (l *Logs) Query(ctx context.Context, q Query) (*Page, error) {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	return l.page(ctx, q, 0)
}

func (l *Logs) page(ctx context.Context, q Query, number int) (*Page, error) {
	var resp searchResponse
	if err := l.requestor.Post(ctx, searchRoute, searchRequest{Query: q, PageNumber: number}, &resp, client.WithRetry()); err != nil {
		return nil, fmt.Errorf("failed to search audit log page %d: %w", number, err)
	}
	return &Page{
		Total:      resp.Total,
		Items:      resp.Items,
		PageNumber: number,
		logs:       l,
		query:      q,
	}, nil
}

// HasNext reports whether more events follow this page.
func (p *Page) HasNext() bool {
	return (p.PageNumber+1)*p.query.PageSize < p.Total
}

// Next fetches the following page with the same filters.
func (p *Page) Next(ctx context.Context) (*Page, error) {
	if !p.HasNext() {
		return nil, ErrNoMorePages
	}
	return p.logs.page(ctx, p.query, p.PageNumber+1)
}
