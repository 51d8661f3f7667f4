package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/quickcheckhq/realtime/internal/model"
)

// GetInProgress fetches every in-progress (draft) quick check visible to
// the authenticated user.
func (c *Client) GetInProgress(ctx context.Context) ([]model.Inspection, error) {
	return c.list(ctx, "in_progress")
}

// GetSubmitted fetches every submitted quick check.
func (c *Client) GetSubmitted(ctx context.Context) ([]model.Inspection, error) {
	return c.list(ctx, "submitted")
}

func (c *Client) list(ctx context.Context, status string) ([]model.Inspection, error) {
	query := url.Values{}
	query.Set("status", status)

	var resp ListResponse
	if err := c.get(ctx, "/quick-checks", query, &resp); err != nil {
		return nil, fmt.Errorf("list %s quick checks: %w", status, err)
	}

	return resp.QuickChecks, nil
}

// GetQuickCheck fetches a single quick check by id.
func (c *Client) GetQuickCheck(ctx context.Context, id int64) (*model.Inspection, error) {
	var resp SingleResponse
	if err := c.get(ctx, "/quick-checks/"+strconv.FormatInt(id, 10), nil, &resp); err != nil {
		return nil, fmt.Errorf("get quick check %d: %w", id, err)
	}
	return &resp.QuickCheck, nil
}

// Archive archives a submitted quick check. The server broadcasts the
// resulting mutation over the websocket feed.
func (c *Client) Archive(ctx context.Context, id int64, reason string) error {
	path := "/quick-checks/" + strconv.FormatInt(id, 10) + "/archive"
	if err := c.post(ctx, path, archiveRequest{Reason: reason}, nil); err != nil {
		return fmt.Errorf("archive quick check %d: %w", id, err)
	}
	return nil
}

// Delete removes a quick check entirely.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.del(ctx, "/quick-checks/"+strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("delete quick check %d: %w", id, err)
	}
	return nil
}

// Submit promotes a draft to submitted with its final payload. The
// returned record carries the server-assigned timestamps.
func (c *Client) Submit(ctx context.Context, draftID int64, data model.Payload) (*model.Inspection, error) {
	path := "/quick-checks/" + strconv.FormatInt(draftID, 10) + "/submit"

	var resp SingleResponse
	if err := c.post(ctx, path, submitRequest{Data: data}, &resp); err != nil {
		return nil, fmt.Errorf("submit quick check %d: %w", draftID, err)
	}
	return &resp.QuickCheck, nil
}
