// ABOUTME: Remote registered-account listing
// ABOUTME: Paginated user records feed the registered-accounts cache
package remote

import (
	"context"
	"fmt"
	"time"
)

// RemoteUser summarizes a registered account on the backend.
type RemoteUser struct {
	ID           string
	Handle       string
	Telephone    string
	RewardPoints int
	Tier         string
	IsOnline     bool
	LastActiveAt *time.Time
}

type userEntry struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Telephone    string     `json:"telephone"`
	RewardPoints int        `json:"reward_points"`
	Tier         string     `json:"tier"`
	IsOnline     bool       `json:"is_online"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

type userListEnvelope struct {
	Data []userEntry `json:"data"`
	Meta struct {
		Pagination Pagination `json:"pagination"`
	} `json:"meta"`
}

func toRemoteUser(e userEntry) RemoteUser {
	return RemoteUser{
		ID:           formatID(e.ID),
		Handle:       e.Username,
		Telephone:    e.Telephone,
		RewardPoints: e.RewardPoints,
		Tier:         e.Tier,
		IsOnline:     e.IsOnline,
		LastActiveAt: e.LastActiveAt,
	}
}

// ListUsers fetches one page of registered accounts.
func (c *Client) ListUsers(ctx context.Context, page, pageSize int) ([]RemoteUser, Pagination, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, Pagination{}, err
	}

	var envelope userListEnvelope
	resp, err := req.
		SetQueryParam("pagination[page]", fmt.Sprintf("%d", page)).
		SetQueryParam("pagination[pageSize]", fmt.Sprintf("%d", pageSize)).
		SetResult(&envelope).
		Get("/users")
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list users: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, Pagination{}, err
	}

	users := make([]RemoteUser, len(envelope.Data))
	for i, e := range envelope.Data {
		users[i] = toRemoteUser(e)
	}
	return users, envelope.Meta.Pagination, nil
}
