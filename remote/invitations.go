// ABOUTME: Remote invitation lifecycle operations
// ABOUTME: Create, list, and delete invitation records on the backend
package remote

import (
	"context"
	"fmt"
	"time"
)

// InvitationAttributes is the payload of a remote invitation record.
type InvitationAttributes struct {
	Telephone   string     `json:"telephone"`
	Channel     string     `json:"channel"`
	Status      string     `json:"status"`
	SentAt      time.Time  `json:"sent_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// RemoteInvitation is an invitation record as the backend stores it.
type RemoteInvitation struct {
	ID string
	InvitationAttributes
}

type invitationEntry struct {
	ID         int64                `json:"id"`
	Attributes InvitationAttributes `json:"attributes"`
}

type invitationListEnvelope struct {
	Data []invitationEntry `json:"data"`
	Meta struct {
		Pagination Pagination `json:"pagination"`
	} `json:"meta"`
}

type invitationEnvelope struct {
	Data invitationEntry `json:"data"`
}

type invitationBody struct {
	Data InvitationAttributes `json:"data"`
}

func toRemoteInvitation(e invitationEntry) RemoteInvitation {
	return RemoteInvitation{ID: formatID(e.ID), InvitationAttributes: e.Attributes}
}

// CreateInvitation records a sent invitation on the backend.
func (c *Client) CreateInvitation(ctx context.Context, attrs InvitationAttributes) (*RemoteInvitation, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var envelope invitationEnvelope
	resp, err := req.
		SetBody(invitationBody{Data: attrs}).
		SetResult(&envelope).
		Post("/invitations")
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, err
	}

	created := toRemoteInvitation(envelope.Data)
	return &created, nil
}

// DeleteInvitation cancels an invitation. A 404 means it is already gone.
func (c *Client) DeleteInvitation(ctx context.Context, remoteID string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.Delete("/invitations/" + remoteID)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil
	}
	return classify(resp)
}

// ListInvitations fetches one page of invitation records.
func (c *Client) ListInvitations(ctx context.Context, page, pageSize int) ([]RemoteInvitation, Pagination, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, Pagination{}, err
	}

	var envelope invitationListEnvelope
	resp, err := req.
		SetQueryParam("pagination[page]", fmt.Sprintf("%d", page)).
		SetQueryParam("pagination[pageSize]", fmt.Sprintf("%d", pageSize)).
		SetResult(&envelope).
		Get("/invitations")
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list invitations: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, Pagination{}, err
	}

	invitations := make([]RemoteInvitation, len(envelope.Data))
	for i, e := range envelope.Data {
		invitations[i] = toRemoteInvitation(e)
	}
	return invitations, envelope.Meta.Pagination, nil
}
