// ABOUTME: Remote contact record operations
// ABOUTME: Lookup by phone, paginated listing, create, search by name, delete
package remote

import (
	"context"
	"fmt"
)

// ContactAttributes is the synchronizable portion of a remote contact record.
type ContactAttributes struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Telephone string `json:"telephone"`
}

// RemoteContact is a contact record as the backend stores it.
type RemoteContact struct {
	ID string
	ContactAttributes
}

// Pagination describes one page of a remote listing.
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type contactEntry struct {
	ID         int64             `json:"id"`
	Attributes ContactAttributes `json:"attributes"`
}

type contactListEnvelope struct {
	Data []contactEntry `json:"data"`
	Meta struct {
		Pagination Pagination `json:"pagination"`
	} `json:"meta"`
}

type contactEnvelope struct {
	Data contactEntry `json:"data"`
}

type contactBody struct {
	Data ContactAttributes `json:"data"`
}

func toRemoteContact(e contactEntry) RemoteContact {
	return RemoteContact{ID: formatID(e.ID), ContactAttributes: e.Attributes}
}

// FindContactByPhone looks up a remote contact by normalized phone. A miss
// returns (nil, nil).
func (c *Client) FindContactByPhone(ctx context.Context, phone string) (*RemoteContact, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var envelope contactListEnvelope
	resp, err := req.
		SetQueryParam("filters[telephone][$eq]", phone).
		SetResult(&envelope).
		Get("/contacts")
	if err != nil {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, err
	}

	if len(envelope.Data) == 0 {
		return nil, nil
	}
	found := toRemoteContact(envelope.Data[0])
	return &found, nil
}

// ListContacts fetches one page of the remote contact collection.
func (c *Client) ListContacts(ctx context.Context, page, pageSize int) ([]RemoteContact, Pagination, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, Pagination{}, err
	}

	var envelope contactListEnvelope
	resp, err := req.
		SetQueryParam("pagination[page]", fmt.Sprintf("%d", page)).
		SetQueryParam("pagination[pageSize]", fmt.Sprintf("%d", pageSize)).
		SetResult(&envelope).
		Get("/contacts")
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list contacts: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, Pagination{}, err
	}

	contacts := make([]RemoteContact, len(envelope.Data))
	for i, e := range envelope.Data {
		contacts[i] = toRemoteContact(e)
	}
	return contacts, envelope.Meta.Pagination, nil
}

// SearchContactsByName finds remote contacts whose name contains the query.
// Fallback lookup strategy for deletions when no remote id or phone match is
// available.
func (c *Client) SearchContactsByName(ctx context.Context, name string) ([]RemoteContact, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var envelope contactListEnvelope
	resp, err := req.
		SetQueryParam("filters[name][$containsi]", name).
		SetResult(&envelope).
		Get("/contacts")
	if err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, err
	}

	contacts := make([]RemoteContact, len(envelope.Data))
	for i, e := range envelope.Data {
		contacts[i] = toRemoteContact(e)
	}
	return contacts, nil
}

// CreateContact creates a remote contact record and returns it with its
// stable remote identifier. A duplicate yields ErrConflict.
func (c *Client) CreateContact(ctx context.Context, attrs ContactAttributes) (*RemoteContact, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var envelope contactEnvelope
	resp, err := req.
		SetBody(contactBody{Data: attrs}).
		SetResult(&envelope).
		Post("/contacts")
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, err
	}

	created := toRemoteContact(envelope.Data)
	return &created, nil
}

// DeleteContact removes a remote contact record. A 404 means the record is
// already gone and is not an error.
func (c *Client) DeleteContact(ctx context.Context, remoteID string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.Delete("/contacts/" + remoteID)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil
	}
	return classify(resp)
}
