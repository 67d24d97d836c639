// ABOUTME: Data models for the contact unification engine
// ABOUTME: Defines Contact, its source variants, invitations, and raw device records
package models

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies which of the four contact origins a Contact is in.
// Sources are states, not separate entities: the same phone moves forward
// through device -> curated -> registered (or invited) over its lifetime.
type Source string

const (
	SourceDevice     Source = "device"
	SourceCurated    Source = "curated"
	SourceRegistered Source = "registered"
	SourceInvited    Source = "invited"
)

// Sources lists every source in persistence order.
var Sources = []Source{SourceDevice, SourceCurated, SourceRegistered, SourceInvited}

// Invitation status constants.
const (
	InvitationSent      = "sent"
	InvitationDelivered = "delivered"
	InvitationRead      = "read"
	InvitationAccepted  = "accepted"
	InvitationDeclined  = "declined"
	InvitationExpired   = "expired"
)

// Invitation channel constants.
const (
	ChannelSMS          = "sms"
	ChannelWhatsApp     = "whatsapp"
	ChannelNotification = "notification"
)

type Contact struct {
	ID          uuid.UUID `json:"id"`
	Phone       string    `json:"phone"` // normalized, the business key
	DisplayName string    `json:"display_name"`
	GivenName   string    `json:"given_name,omitempty"`
	FamilyName  string    `json:"family_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	AvatarRef   string    `json:"avatar_ref,omitempty"`

	Source Source `json:"source"`

	// Tri-state: nil means unknown, set after a detection run.
	IsRegistered *bool `json:"is_registered,omitempty"`

	Device     *DevicePayload     `json:"device,omitempty"`
	Curated    *CuratedPayload    `json:"curated,omitempty"`
	Registered *RegisteredPayload `json:"registered,omitempty"`
	Invitation *Invitation        `json:"invitation,omitempty"`

	RemoteID     string `json:"remote_id,omitempty"`
	RemoteDocRef string `json:"remote_doc_ref,omitempty"`
	ContentHash  string `json:"content_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DevicePayload struct {
	RawRef     string `json:"raw_ref"` // identifier in the device address book
	HasEmail   bool   `json:"has_email"`
	IsComplete bool   `json:"is_complete"`
}

type CuratedPayload struct {
	ImportedAt time.Time `json:"imported_at"`
}

type RegisteredPayload struct {
	Handle             string     `json:"handle"`
	RewardPoints       int        `json:"reward_points"`
	Tier               string     `json:"tier,omitempty"`
	IsOnline           bool       `json:"is_online"`
	LastActiveAt       *time.Time `json:"last_active_at,omitempty"`
	RelationshipStatus string     `json:"relationship_status,omitempty"`
}

type Invitation struct {
	ID          string     `json:"id"` // ulid
	RemoteRef   string     `json:"remote_ref,omitempty"`
	Status      string     `json:"status"`
	Channel     string     `json:"channel"`
	SentAt      time.Time  `json:"sent_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// RawContact is the shape the device-contacts adapter yields. The platform
// call that produces it lives outside this repository; only its output is
// consumed here.
type RawContact struct {
	ID           string   `json:"id"`
	Names        []string `json:"names"`
	PhoneNumbers []string `json:"phone_numbers"`
	Emails       []string `json:"emails"`
}

// HasFullName reports whether both name parts are present.
func (c *Contact) HasFullName() bool {
	return c.GivenName != "" && c.FamilyName != ""
}

// PendingInvitation reports whether the contact has an invitation still
// awaiting a terminal response.
func (c *Contact) PendingInvitation() bool {
	if c.Invitation == nil {
		return false
	}
	switch c.Invitation.Status {
	case InvitationSent, InvitationDelivered, InvitationRead:
		return true
	}
	return false
}

// BoolPtr is a small helper for the tri-state IsRegistered field.
func BoolPtr(b bool) *bool { return &b }
