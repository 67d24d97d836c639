// ABOUTME: Invitation CLI commands
// ABOUTME: Issue, cancel, and refresh invitations from the command line
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/copainapp/copain/manager"
	"github.com/copainapp/copain/models"
)

// InviteCommand sends an invitation to a curated contact.
func InviteCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("invite", flag.ExitOnError)
	phone := fs.String("phone", "", "Phone number (required)")
	channel := fs.String("channel", models.ChannelSMS, "Channel (sms|whatsapp|notification)")
	_ = fs.Parse(args)

	if *phone == "" {
		return fmt.Errorf("--phone is required")
	}

	if err := m.Invite(ctx, *phone, *channel); err != nil {
		return err
	}
	fmt.Printf("✓ Invitation sent to %s via %s\n", *phone, *channel)
	return nil
}

// CancelInviteCommand withdraws a pending invitation.
func CancelInviteCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("cancel-invite", flag.ExitOnError)
	phone := fs.String("phone", "", "Phone number (required)")
	_ = fs.Parse(args)

	if *phone == "" {
		return fmt.Errorf("--phone is required")
	}

	if err := m.CancelInvitation(ctx, *phone); err != nil {
		return err
	}
	fmt.Printf("✓ Invitation cancelled for %s\n", *phone)
	return nil
}

// RefreshInvitesCommand pulls invitation statuses from the backend.
func RefreshInvitesCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("refresh-invites", flag.ExitOnError)
	_ = fs.Parse(args)

	changed, err := m.RefreshInvitations(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Refreshed invitations: %d contacts updated\n", changed)
	return nil
}
