// ABOUTME: Contact CLI commands
// ABOUTME: Human-friendly commands for scanning, importing, listing, and deleting
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/copainapp/copain/manager"
	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/store"
)

// ScanCommand reads the device address book and merges it into the store.
func ScanCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	_ = fs.Parse(args)

	result := m.Scan(ctx)
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Printf("✗ %s\n", e)
		}
		if result.Fetched == 0 {
			return fmt.Errorf("scan failed")
		}
	}

	fmt.Printf("✓ Scanned %d device contacts (%d valid, %d skipped, %d new)\n",
		result.Fetched, result.Valid, result.Skipped, result.Added)
	return nil
}

// ImportCommand curates the given phones into the network.
func ImportCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	phones := fs.String("phones", "", "Comma-separated phone numbers (required)")
	syncAfter := fs.Bool("sync", false, "Push and detect after importing")
	_ = fs.Parse(args)

	if *phones == "" {
		return fmt.Errorf("--phones is required")
	}
	targets := splitList(*phones)

	if *syncAfter {
		result, err := m.ImportAndSync(ctx, targets)
		printImport(result.Import)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Pushed %d, detected %d registered\n", result.Push.Created, result.Detect.Found)
		return nil
	}

	result := m.Import(ctx, targets)
	printImport(result)
	return nil
}

func printImport(result models.ImportResult) {
	for _, e := range result.Errors {
		fmt.Printf("✗ %s\n", e)
	}
	fmt.Printf("✓ Imported %d contacts (%d skipped)\n", result.Imported, result.Skipped)
}

// ListCommand prints a page of contacts.
func ListCommand(repo *store.Repository, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	source := fs.String("source", "", "Filter by source (device|curated|registered|invited)")
	page := fs.Int("page", 1, "Page number")
	pageSize := fs.Int("page-size", 25, "Contacts per page")
	sortKey := fs.String("sort", "name", "Sort key (name|phone|created)")
	_ = fs.Parse(args)

	var contacts []models.Contact
	if *source != "" {
		contacts = repo.GetBySource(models.Source(*source))
	} else {
		contacts = repo.Paginate(*page, *pageSize, *sortKey)
	}

	if len(contacts) == 0 {
		fmt.Println("No contacts found")
		return nil
	}
	printContacts(contacts)
	return nil
}

// SearchCommand runs a ranked index search.
func SearchCommand(repo *store.Repository, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("usage: search <query>")
	}
	query := strings.Join(fs.Args(), " ")

	contacts := repo.Search(query)
	if len(contacts) == 0 {
		fmt.Println("No contacts found")
		return nil
	}
	printContacts(contacts)
	return nil
}

func printContacts(contacts []models.Contact) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPHONE\tEMAIL\tSOURCE\tREGISTERED")
	_, _ = fmt.Fprintln(w, "----\t-----\t-----\t------\t----------")

	for _, c := range contacts {
		email := c.Email
		if email == "" {
			email = "-"
		}
		registered := "?"
		if c.IsRegistered != nil {
			registered = fmt.Sprintf("%t", *c.IsRegistered)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.DisplayName, c.Phone, email, c.Source, registered)
	}
	_ = w.Flush()
}

// DeleteCommand removes one contact from the network.
func DeleteCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	phone := fs.String("phone", "", "Phone number (required)")
	_ = fs.Parse(args)

	if *phone == "" {
		return fmt.Errorf("--phone is required")
	}

	result := m.Delete(ctx, *phone)
	for _, e := range result.Errors {
		fmt.Printf("✗ %s\n", e)
	}
	switch {
	case result.Restored:
		fmt.Printf("✓ Contact removed from network, kept as device contact\n")
	case result.Erased:
		fmt.Printf("✓ Contact erased\n")
	default:
		return fmt.Errorf("delete failed")
	}
	if result.RemoteDeleted {
		fmt.Printf("✓ Remote record deleted\n")
	}
	return nil
}

// StatsCommand prints the aggregated network metrics.
func StatsCommand(m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	_ = fs.Parse(args)

	s := m.Stats()

	fmt.Printf("Device contacts:     %d\n", s.DeviceTotal)
	fmt.Printf("Network size:        %d\n", s.CuratedTotal)
	fmt.Printf("  Registered:        %d\n", s.RegisteredCount)
	fmt.Printf("  Invited:           %d\n", s.InvitedCount)
	fmt.Printf("  Curated only:      %d\n", s.CuratedOnlyCount)
	fmt.Printf("Invitations pending: %d (accepted: %d)\n", s.PendingInvitations, s.AcceptedInvitations)
	fmt.Printf("Email coverage:      %.0f%%\n", s.EmailCoverage*100)
	fmt.Printf("Full-name coverage:  %.0f%%\n", s.FullNameCoverage*100)
	fmt.Printf("Added today/week/month: %d/%d/%d\n", s.AddedToday, s.AddedThisWeek, s.AddedThisMonth)

	if len(s.CountryBreakdown) > 0 {
		fmt.Println("Countries:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for prefix, count := range s.CountryBreakdown {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", prefix, count)
		}
		_ = w.Flush()
	}

	states, err := m.SyncStates()
	if err == nil && len(states) > 0 {
		fmt.Println("Sync ledger:")
		for _, st := range states {
			line := fmt.Sprintf("  %s: %s", st.Service, st.Status)
			if st.LastSyncTime != nil {
				line += " (last " + st.LastSyncTime.Format("2006-01-02 15:04") + ")"
			}
			fmt.Println(line)
		}
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
