// ABOUTME: Sync CLI commands: push, detect, full sync, wipe
// ABOUTME: Thin wrappers that print workflow results with ✓/✗ markers
package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/copainapp/copain/manager"
)

// SyncCommand pushes the curated network to the remote backend, or runs the
// whole scan-push-detect pipeline with --full.
func SyncCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	force := fs.Bool("force", false, "Re-push contacts even when unchanged")
	full := fs.Bool("full", false, "Run the full scan-push-detect pipeline")
	_ = fs.Parse(args)

	if *full {
		result, err := m.FullSync(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Scanned %d, pushed %d, detected %d registered\n",
			result.Scan.Fetched, result.Push.Created, result.Detect.Found)
		fmt.Printf("✓ Network: %d contacts (%d registered)\n",
			result.Stats.CuratedTotal, result.Stats.RegisteredCount)
		return nil
	}

	result, err := m.Push(ctx, *force)
	for _, e := range result.Errors {
		fmt.Printf("✗ %s\n", e)
	}
	if err != nil {
		return err
	}
	fmt.Printf("✓ Push complete: %d created, %d skipped, %d failed\n",
		result.Created, result.Skipped, result.Failed)
	return nil
}

// DetectCommand checks the network against registered remote accounts.
func DetectCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	_ = fs.Parse(args)

	result, err := m.Detect(ctx)
	for _, e := range result.Errors {
		fmt.Printf("✗ %s\n", e)
	}
	if err != nil {
		return err
	}
	fmt.Printf("✓ Checked %d contacts, %d registered\n", result.Checked, result.Found)
	return nil
}

// WipeCommand deletes every remote record and purges the local network.
func WipeCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("wipe", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	_ = fs.Parse(args)

	if !*yes && !confirm("This deletes every remote contact record. Continue? [y/N] ") {
		fmt.Println("Aborted")
		return nil
	}

	result, err := m.BulkWipe(ctx)
	for _, e := range result.Errors {
		fmt.Printf("✗ %s\n", e)
	}
	if err != nil {
		return err
	}
	fmt.Printf("✓ Wipe complete: %d remote deleted (%d failed), %d local purged\n",
		result.RemoteDeleted, result.RemoteFailed, result.LocalPurged)
	fmt.Println("Sync is now blocked; run 'copain unblock' to re-enable")
	return nil
}

// UnblockCommand lifts the post-wipe sync suspension.
func UnblockCommand(m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("unblock", flag.ExitOnError)
	_ = fs.Parse(args)

	m.UnblockSync()
	fmt.Println("✓ Sync unblocked")
	return nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
