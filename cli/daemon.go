// ABOUTME: Daemon mode running periodic full syncs
// ABOUTME: Validates the interval and stops cooperatively on signal or context
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/copainapp/copain/manager"
)

const minDaemonInterval = time.Minute

// parseInterval validates a daemon sync interval. Anything below the minimum
// is rejected so a typo cannot hammer the backend.
func parseInterval(raw string) (time.Duration, error) {
	interval, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", raw, err)
	}
	if interval < minDaemonInterval {
		return 0, fmt.Errorf("interval %s is below the minimum %s", interval, minDaemonInterval)
	}
	return interval, nil
}

// DaemonCommand runs a full sync on a fixed interval until interrupted.
func DaemonCommand(ctx context.Context, m *manager.Manager, args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	rawInterval := fs.String("interval", "30m", "Time between full syncs (minimum 1m)")
	_ = fs.Parse(args)

	interval, err := parseInterval(*rawInterval)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("✓ Daemon started, syncing every %s\n", interval)

	runOnce := func() {
		result, err := m.FullSync(ctx)
		if err != nil {
			fmt.Printf("✗ Sync failed: %v\n", err)
			return
		}
		fmt.Printf("✓ %s: pushed %d, detected %d registered\n",
			time.Now().Format("15:04:05"), result.Push.Created, result.Detect.Found)
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("✓ Daemon stopped")
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}
