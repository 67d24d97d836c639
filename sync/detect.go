// ABOUTME: Registered-account detection against the remote users cache
// ABOUTME: Pure cache lookups; remote calls bounded by listing pages, not contacts
package sync

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/normalize"
)

// Detect determines which of the given raw phone numbers correspond to
// registered accounts. Input numbers may arrive in varied formats; results
// are keyed by the original string. Contacts more likely to be real matches
// are checked first so useful results surface early.
func (e *Engine) Detect(ctx context.Context, phones []string) (models.DetectResult, error) {
	result := models.DetectResult{Registered: make(map[string]bool)}

	type target struct {
		original   string
		normalized string
	}
	var targets []target
	seen := make(map[string]bool)
	for _, raw := range phones {
		normalized, err := normalize.Phone(raw)
		if err != nil || seen[raw] {
			continue
		}
		seen[raw] = true
		targets = append(targets, target{original: raw, normalized: normalized})
	}
	if len(targets) == 0 {
		return result, nil
	}

	if err := e.ensureAccounts(ctx); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	now := e.clock()
	sort.SliceStable(targets, func(i, j int) bool {
		return e.detectPriority(targets[i].normalized, now) > e.detectPriority(targets[j].normalized, now)
	})

	for _, tgt := range targets {
		_, registered := e.AccountSummary(tgt.normalized)
		result.Registered[tgt.original] = registered
		result.Checked++
		if registered {
			result.Found++
		}
	}

	e.logger.Info("detection complete",
		zap.Int("checked", result.Checked),
		zap.Int("found", result.Found),
	)
	return result, nil
}

// detectPriority ranks a phone's likelihood of matching a registered
// account: pending invitation, then recent addition, then email presence,
// then a complete name.
func (e *Engine) detectPriority(phone string, now time.Time) int {
	c, ok := e.store.GetByPhone(phone)
	if !ok {
		return 0
	}

	score := 0
	if c.PendingInvitation() {
		score += 8
	}
	if now.Sub(c.CreatedAt) < 7*24*time.Hour {
		score += 4
	}
	if c.Email != "" {
		score += 2
	}
	if c.HasFullName() {
		score++
	}
	return score
}
