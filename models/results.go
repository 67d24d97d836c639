// ABOUTME: Structured results returned by bulk workflows
// ABOUTME: Workflows report counts plus an error list instead of failing atomically
package models

// ScanResult summarizes a device scan.
type ScanResult struct {
	Fetched int      `json:"fetched"`
	Valid   int      `json:"valid"`
	Skipped int      `json:"skipped"`
	Added   int      `json:"added"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportResult summarizes an import-to-curated workflow.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// PushResult summarizes a push-sync run against the remote backend.
type PushResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// DetectResult summarizes a registered-account detection run.
type DetectResult struct {
	Checked    int             `json:"checked"`
	Found      int             `json:"found"`
	Registered map[string]bool `json:"registered"` // original phone -> registered
	Errors     []string        `json:"errors,omitempty"`
}

// DeleteResult summarizes the removal of a single contact.
type DeleteResult struct {
	RemoteDeleted bool     `json:"remote_deleted"`
	Restored      bool     `json:"restored"` // demoted back to a device contact
	Erased        bool     `json:"erased"`
	Errors        []string `json:"errors,omitempty"`
}

// WipeResult summarizes a bulk remote wipe.
type WipeResult struct {
	RemoteDeleted int      `json:"remote_deleted"`
	RemoteFailed  int      `json:"remote_failed"`
	LocalPurged   int      `json:"local_purged"`
	Errors        []string `json:"errors,omitempty"`
}

// Stats is the pure aggregation over the contact set.
type Stats struct {
	DeviceTotal         int            `json:"device_total"`
	CuratedTotal        int            `json:"curated_total"` // curated + registered + invited
	RegisteredCount     int            `json:"registered_count"`
	InvitedCount        int            `json:"invited_count"`
	CuratedOnlyCount    int            `json:"curated_only_count"`
	PendingInvitations  int            `json:"pending_invitations"`
	AcceptedInvitations int            `json:"accepted_invitations"`
	EmailCoverage       float64        `json:"email_coverage"`
	FullNameCoverage    float64        `json:"full_name_coverage"`
	CountryBreakdown    map[string]int `json:"country_breakdown"`
	AddedToday          int            `json:"added_today"`
	AddedThisWeek       int            `json:"added_this_week"`
	AddedThisMonth      int            `json:"added_this_month"`
}
