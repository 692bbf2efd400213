package domain

import "time"

// WindowMode selects which upstream date filter a sync window applies to.
type WindowMode int

const (
	// Filter by creation time. Used for full/periodic syncs so
	// reconciliation has a stable window to compare against.
	WindowCreated WindowMode = iota
	// Filter by modification time. Used for high-frequency
	// incremental syncs; reconciliation is skipped in this mode.
	WindowModified
)

func (m WindowMode) String() string {
	if m == WindowModified {
		return "modified"
	}
	return "created"
}

// SyncWindow is the tagged date-range variant resolved once at call
// time, never inferred from runtime inspection.
type SyncWindow struct {
	Mode  WindowMode
	Start time.Time
	End   time.Time
}

// CreationWindow covers the trailing number of days up to now.
func CreationWindow(days int, now time.Time) SyncWindow {
	return SyncWindow{
		Mode:  WindowCreated,
		Start: now.AddDate(0, 0, -days),
		End:   now,
	}
}

// ModificationWindow covers the trailing number of minutes up to now.
func ModificationWindow(minutes int, now time.Time) SyncWindow {
	return SyncWindow{
		Mode:  WindowModified,
		Start: now.Add(-time.Duration(minutes) * time.Minute),
		End:   now,
	}
}

// Contains reports whether t falls inside the window, inclusive at
// both ends. Boundary skew can only cost an extra existence check
// downstream, never a false delete.
func (w SyncWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
