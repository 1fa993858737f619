package browser

import (
	"fmt"
	"strings"
	"time"
)

// closeSession closes the session named in input. Closing an unknown id is
// reported as success.
func (t *Tool) closeSession(in *Input) (string, map[string]interface{}, error) {
	metadata := map[string]interface{}{"action": ActionCloseSession}
	if in.SessionID == "" {
		err := fmt.Errorf("%w: session_id is required for close_session action", errInvalidArguments)
		metadata["error_kind"] = errorKind(err)
		return fmt.Sprintf("Error [%s]: %v", errorKind(err), err), metadata, err
	}

	metadata["session_id"] = in.SessionID
	if err := t.pool.Close(in.SessionID); err != nil {
		// The session is gone from the pool even when teardown failed.
		metadata["warning"] = err.Error()
	}
	return "Closed browser session " + in.SessionID, metadata, nil
}

func (t *Tool) listSessions() string {
	sessions := t.pool.List()
	if len(sessions) == 0 {
		return "No active browser sessions."
	}

	now := t.now()
	var result strings.Builder
	fmt.Fprintf(&result, "Active Browser Sessions: %d/%d\n", len(sessions), t.pool.Options().MaxSessions)

	for i, s := range sessions {
		fmt.Fprintf(&result, "\n%d. %s\n   URL: %s\n   Age: %s\n   Last Used: %s ago\n",
			i+1,
			s.ID,
			s.CurrentURL,
			formatDuration(now.Sub(s.CreatedAt)),
			formatDuration(now.Sub(s.LastUsedAt)),
		)
	}
	return result.String()
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
