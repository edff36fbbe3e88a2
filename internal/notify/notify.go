// Package notify sends desktop notifications when long-running simulation
// actions finish, so an operator can kick off a multi-year regeneration and
// switch away.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Notifier sends system notifications.
type Notifier struct {
	Enabled bool
}

// Send sends a system notification.
// On macOS, uses osascript to display notifications.
// On other platforms, this is a no-op.
func (n *Notifier) Send(title, message string) error {
	if !n.Enabled {
		return nil
	}

	if runtime.GOOS != "darwin" {
		// Only macOS supported for now
		return nil
	}

	return sendMacOSNotification(title, message)
}

// sendMacOSNotification uses osascript to display a notification.
func sendMacOSNotification(title, message string) error {
	// Escape quotes in title and message
	title = strings.ReplaceAll(title, `"`, `\"`)
	message = strings.ReplaceAll(message, `"`, `\"`)

	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	cmd := exec.Command("osascript", "-e", script)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	return nil
}

// FormatGenerateComplete formats the message shown when event synthesis
// finishes.
func FormatGenerateComplete(businessID string, inserted, deleted int) (title, message string) {
	title = "ClaritySim Generation Complete"
	if deleted > 0 {
		message = fmt.Sprintf("%s: %d events inserted, %d replaced", businessID, inserted, deleted)
	} else {
		message = fmt.Sprintf("%s: %d events inserted", businessID, inserted)
	}
	return title, message
}

// FormatBulkComplete formats the message for a bulk enable/disable, including
// the partial-application case where the run stopped early.
func FormatBulkComplete(businessID string, applied, total int, failed bool) (title, message string) {
	if failed {
		title = "ClaritySim Bulk Update Stopped"
		message = fmt.Sprintf("%s: %d/%d interventions updated before an error", businessID, applied, total)
	} else {
		title = "ClaritySim Bulk Update Complete"
		message = fmt.Sprintf("%s: %d/%d interventions updated", businessID, applied, total)
	}
	return title, message
}
