package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
	"github.com/jbweber/foundry-ovirt/internal/status"
)

// TableFormatter formats records as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool

	// now is overridden in tests.
	now func() time.Time
}

// FormatMachine formats a single Machine as a table row.
func (f *TableFormatter) FormatMachine(m *v1alpha1.Machine) (string, error) {
	return f.FormatMachineList([]*v1alpha1.Machine{m})
}

// FormatMachineList formats a list of Machines as a table.
func (f *TableFormatter) FormatMachineList(ms []*v1alpha1.Machine) (string, error) {
	if len(ms) == 0 {
		return "No machines found\n", nil
	}

	now := time.Now
	if f.now != nil {
		now = f.now
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSTATE\tPHASE\tREADY\tVM\tID\tIP\tAGE")
	}

	for _, m := range ms {
		phase := dash(string(m.Status.Phase))
		vmName := dash(m.Status.VMName)
		id := dash(m.Status.ID)
		ip := dash(m.GetAddress(v1alpha1.AddressTypeInternalIP))

		age := "-"
		if !m.CreationTimestamp.IsZero() {
			age = formatAge(now().Sub(m.CreationTimestamp.Time))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Name, m.GetState(), phase, ready(m), vmName, id, ip, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// ready renders the Ready condition; "-" until a provisioning has started.
func ready(m *v1alpha1.Machine) string {
	switch {
	case status.IsConditionTrue(m, v1alpha1.ConditionReady):
		return "yes"
	case status.IsConditionFalse(m, v1alpha1.ConditionReady):
		return "no"
	default:
		return "-"
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}

	return fmt.Sprintf("%dd", days)
}
