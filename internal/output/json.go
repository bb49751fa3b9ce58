package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
)

// JSONFormatter formats records as JSON.
type JSONFormatter struct{}

// FormatMachine formats a single Machine as JSON.
func (f *JSONFormatter) FormatMachine(m *v1alpha1.Machine) (string, error) {
	v1alpha1.SetDefaultAPIVersion(m)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal machine to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatMachineList formats Machines as a List object:
//
//	{
//	  "apiVersion": "ovirt.foundry.cofront.xyz/v1alpha1",
//	  "kind": "MachineList",
//	  "items": [...]
//	}
func (f *JSONFormatter) FormatMachineList(ms []*v1alpha1.Machine) (string, error) {
	for _, m := range ms {
		v1alpha1.SetDefaultAPIVersion(m)
	}
	if ms == nil {
		ms = []*v1alpha1.Machine{}
	}

	wrapper := map[string]interface{}{
		"apiVersion": v1alpha1.GroupName + "/" + v1alpha1.Version,
		"kind":       v1alpha1.MachineKind + "List",
		"items":      ms,
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(wrapper); err != nil {
		return "", fmt.Errorf("failed to marshal machine list to JSON: %w", err)
	}

	return buf.String(), nil
}
