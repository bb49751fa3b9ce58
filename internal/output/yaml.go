package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
)

// YAMLFormatter formats records as YAML.
type YAMLFormatter struct{}

// FormatMachine formats a single Machine as YAML.
func (f *YAMLFormatter) FormatMachine(m *v1alpha1.Machine) (string, error) {
	v1alpha1.SetDefaultAPIVersion(m)

	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal machine to YAML: %w", err)
	}

	return string(data), nil
}

// FormatMachineList formats Machines as a YAML stream (documents separated
// by ---).
func (f *YAMLFormatter) FormatMachineList(ms []*v1alpha1.Machine) (string, error) {
	var buf bytes.Buffer

	for i, m := range ms {
		v1alpha1.SetDefaultAPIVersion(m)

		data, err := yaml.Marshal(m)
		if err != nil {
			return "", fmt.Errorf("failed to marshal machine %s to YAML: %w", m.Name, err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}
