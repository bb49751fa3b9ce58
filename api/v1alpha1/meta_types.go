// Package v1alpha1 contains the machine record types persisted by
// foundry-ovirt under the ovirt.foundry.cofront.xyz/v1alpha1 group.
//
// The metadata types mirror the field names and tags of
// k8s.io/apimachinery's meta/v1 so records stay readable by the same tooling,
// without pulling in the apimachinery dependency tree.
package v1alpha1

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// TypeMeta identifies the kind and API version of a stored record.
type TypeMeta struct {
	Kind       string `json:"kind,omitempty" yaml:"kind,omitempty"`
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// ObjectMeta holds the identity of a machine record.
type ObjectMeta struct {
	// Name is the local machine name (e.g. "default"). It is not the oVirt VM
	// name, which is generated at creation time.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`

	CreationTimestamp Time `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`

	// UID identifies this record locally, independent of the oVirt VM id.
	UID string `json:"uid,omitempty" yaml:"uid,omitempty"`

	// Generation is bumped every time the record is saved.
	Generation int64 `json:"generation,omitempty" yaml:"generation,omitempty"`
}

// Time wraps time.Time with RFC3339 JSON/YAML encoding; the zero value
// encodes as null.
type Time struct {
	time.Time `json:"-" yaml:"-"`
}

// Now returns the current local time wrapped as a Time.
func Now() Time {
	return Time{Time: time.Now()}
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" || string(b) == `""` {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Time) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time.Format(time.RFC3339), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" || node.Value == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, node.Value)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Condition is one observation about a machine, e.g. "DisksReady=True".
type Condition struct {
	Type   string          `json:"type" yaml:"type"`
	Status ConditionStatus `json:"status" yaml:"status"`

	// ObservedGeneration is the record generation the condition was computed from.
	ObservedGeneration int64 `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`

	// LastTransitionTime only moves when Status changes.
	LastTransitionTime Time `json:"lastTransitionTime,omitempty" yaml:"lastTransitionTime,omitempty"`

	// Reason is a CamelCase machine-readable token.
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// ConditionStatus is True, False or Unknown.
type ConditionStatus string

const (
	ConditionTrue    ConditionStatus = "True"
	ConditionFalse   ConditionStatus = "False"
	ConditionUnknown ConditionStatus = "Unknown"
)

// DeepCopy creates a deep copy of ObjectMeta.
func (in *ObjectMeta) DeepCopy() *ObjectMeta {
	if in == nil {
		return nil
	}
	out := new(ObjectMeta)
	*out = *in
	if in.Labels != nil {
		out.Labels = make(map[string]string, len(in.Labels))
		for k, v := range in.Labels {
			out.Labels[k] = v
		}
	}
	if in.Annotations != nil {
		out.Annotations = make(map[string]string, len(in.Annotations))
		for k, v := range in.Annotations {
			out.Annotations[k] = v
		}
	}
	return out
}
