// Package loader reads and writes Machine records as YAML files and provides
// the on-disk machine store used between invocations.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
)

// LoadFromFile loads a Machine record from a YAML file.
// The file must be in the ovirt.foundry.cofront.xyz/v1alpha1 format.
func LoadFromFile(path string) (*v1alpha1.Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadFromYAML(data)
}

// LoadFromYAML loads a Machine record from YAML bytes.
func LoadFromYAML(data []byte) (*v1alpha1.Machine, error) {
	var m v1alpha1.Machine
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if m.APIVersion == "" {
		return nil, fmt.Errorf("missing required field: apiVersion")
	}
	if m.Kind == "" {
		return nil, fmt.Errorf("missing required field: kind")
	}

	expectedAPIVersion := v1alpha1.GroupName + "/" + v1alpha1.Version
	if m.APIVersion != expectedAPIVersion {
		return nil, fmt.Errorf("unsupported apiVersion: %s (expected: %s)", m.APIVersion, expectedAPIVersion)
	}
	if m.Kind != v1alpha1.MachineKind {
		return nil, fmt.Errorf("unsupported kind: %s (expected: %s)", m.Kind, v1alpha1.MachineKind)
	}

	applyDefaults(&m)

	if err := validate(&m); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &m, nil
}

// SaveToFile writes a Machine record to a YAML file. The write goes through
// a temporary file in the same directory and a rename, so a crash never
// leaves a truncated record behind. m itself is not modified.
func SaveToFile(m *v1alpha1.Machine, path string) error {
	out := m.DeepCopy()
	v1alpha1.SetDefaultAPIVersion(out)

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal machine to YAML: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".machine-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(m *v1alpha1.Machine) {
	if m.Status.Phase == "" {
		m.Status.Phase = v1alpha1.PhasePending
	}
	if m.Status.State == "" {
		m.Status.State = v1alpha1.StateNotCreated
	}
	m.Normalize()
}

var machineNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

// validate checks the record for required fields and consistency.
func validate(m *v1alpha1.Machine) error {
	if m.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}
	if !machineNamePattern.MatchString(m.Name) {
		return fmt.Errorf("metadata.name must start and end with alphanumeric characters and contain only alphanumeric, hyphens, or underscores, got %q", m.Name)
	}

	// A created VM always has an id; an id without a VM is a stale record
	if m.Status.ID == "" && m.Status.State != v1alpha1.StateNotCreated {
		return fmt.Errorf("status.state is %q but status.id is empty", m.Status.State)
	}

	return nil
}

// Store keeps one Machine record per machine name under
// <dir>/machines/<name>/machine.yaml.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. Nothing is created until Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the record file for the named machine.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, "machines", name, "machine.yaml")
}

// Load reads the named machine record. A machine that was never saved is
// returned as a fresh, not-created record.
func (s *Store) Load(name string) (*v1alpha1.Machine, error) {
	m, err := LoadFromFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		fresh := v1alpha1.NewMachine(name)
		fresh.Normalize()
		if err := validate(fresh); err != nil {
			return nil, fmt.Errorf("invalid machine name: %w", err)
		}
		return fresh, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Save persists the record, bumping its generation.
func (s *Store) Save(m *v1alpha1.Machine) error {
	if err := validate(m); err != nil {
		return fmt.Errorf("refusing to save invalid machine: %w", err)
	}

	path := s.Path(m.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create machine directory: %w", err)
	}

	m.Generation++
	if err := SaveToFile(m, path); err != nil {
		m.Generation--
		return err
	}
	return nil
}

// List returns the names of all saved machines.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "machines"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.Path(e.Name())); err == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
