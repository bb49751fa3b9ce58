package v1alpha1

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// GroupName is the API group for foundry-ovirt records.
	GroupName = "ovirt.foundry.cofront.xyz"

	// Version is the API version.
	Version = "v1alpha1"

	// MachineKind is the kind string for Machine records.
	MachineKind = "Machine"
)

// NewMachine returns a fresh, not-yet-created machine record.
func NewMachine(name string) *Machine {
	return &Machine{
		TypeMeta: TypeMeta{
			APIVersion: GroupName + "/" + Version,
			Kind:       MachineKind,
		},
		ObjectMeta: ObjectMeta{
			Name:              name,
			UID:               uuid.New().String(),
			CreationTimestamp: Now(),
			Generation:        1,
		},
		Status: MachineStatus{
			State: StateNotCreated,
			Phase: PhasePending,
		},
	}
}

// SetDefaultAPIVersion fills in apiVersion and kind when a record was
// written without them.
func SetDefaultAPIVersion(m *Machine) {
	if m.APIVersion == "" {
		m.APIVersion = GroupName + "/" + Version
	}
	if m.Kind == "" {
		m.Kind = MachineKind
	}
}

// SetID records the oVirt VM id.
func (m *Machine) SetID(id string) {
	m.Status.ID = id
}

// GetID returns the oVirt VM id, or "" when no VM was created.
func (m *Machine) GetID() string {
	return m.Status.ID
}

// SetState records the observed infrastructure state.
func (m *Machine) SetState(state MachineState) {
	m.Status.State = state
}

// GetState returns the observed infrastructure state. A record that never
// observed anything reports StateNotCreated.
func (m *Machine) GetState() MachineState {
	if m.Status.State == "" {
		return StateNotCreated
	}
	return m.Status.State
}

// SetPhase sets the provisioning phase.
func (m *Machine) SetPhase(phase Phase) {
	m.Status.Phase = phase
}

// GetPhase returns the provisioning phase.
func (m *Machine) GetPhase() Phase {
	return m.Status.Phase
}

// SetAddress replaces any address of the same type.
func (m *Machine) SetAddress(addrType, address string) {
	for i := range m.Status.Addresses {
		if m.Status.Addresses[i].Type == addrType {
			m.Status.Addresses[i].Address = address
			return
		}
	}
	m.Status.Addresses = append(m.Status.Addresses, Address{Type: addrType, Address: address})
}

// GetAddress returns the first address of the given type.
func (m *Machine) GetAddress(addrType string) string {
	for _, a := range m.Status.Addresses {
		if a.Type == addrType {
			return a.Address
		}
	}
	return ""
}

// ClearInfrastructure forgets everything learned from oVirt. Called once the
// VM is known to be gone.
func (m *Machine) ClearInfrastructure() {
	m.Status.ID = ""
	m.Status.VMName = ""
	m.Status.State = StateNotCreated
	m.Status.Addresses = nil
}

// UpdateObservedGeneration copies metadata.generation into status.
func (m *Machine) UpdateObservedGeneration() {
	m.Status.ObservedGeneration = m.Generation
}

// Normalize lowercases and trims the machine name.
func (m *Machine) Normalize() {
	m.Name = strings.ToLower(strings.TrimSpace(m.Name))
}
