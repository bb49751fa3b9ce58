package v1alpha1

// Machine is the locally persisted record of one managed oVirt VM.
//
// The record exists before the VM does: Status.ID stays empty and
// Status.State is StateNotCreated until the create call returns.
type Machine struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   MachineSpec   `json:"spec" yaml:"spec"`
	Status MachineStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// MachineSpec records the placement the VM was (or will be) created with.
type MachineSpec struct {
	// Cluster is the oVirt cluster name.
	Cluster string `json:"cluster,omitempty" yaml:"cluster,omitempty"`

	// Template is the oVirt template name the VM is cloned from.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`
}

// MachineStatus is the observed state of the machine.
type MachineStatus struct {
	// ID is the oVirt VM id. Set as soon as the create request returns and
	// cleared only by destroy.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// VMName is the generated oVirt VM name.
	VMName string `json:"vmName,omitempty" yaml:"vmName,omitempty"`

	// State is the last observed infrastructure state tag.
	State MachineState `json:"state,omitempty" yaml:"state,omitempty"`

	Phase      Phase       `json:"phase,omitempty" yaml:"phase,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Addresses  []Address   `json:"addresses,omitempty" yaml:"addresses,omitempty"`

	ObservedGeneration int64 `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`
}

// MachineState is an infrastructure state tag. Values other than the
// constants below are passed through verbatim from oVirt.
type MachineState string

const (
	// StateNotCreated is the sentinel for "no VM exists for this record".
	StateNotCreated MachineState = "not_created"

	StateUp      MachineState = "up"
	StateDown    MachineState = "down"
	StateUnknown MachineState = "unknown"
)

// Phase is the local provisioning lifecycle phase.
type Phase string

const (
	PhasePending  Phase = "Pending"
	PhaseCreating Phase = "Creating"
	PhaseRunning  Phase = "Running"
	PhaseFailed   Phase = "Failed"
)

// Address is a network address reported for the VM.
type Address struct {
	// Type is "InternalIP" for guest-reported addresses.
	Type    string `json:"type" yaml:"type"`
	Address string `json:"address" yaml:"address"`
}

// Condition types set during provisioning.
const (
	ConditionVMCreated       = "VMCreated"
	ConditionDisksReady      = "DisksReady"
	ConditionAddressAssigned = "AddressAssigned"
	ConditionReady           = "Ready"
)

// AddressTypeInternalIP marks a guest-agent reported address.
const AddressTypeInternalIP = "InternalIP"

// DeepCopy creates a deep copy of Machine.
func (in *Machine) DeepCopy() *Machine {
	if in == nil {
		return nil
	}
	out := new(Machine)
	out.TypeMeta = in.TypeMeta
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	out.Status = *in.Status.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of MachineStatus.
func (in *MachineStatus) DeepCopy() *MachineStatus {
	if in == nil {
		return nil
	}
	out := new(MachineStatus)
	*out = *in
	if in.Conditions != nil {
		out.Conditions = make([]Condition, len(in.Conditions))
		copy(out.Conditions, in.Conditions)
	}
	if in.Addresses != nil {
		out.Addresses = make([]Address, len(in.Addresses))
		copy(out.Addresses, in.Addresses)
	}
	return out
}
