package status

import (
	"fmt"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
)

// TransitionToCreating transitions the machine phase to Creating.
// This should be called right before the create request is sent.
func TransitionToCreating(m *v1alpha1.Machine) error {
	// Failed machines were destroyed by recovery and may be retried
	phase := m.GetPhase()
	if phase != v1alpha1.PhasePending && phase != v1alpha1.PhaseFailed && phase != "" {
		return fmt.Errorf("cannot transition to Creating from phase %s", phase)
	}

	m.SetPhase(v1alpha1.PhaseCreating)
	SetCondition(m, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "Creating", "VM creation in progress")
	return nil
}

// TransitionToRunning transitions the machine phase to Running.
// This should be called once the readiness wait completes.
func TransitionToRunning(m *v1alpha1.Machine) error {
	if m.GetPhase() != v1alpha1.PhaseCreating {
		return fmt.Errorf("cannot transition to Running from phase %s", m.GetPhase())
	}

	MarkReady(m)
	return nil
}

// TransitionToFailed transitions the machine phase to Failed.
// This can happen from any phase when an error occurs.
func TransitionToFailed(m *v1alpha1.Machine, reason, message string) {
	MarkFailed(m, reason, message)
}

// ResetAfterDestroy returns a destroyed machine record to Pending with no
// infrastructure attached. Conditions are dropped since they describe a VM
// that no longer exists.
func ResetAfterDestroy(m *v1alpha1.Machine) {
	m.ClearInfrastructure()
	m.Status.Conditions = nil
	m.SetPhase(v1alpha1.PhasePending)
}

// IsRunning returns true if the machine is in a running state.
func IsRunning(phase v1alpha1.Phase) bool {
	return phase == v1alpha1.PhaseRunning
}

// IsTransitioning returns true if the machine is mid-provisioning.
func IsTransitioning(phase v1alpha1.Phase) bool {
	return phase == v1alpha1.PhaseCreating
}
