// Package status provides utilities for managing Machine status fields,
// including conditions and phase transitions.
package status

import (
	"time"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
)

// SetCondition adds or updates a condition in the machine status.
// If a condition with the same type already exists, it updates it.
// The LastTransitionTime is only updated if the status changes.
func SetCondition(m *v1alpha1.Machine, condType string, status v1alpha1.ConditionStatus, reason, message string) {
	now := v1alpha1.Time{Time: time.Now()}

	for i := range m.Status.Conditions {
		if m.Status.Conditions[i].Type == condType {
			existing := &m.Status.Conditions[i]

			if existing.Status != status {
				existing.LastTransitionTime = now
			}

			existing.Status = status
			existing.Reason = reason
			existing.Message = message
			existing.ObservedGeneration = m.Generation
			return
		}
	}

	m.Status.Conditions = append(m.Status.Conditions, v1alpha1.Condition{
		Type:               condType,
		Status:             status,
		ObservedGeneration: m.Generation,
		LastTransitionTime: now,
		Reason:             reason,
		Message:            message,
	})
}

// GetCondition returns a condition by type, or nil if not found.
func GetCondition(m *v1alpha1.Machine, condType string) *v1alpha1.Condition {
	for i := range m.Status.Conditions {
		if m.Status.Conditions[i].Type == condType {
			return &m.Status.Conditions[i]
		}
	}
	return nil
}

// IsConditionTrue returns true if the condition exists and has status True.
func IsConditionTrue(m *v1alpha1.Machine, condType string) bool {
	cond := GetCondition(m, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionTrue
}

// IsConditionFalse returns true if the condition exists and has status False.
func IsConditionFalse(m *v1alpha1.Machine, condType string) bool {
	cond := GetCondition(m, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionFalse
}

// RemoveCondition removes a condition by type.
func RemoveCondition(m *v1alpha1.Machine, condType string) {
	filtered := make([]v1alpha1.Condition, 0, len(m.Status.Conditions))
	for i := range m.Status.Conditions {
		if m.Status.Conditions[i].Type != condType {
			filtered = append(filtered, m.Status.Conditions[i])
		}
	}
	m.Status.Conditions = filtered
}

// MarkVMCreated records that oVirt accepted the create request.
func MarkVMCreated(m *v1alpha1.Machine) {
	SetCondition(m, v1alpha1.ConditionVMCreated, v1alpha1.ConditionTrue, "VMCreated", "VM "+m.Status.VMName+" created with id "+m.Status.ID)
}

// MarkDisksReady marks every disk attachment as reporting status ok.
func MarkDisksReady(m *v1alpha1.Machine) {
	SetCondition(m, v1alpha1.ConditionDisksReady, v1alpha1.ConditionTrue, "DisksReady", "All disks report status ok")
}

// MarkDisksFailed marks the disk readiness condition as False.
func MarkDisksFailed(m *v1alpha1.Machine, err error) {
	SetCondition(m, v1alpha1.ConditionDisksReady, v1alpha1.ConditionFalse, "DisksNotReady", err.Error())
	m.SetPhase(v1alpha1.PhaseFailed)
}

// MarkAddressAssigned records the guest-reported IPv4 address.
func MarkAddressAssigned(m *v1alpha1.Machine, ip string) {
	m.SetAddress(v1alpha1.AddressTypeInternalIP, ip)
	SetCondition(m, v1alpha1.ConditionAddressAssigned, v1alpha1.ConditionTrue, "AddressReported", "Guest reported "+ip)
}

// MarkAddressPending records that no IPv4 address was reported in time.
// This is not a failure; the VM may still come up later.
func MarkAddressPending(m *v1alpha1.Machine) {
	SetCondition(m, v1alpha1.ConditionAddressAssigned, v1alpha1.ConditionUnknown, "AddressNotReported", "No IPv4 address reported yet")
}

// MarkReady sets Ready to True and phase to Running.
func MarkReady(m *v1alpha1.Machine) {
	SetCondition(m, v1alpha1.ConditionReady, v1alpha1.ConditionTrue, "VMReady", "VM is up")
	m.SetPhase(v1alpha1.PhaseRunning)
	m.UpdateObservedGeneration()
}

// MarkFailed sets the Ready condition to False and phase to Failed.
func MarkFailed(m *v1alpha1.Machine, reason, message string) {
	SetCondition(m, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, reason, message)
	m.SetPhase(v1alpha1.PhaseFailed)
}
