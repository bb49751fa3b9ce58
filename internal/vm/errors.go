package vm

import (
	"errors"
	"fmt"
)

// Error kinds used as metric labels and log values.
const (
	KindUnclassified          = "unclassified"
	KindWaitForReadyVMTimeout = "wait_for_ready_vm_timeout"
	KindNoVM                  = "no_vm"
	KindInterrupted           = "interrupted"
)

// ErrInterrupted is returned when a stage stops because Env.Interrupt was called.
var ErrInterrupted = errors.New("provisioning interrupted")

// WaitForReadyVMTimeoutError is returned when a new VM's disks do not all
// reach "ok" within the disk polling budget.
type WaitForReadyVMTimeoutError struct {
	VMID   string
	Rounds int
}

func (e *WaitForReadyVMTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for VM %s to be ready: disks not ok after %d checks", e.VMID, e.Rounds)
}

// NoVMError is returned when the VM the machine record points at can no
// longer be found.
type NoVMError struct {
	VMID string
}

func (e *NoVMError) Error() string {
	return fmt.Sprintf("no VM found with id %s", e.VMID)
}

// KindOf classifies err into one of the Kind constants.
func KindOf(err error) string {
	var timeout *WaitForReadyVMTimeoutError
	var noVM *NoVMError
	switch {
	case errors.As(err, &timeout):
		return KindWaitForReadyVMTimeout
	case errors.As(err, &noVM):
		return KindNoVM
	case errors.Is(err, ErrInterrupted):
		return KindInterrupted
	default:
		return KindUnclassified
	}
}

// compensatedError marks an error whose failure was already undone.
type compensatedError struct {
	err error
}

func (e *compensatedError) Error() string { return e.err.Error() }
func (e *compensatedError) Unwrap() error { return e.err }

func markCompensated(err error) error {
	if err == nil || IsCompensated(err) {
		return err
	}
	return &compensatedError{err: err}
}

// IsCompensated reports whether err already went through a compensating
// destroy or an equivalent cleanup.
func IsCompensated(err error) bool {
	var c *compensatedError
	return errors.As(err, &c)
}
