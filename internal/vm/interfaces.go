package vm

import (
	"context"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
)

// Status values the stages compare against. They match the oVirt REST API
// enum spellings.
const (
	DiskStatusOK = "ok"
	IPVersion4   = "v4"

	VMStatusDown        = "down"
	VMStatusImageLocked = "image_locked"
)

// Reference is a followable link to a full oVirt resource. Link carries the
// SDK object for the Service implementation; stages never look inside it.
type Reference struct {
	ID   string
	Href string
	Link any
}

// VMDescriptor is the part of an oVirt VM the stages care about.
type VMDescriptor struct {
	ID     string
	Name   string
	Status string
}

// DiskAttachment associates a VM with a disk that can be resolved.
type DiskAttachment struct {
	ID   string
	Disk Reference
}

// Disk is a resolved disk snapshot.
type Disk struct {
	ID     string
	Status string
}

// NIC is a resolved network interface snapshot.
type NIC struct {
	ID              string
	Name            string
	ReportedDevices []ReportedDevice
}

// ReportedDevice is a guest-agent reported network device.
type ReportedDevice struct {
	Name string
	IPs  []IP
}

// IP is one address on a reported device.
type IP struct {
	Version string
	Address string
}

// CreateRequest carries everything needed to create a VM from a template.
type CreateRequest struct {
	Name     string
	Cluster  string
	Template string

	// Guest initialization; empty values are left out of the request.
	Hostname          string
	SSHAuthorizedKeys []string
	CustomScript      string // cloud-config merged into oVirt's user-data
}

// Service defines the oVirt operations needed to provision one VM.
// This allows for dependency injection and testing.
//
// In production, this is satisfied by *ovirt.Client.
// In tests, this is satisfied by mock implementations.
type Service interface {
	// CreateVM submits a creation request and returns the new VM.
	CreateVM(ctx context.Context, req CreateRequest) (*VMDescriptor, error)

	// ListVMs returns the VMs matching an oVirt search expression.
	ListVMs(ctx context.Context, search string) ([]VMDescriptor, error)

	// DiskAttachments lists a VM's disk attachments.
	DiskAttachments(ctx context.Context, vmID string) ([]DiskAttachment, error)

	// NICs lists references to a VM's network interfaces.
	NICs(ctx context.Context, vmID string) ([]Reference, error)

	// ResolveDisk follows a disk reference.
	ResolveDisk(ctx context.Context, ref Reference) (*Disk, error)

	// ResolveNIC follows a NIC reference.
	ResolveNIC(ctx context.Context, ref Reference) (*NIC, error)

	// StartVM starts a VM, applying guest initialization when useCloudInit is set.
	StartVM(ctx context.Context, vmID string, useCloudInit bool) error

	// StopVM powers off a VM.
	StopVM(ctx context.Context, vmID string) error

	// RemoveVM deletes a VM and its disks.
	RemoveVM(ctx context.Context, vmID string) error
}

// UI is the progress sink for the person running the command.
type UI interface {
	Info(message string)
	Warn(message string)

	// Confirm asks a yes/no question.
	Confirm(prompt string) (bool, error)
}

// MachineStore persists machine records between invocations.
//
// In production, this is satisfied by *loader.Store.
type MachineStore interface {
	Save(m *v1alpha1.Machine) error
}

// Destroyer tears down the VM a machine record points at.
type Destroyer interface {
	Destroy(ctx context.Context, env *Env) error
}

// DestroyerFunc adapts a function to Destroyer.
type DestroyerFunc func(ctx context.Context, env *Env) error

// Destroy calls f.
func (f DestroyerFunc) Destroy(ctx context.Context, env *Env) error {
	return f(ctx, env)
}
