package ovirt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ovirtsdk4 "github.com/ovirt/go-ovirt"

	"github.com/jbweber/foundry-ovirt/internal/vm"
)

var _ vm.Service = (*Client)(nil)

func (c *Client) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.conn == nil {
		return errors.New("client not connected")
	}
	return nil
}

func (c *Client) vmService(id string) *ovirtsdk4.VmService {
	return c.conn.SystemService().VmsService().VmService(id)
}

// CreateVM creates a VM from a template in a cluster, both referenced by name.
func (c *Client) CreateVM(ctx context.Context, req vm.CreateRequest) (*vm.VMDescriptor, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	sdkVM, err := buildVM(req)
	if err != nil {
		return nil, err
	}

	c.log.V(1).Info("Adding VM", "name", req.Name, "cluster", req.Cluster, "template", req.Template)
	resp, err := c.conn.SystemService().VmsService().Add().Vm(sdkVM).Send()
	if err != nil {
		var notFound *ovirtsdk4.NotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("cluster %q or template %q not found: %w", req.Cluster, req.Template, err)
		}
		return nil, err
	}

	created, ok := resp.Vm()
	if !ok {
		return nil, errors.New("no VM returned from creation")
	}
	desc := convertVM(created)
	return &desc, nil
}

// buildVM turns a create request into the SDK object sent to the engine.
func buildVM(req vm.CreateRequest) (*ovirtsdk4.Vm, error) {
	builder := ovirtsdk4.NewVmBuilder().
		Name(req.Name).
		Cluster(ovirtsdk4.NewClusterBuilder().Name(req.Cluster).MustBuild()).
		Template(ovirtsdk4.NewTemplateBuilder().Name(req.Template).MustBuild())

	if req.Hostname != "" || len(req.SSHAuthorizedKeys) > 0 || req.CustomScript != "" {
		ib := ovirtsdk4.NewInitializationBuilder()
		if req.Hostname != "" {
			ib = ib.HostName(req.Hostname)
		}
		if len(req.SSHAuthorizedKeys) > 0 {
			ib = ib.AuthorizedSshKeys(strings.Join(req.SSHAuthorizedKeys, "\n"))
		}
		if req.CustomScript != "" {
			ib = ib.CustomScript(req.CustomScript)
		}
		initialization, err := ib.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build VM initialization: %w", err)
		}
		builder = builder.Initialization(initialization)
	}

	sdkVM, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build VM object: %w", err)
	}
	return sdkVM, nil
}

// ListVMs returns the VMs matching an oVirt search expression.
func (c *Client) ListVMs(ctx context.Context, search string) ([]vm.VMDescriptor, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	resp, err := c.conn.SystemService().VmsService().List().Search(search).Send()
	if err != nil {
		return nil, err
	}

	vms, ok := resp.Vms()
	if !ok {
		return nil, nil
	}
	out := make([]vm.VMDescriptor, 0, len(vms.Slice()))
	for _, v := range vms.Slice() {
		out = append(out, convertVM(v))
	}
	return out, nil
}

// DiskAttachments lists a VM's disk attachments.
func (c *Client) DiskAttachments(ctx context.Context, vmID string) ([]vm.DiskAttachment, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	resp, err := c.vmService(vmID).DiskAttachmentsService().List().Send()
	if err != nil {
		return nil, err
	}

	attachments, ok := resp.Attachments()
	if !ok {
		return nil, nil
	}
	out := make([]vm.DiskAttachment, 0, len(attachments.Slice()))
	for _, a := range attachments.Slice() {
		out = append(out, convertDiskAttachment(a))
	}
	return out, nil
}

// NICs lists references to a VM's network interfaces.
func (c *Client) NICs(ctx context.Context, vmID string) ([]vm.Reference, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	resp, err := c.vmService(vmID).NicsService().List().Send()
	if err != nil {
		return nil, err
	}

	nics, ok := resp.Nics()
	if !ok {
		return nil, nil
	}
	out := make([]vm.Reference, 0, len(nics.Slice()))
	for _, n := range nics.Slice() {
		out = append(out, nicReference(n))
	}
	return out, nil
}

// ResolveDisk follows a disk reference. References without a followable
// link are fetched by id.
func (c *Client) ResolveDisk(ctx context.Context, ref vm.Reference) (*vm.Disk, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	if link, ok := ref.Link.(*ovirtsdk4.Disk); ok && c.conn.IsLink(link) {
		followed, err := c.conn.FollowLink(link)
		if err != nil {
			return nil, err
		}
		disk, ok := followed.(*ovirtsdk4.Disk)
		if !ok {
			return nil, fmt.Errorf("link %s did not resolve to a disk", ref.Href)
		}
		out := convertDisk(disk)
		return &out, nil
	}

	if ref.ID == "" {
		return nil, errors.New("disk reference has neither link nor id")
	}
	resp, err := c.conn.SystemService().DisksService().DiskService(ref.ID).Get().Send()
	if err != nil {
		return nil, err
	}
	disk, ok := resp.Disk()
	if !ok {
		return nil, fmt.Errorf("no disk returned for %s", ref.ID)
	}
	out := convertDisk(disk)
	return &out, nil
}

// ResolveNIC follows a NIC reference, and its reported devices when the
// engine returned them as a link.
func (c *Client) ResolveNIC(ctx context.Context, ref vm.Reference) (*vm.NIC, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	nic, ok := ref.Link.(*ovirtsdk4.Nic)
	if !ok {
		return nil, fmt.Errorf("NIC reference %s carries no link", ref.ID)
	}
	if c.conn.IsLink(nic) {
		followed, err := c.conn.FollowLink(nic)
		if err != nil {
			return nil, err
		}
		if nic, ok = followed.(*ovirtsdk4.Nic); !ok {
			return nil, fmt.Errorf("link %s did not resolve to a NIC", ref.Href)
		}
	}

	out := convertNIC(nic)
	if devices, ok := nic.ReportedDevices(); ok && len(devices.Slice()) == 0 && c.conn.IsLink(devices) {
		followed, err := c.conn.FollowLink(devices)
		if err != nil {
			return nil, err
		}
		if resolved, ok := followed.(*ovirtsdk4.ReportedDeviceSlice); ok {
			out.ReportedDevices = convertReportedDevices(resolved)
		}
	}
	return &out, nil
}

// StartVM starts a VM. With useCloudInit the VM's initialization settings
// are applied on this boot.
func (c *Client) StartVM(ctx context.Context, vmID string, useCloudInit bool) error {
	if err := c.ready(ctx); err != nil {
		return err
	}

	req := c.vmService(vmID).Start()
	if useCloudInit {
		req = req.UseCloudInit(true)
	}
	_, err := req.Send()
	return err
}

// StopVM powers off a VM. A VM that no longer exists is already stopped.
func (c *Client) StopVM(ctx context.Context, vmID string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}

	_, err := c.vmService(vmID).Stop().Send()
	return ignoreNotFound(err)
}

// RemoveVM deletes a VM along with its disks. Removing a VM that no longer
// exists succeeds.
func (c *Client) RemoveVM(ctx context.Context, vmID string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}

	c.log.V(1).Info("Removing VM", "vmID", vmID)
	_, err := c.vmService(vmID).Remove().Send()
	return ignoreNotFound(err)
}

func ignoreNotFound(err error) error {
	var notFound *ovirtsdk4.NotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}
