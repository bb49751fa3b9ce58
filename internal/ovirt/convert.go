package ovirt

import (
	ovirtsdk4 "github.com/ovirt/go-ovirt"

	"github.com/jbweber/foundry-ovirt/internal/vm"
)

func convertVM(v *ovirtsdk4.Vm) vm.VMDescriptor {
	var out vm.VMDescriptor
	if id, ok := v.Id(); ok {
		out.ID = id
	}
	if name, ok := v.Name(); ok {
		out.Name = name
	}
	if status, ok := v.Status(); ok {
		out.Status = string(status)
	}
	return out
}

func convertDiskAttachment(a *ovirtsdk4.DiskAttachment) vm.DiskAttachment {
	var out vm.DiskAttachment
	if id, ok := a.Id(); ok {
		out.ID = id
	}
	if disk, ok := a.Disk(); ok {
		out.Disk = vm.Reference{Link: disk}
		if id, ok := disk.Id(); ok {
			out.Disk.ID = id
		}
		if href, ok := disk.Href(); ok {
			out.Disk.Href = href
		}
	}
	return out
}

func convertDisk(d *ovirtsdk4.Disk) vm.Disk {
	var out vm.Disk
	if id, ok := d.Id(); ok {
		out.ID = id
	}
	if status, ok := d.Status(); ok {
		out.Status = string(status)
	}
	return out
}

func nicReference(n *ovirtsdk4.Nic) vm.Reference {
	ref := vm.Reference{Link: n}
	if id, ok := n.Id(); ok {
		ref.ID = id
	}
	if href, ok := n.Href(); ok {
		ref.Href = href
	}
	return ref
}

func convertNIC(n *ovirtsdk4.Nic) vm.NIC {
	var out vm.NIC
	if id, ok := n.Id(); ok {
		out.ID = id
	}
	if name, ok := n.Name(); ok {
		out.Name = name
	}
	if devices, ok := n.ReportedDevices(); ok {
		out.ReportedDevices = convertReportedDevices(devices)
	}
	return out
}

func convertReportedDevices(devices *ovirtsdk4.ReportedDeviceSlice) []vm.ReportedDevice {
	var out []vm.ReportedDevice
	for _, d := range devices.Slice() {
		var dev vm.ReportedDevice
		if name, ok := d.Name(); ok {
			dev.Name = name
		}
		if ips, ok := d.Ips(); ok {
			for _, ip := range ips.Slice() {
				var converted vm.IP
				if version, ok := ip.Version(); ok {
					converted.Version = string(version)
				}
				if address, ok := ip.Address(); ok {
					converted.Address = address
				}
				dev.IPs = append(dev.IPs, converted)
			}
		}
		out = append(out, dev)
	}
	return out
}
