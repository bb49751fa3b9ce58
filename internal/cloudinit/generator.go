// Package cloudinit generates the cloud-config document handed to oVirt as
// the guest initialization custom script.
//
// oVirt sets the hostname and SSH keys through its own initialization fields.
// Everything it has no field for (the root password, SSH password login, the
// FQDN and output logging) travels in this document, which oVirt merges into
// the cloud-init user-data it builds.
//
// See https://cloudinit.readthedocs.io/en/latest/explanation/format.html#cloud-config-data
package cloudinit

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/foundry-ovirt/internal/config"
)

// Header is the first line cloud-init requires of a cloud-config document.
const Header = "#cloud-config\n"

// OutputLog is where cloud-init copies its output inside the guest.
const OutputLog = "| tee -a /var/log/cloud-init-output.log"

// UserData is the part of the cloud-config document oVirt cannot express.
type UserData struct {
	FQDN            string    `yaml:"fqdn,omitempty"`
	Chpasswd        *Chpasswd `yaml:"chpasswd,omitempty"`
	SSHPasswordAuth bool      `yaml:"ssh_pwauth"`
	Output          *Output   `yaml:"output,omitempty"`
}

// Chpasswd configures user password settings.
type Chpasswd struct {
	Expire bool   `yaml:"expire"` // Whether to expire passwords on first login
	List   string `yaml:"list"`   // Format: "username:hash"
}

// Output configures cloud-init output logging.
type Output struct {
	All string `yaml:"all"`
}

// NeedsCustomScript reports whether init carries anything oVirt's native
// initialization fields cannot hold.
func NeedsCustomScript(init *config.InitializationConfig) bool {
	if init == nil {
		return false
	}
	return init.FQDN != "" || init.RootPasswordHash != "" || init.SSHPasswordAuth
}

// GenerateCustomScript renders the cloud-config custom script for init.
//
// Returns "" when NeedsCustomScript is false, so the create request carries
// no script at all.
func GenerateCustomScript(init *config.InitializationConfig) (string, error) {
	if !NeedsCustomScript(init) {
		return "", nil
	}

	userData := UserData{
		FQDN:            init.FQDN,
		SSHPasswordAuth: init.SSHPasswordAuth,
		Output:          &Output{All: OutputLog},
	}

	if init.RootPasswordHash != "" {
		userData.Chpasswd = &Chpasswd{
			Expire: false,
			List:   fmt.Sprintf("root:%s", init.RootPasswordHash),
		}
	}

	yamlBytes, err := yaml.Marshal(&userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal custom script to YAML: %w", err)
	}

	return Header + string(yamlBytes), nil
}
