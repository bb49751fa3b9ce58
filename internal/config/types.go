package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout is the oVirt API request timeout used when none is set.
const DefaultTimeout = 120 * time.Second

// ProviderConfig is the oVirt provider configuration for one invocation.
// Values come from a YAML file and are then overlaid from OVIRT_* environment
// variables. It is not modified once loaded.
type ProviderConfig struct {
	URL      string `yaml:"url" env:"OVIRT_URL, overwrite"`
	Username string `yaml:"username" env:"OVIRT_USERNAME, overwrite"`
	Password string `yaml:"password" env:"OVIRT_PASSWORD, overwrite"`
	Insecure bool   `yaml:"insecure,omitempty" env:"OVIRT_INSECURE, overwrite"`
	CAFile   string `yaml:"ca_file,omitempty" env:"OVIRT_CA_FILE, overwrite"`

	// Timeout bounds a single API request, not the provisioning wait loops.
	Timeout time.Duration `yaml:"timeout,omitempty" env:"OVIRT_TIMEOUT, overwrite"`

	Cluster  string `yaml:"cluster" env:"OVIRT_CLUSTER, overwrite"`
	Template string `yaml:"template" env:"OVIRT_TEMPLATE, overwrite"`

	Initialization *InitializationConfig `yaml:"initialization,omitempty"`
}

// InitializationConfig is handed to oVirt's guest initialization (cloud-init)
// on first boot.
// Note: the VM name is random, so the guest hostname comes from FQDN only.
type InitializationConfig struct {
	FQDN              string   `yaml:"fqdn,omitempty" env:"OVIRT_INIT_FQDN, overwrite"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty" env:"OVIRT_INIT_SSH_AUTHORIZED_KEYS, overwrite"`

	// Passed as a cloud-config custom script since oVirt has no native field
	RootPasswordHash string `yaml:"root_password_hash,omitempty" env:"OVIRT_INIT_ROOT_PASSWORD_HASH, overwrite"`
	SSHPasswordAuth  bool   `yaml:"ssh_pwauth,omitempty" env:"OVIRT_INIT_SSH_PWAUTH, overwrite"`
}

// Validate checks the configuration for errors.
// Does not check that the cluster or template exist, only config structure.
func (c *ProviderConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", c.URL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("url must use http or https, got %q", c.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("url must include a host, got %q", c.URL)
	}

	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	if c.Cluster == "" {
		return fmt.Errorf("cluster is required")
	}
	if c.Template == "" {
		return fmt.Errorf("template is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", c.Timeout)
	}
	if c.Insecure && c.CAFile != "" {
		return fmt.Errorf("cannot specify both 'insecure: true' and 'ca_file'")
	}

	if c.Initialization != nil {
		if err := c.Initialization.Validate(); err != nil {
			return fmt.Errorf("initialization: %w", err)
		}
	}

	return nil
}

// Validate checks the guest initialization settings.
func (i *InitializationConfig) Validate() error {
	if i.FQDN != "" {
		// RFC 952/1123 labels separated by dots, at least one dot
		fqdnPattern := `^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`
		matched, err := regexp.MatchString(fqdnPattern, i.FQDN)
		if err != nil {
			return fmt.Errorf("fqdn validation error: %w", err)
		}
		if !matched {
			return fmt.Errorf("fqdn must be a valid hostname with domain (e.g., host.example.com), got %q", i.FQDN)
		}
	}

	for n, key := range i.SSHAuthorizedKeys {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			return fmt.Errorf("ssh_authorized_keys[%d] is not a valid SSH public key: %w", n, err)
		}
	}

	if i.RootPasswordHash != "" {
		if len(i.RootPasswordHash) < 10 || i.RootPasswordHash[0] != '$' {
			return fmt.Errorf("root_password_hash must be a valid crypt hash (should start with $)")
		}
	}

	return nil
}

// IsEmpty reports whether no initialization setting is present.
func (i *InitializationConfig) IsEmpty() bool {
	return i == nil || (i.FQDN == "" && len(i.SSHAuthorizedKeys) == 0 &&
		i.RootPasswordHash == "" && !i.SSHPasswordAuth)
}

// Normalize sanitizes user input and applies defaults.
// This is called automatically by Load before validation.
func (c *ProviderConfig) Normalize() {
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")
	c.Username = strings.TrimSpace(c.Username)

	// Cluster and template names are NOT lowercased, oVirt matches them exactly
	c.Cluster = strings.TrimSpace(c.Cluster)
	c.Template = strings.TrimSpace(c.Template)

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.Initialization != nil {
		c.Initialization.FQDN = strings.ToLower(strings.TrimSpace(c.Initialization.FQDN))
		keys := c.Initialization.SSHAuthorizedKeys[:0]
		for _, k := range c.Initialization.SSHAuthorizedKeys {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		c.Initialization.SSHAuthorizedKeys = keys
		c.Initialization.RootPasswordHash = strings.TrimSpace(c.Initialization.RootPasswordHash)
	}
}

// Hostname returns the short guest hostname derived from the FQDN, or "".
func (i *InitializationConfig) Hostname() string {
	if i == nil {
		return ""
	}
	host, _, _ := strings.Cut(i.FQDN, ".")
	return host
}

// ApplyEnv overlays OVIRT_* variables found through lookuper onto c.
// Unset variables leave the file values alone.
func ApplyEnv(ctx context.Context, c *ProviderConfig, lookuper envconfig.Lookuper) error {
	if c.Initialization == nil {
		c.Initialization = &InitializationConfig{}
		defer func() {
			if c.Initialization.IsEmpty() {
				c.Initialization = nil
			}
		}()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   c,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// LoadFromFile loads the provider configuration from a YAML file, overlays
// the process environment, normalizes and validates it.
//
// An empty path skips the file and reads the environment only.
func LoadFromFile(ctx context.Context, path string) (*ProviderConfig, error) {
	return load(ctx, path, envconfig.OsLookuper())
}

func load(ctx context.Context, path string, lookuper envconfig.Lookuper) (*ProviderConfig, error) {
	var config ProviderConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := ApplyEnv(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	// Normalize user input before validation
	config.Normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
