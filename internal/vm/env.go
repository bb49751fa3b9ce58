package vm

import (
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
	"github.com/jbweber/foundry-ovirt/internal/config"
	"github.com/jbweber/foundry-ovirt/internal/naming"
)

// MetricInstanceIPTime is the Metrics key for the address discovery phase.
const MetricInstanceIPTime = "instance_ip_time"

// Metrics maps a metric name to an elapsed duration. Stages only write to it.
type Metrics map[string]time.Duration

// PollPolicy bounds the polling loops. Timeouts are round counts times
// Interval, not wall-clock deadlines.
type PollPolicy struct {
	Interval time.Duration

	// DiskRounds is how many times disk attachments are checked.
	DiskRounds int

	// AddressRounds is how many times NICs are checked for an IPv4 address.
	AddressRounds int

	// StopRounds is how many times a stopping VM is checked for "down".
	StopRounds int
}

// DefaultPollPolicy is 11 disk rounds (~22s), 300 address rounds (~600s)
// and 60 stop rounds (~120s), 2s apart.
var DefaultPollPolicy = PollPolicy{
	Interval:      2 * time.Second,
	DiskRounds:    11,
	AddressRounds: 300,
	StopRounds:    60,
}

// Env is the state threaded through every stage of one invocation.
//
// Create it with NewEnv: the interruption flag must exist before the signal
// handler can set it.
type Env struct {
	Machine *v1alpha1.Machine
	Config  *config.ProviderConfig
	Service Service
	UI      UI
	Log     logr.Logger
	Clock   clock.Clock
	Store   MachineStore

	// Destroyer runs the compensating destroy.
	Destroyer Destroyer

	// NewName generates VM names. Defaults to naming.RandomVMName.
	NewName func() (string, error)

	Policy  PollPolicy
	Metrics Metrics

	// IPAddress is the discovered IPv4 address, "" until found.
	IPAddress string

	// Result is the last predicate outcome (see IsCreated).
	Result bool

	ConfigValidate      bool
	ForceConfirmDestroy bool

	interrupted *atomic.Bool
}

// NewEnv returns an Env with a real clock, the default poll policy and
// config validation enabled.
func NewEnv(m *v1alpha1.Machine, cfg *config.ProviderConfig, svc Service, ui UI, log logr.Logger) *Env {
	return &Env{
		Machine:        m,
		Config:         cfg,
		Service:        svc,
		UI:             ui,
		Log:            log,
		Clock:          clock.RealClock{},
		NewName:        naming.RandomVMName,
		Policy:         DefaultPollPolicy,
		ConfigValidate: true,
		interrupted:    &atomic.Bool{},
	}
}

// Interrupt marks the invocation as interrupted. Safe to call from a signal
// handler goroutine.
func (e *Env) Interrupt() {
	e.interrupted.Store(true)
}

// Interrupted reports whether Interrupt was called.
func (e *Env) Interrupted() bool {
	return e.interrupted != nil && e.interrupted.Load()
}

// DeriveForDestroy returns a shallow copy for a compensating destroy: a
// fresh interruption flag, no config validation and no confirmation prompt.
// The machine record is shared so the destroy sees the persisted id.
func (e *Env) DeriveForDestroy() *Env {
	d := *e
	d.interrupted = &atomic.Bool{}
	d.ConfigValidate = false
	d.ForceConfirmDestroy = true
	return &d
}

func (e *Env) save() error {
	if e.Store == nil {
		return nil
	}
	return e.Store.Save(e.Machine)
}
