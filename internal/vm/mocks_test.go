package vm

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
	"github.com/jbweber/foundry-ovirt/internal/config"
)

// mockService is a mock implementation of the Service interface for testing.
type mockService struct {
	mu sync.Mutex

	// Configurable behavior
	createVMFunc        func(req CreateRequest) (*VMDescriptor, error)
	listVMsFunc         func(search string) ([]VMDescriptor, error)
	diskAttachmentsFunc func(vmID string) ([]DiskAttachment, error)
	nicsFunc            func(vmID string) ([]Reference, error)
	resolveDiskFunc     func(ref Reference) (*Disk, error)
	resolveNICFunc      func(ref Reference) (*NIC, error)
	startVMFunc         func(vmID string, useCloudInit bool) error
	stopVMFunc          func(vmID string) error
	removeVMFunc        func(vmID string) error

	// Call tracking
	createVMCalls        []CreateRequest
	listVMsCalls         []string
	diskAttachmentsCalls []string
	nicsCalls            []string
	resolveDiskCalls     []Reference
	resolveNICCalls      []Reference
	startVMCalls         []string
	stopVMCalls          []string
	removeVMCalls        []string
}

// newMockService creates a mock service where every call succeeds: the VM
// is created as abc123, its one disk is ok and its one NIC reports 10.0.0.5.
func newMockService() *mockService {
	m := &mockService{}

	m.createVMFunc = func(req CreateRequest) (*VMDescriptor, error) {
		return &VMDescriptor{ID: "abc123", Name: req.Name, Status: "image_locked"}, nil
	}
	m.listVMsFunc = func(search string) ([]VMDescriptor, error) {
		return []VMDescriptor{{ID: "abc123", Status: "up"}}, nil
	}
	m.diskAttachmentsFunc = func(vmID string) ([]DiskAttachment, error) {
		return []DiskAttachment{{ID: "att-1", Disk: Reference{ID: "disk-1"}}}, nil
	}
	m.nicsFunc = func(vmID string) ([]Reference, error) {
		return []Reference{{ID: "nic-1"}}, nil
	}
	m.resolveDiskFunc = func(ref Reference) (*Disk, error) {
		return &Disk{ID: ref.ID, Status: DiskStatusOK}, nil
	}
	m.resolveNICFunc = func(ref Reference) (*NIC, error) {
		return &NIC{
			ID:   ref.ID,
			Name: "nic1",
			ReportedDevices: []ReportedDevice{
				{Name: "eth0", IPs: []IP{{Version: IPVersion4, Address: "10.0.0.5"}}},
			},
		}, nil
	}
	m.startVMFunc = func(vmID string, useCloudInit bool) error { return nil }
	m.stopVMFunc = func(vmID string) error { return nil }
	m.removeVMFunc = func(vmID string) error { return nil }

	return m
}

func (m *mockService) CreateVM(ctx context.Context, req CreateRequest) (*VMDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createVMCalls = append(m.createVMCalls, req)
	return m.createVMFunc(req)
}

func (m *mockService) ListVMs(ctx context.Context, search string) ([]VMDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listVMsCalls = append(m.listVMsCalls, search)
	return m.listVMsFunc(search)
}

func (m *mockService) DiskAttachments(ctx context.Context, vmID string) ([]DiskAttachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diskAttachmentsCalls = append(m.diskAttachmentsCalls, vmID)
	return m.diskAttachmentsFunc(vmID)
}

func (m *mockService) NICs(ctx context.Context, vmID string) ([]Reference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nicsCalls = append(m.nicsCalls, vmID)
	return m.nicsFunc(vmID)
}

func (m *mockService) ResolveDisk(ctx context.Context, ref Reference) (*Disk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveDiskCalls = append(m.resolveDiskCalls, ref)
	return m.resolveDiskFunc(ref)
}

func (m *mockService) ResolveNIC(ctx context.Context, ref Reference) (*NIC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveNICCalls = append(m.resolveNICCalls, ref)
	return m.resolveNICFunc(ref)
}

func (m *mockService) StartVM(ctx context.Context, vmID string, useCloudInit bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startVMCalls = append(m.startVMCalls, vmID)
	return m.startVMFunc(vmID, useCloudInit)
}

func (m *mockService) StopVM(ctx context.Context, vmID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopVMCalls = append(m.stopVMCalls, vmID)
	return m.stopVMFunc(vmID)
}

func (m *mockService) RemoveVM(ctx context.Context, vmID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeVMCalls = append(m.removeVMCalls, vmID)
	return m.removeVMFunc(vmID)
}

// mockUI records every message.
type mockUI struct {
	mu sync.Mutex

	confirmFunc func(prompt string) (bool, error)

	infos    []string
	warns    []string
	confirms []string
}

func newMockUI() *mockUI {
	return &mockUI{
		confirmFunc: func(prompt string) (bool, error) { return true, nil },
	}
}

func (u *mockUI) Info(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.infos = append(u.infos, message)
}

func (u *mockUI) Warn(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.warns = append(u.warns, message)
}

func (u *mockUI) Confirm(prompt string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.confirms = append(u.confirms, prompt)
	return u.confirmFunc(prompt)
}

func (u *mockUI) saw(message string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, m := range u.infos {
		if m == message {
			return true
		}
	}
	return false
}

// mockStore records a copy of every saved record.
type mockStore struct {
	mu sync.Mutex

	saveFunc func(m *v1alpha1.Machine) error

	saved []*v1alpha1.Machine
}

func newMockStore() *mockStore {
	return &mockStore{
		saveFunc: func(m *v1alpha1.Machine) error { return nil },
	}
}

func (s *mockStore) Save(m *v1alpha1.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, m.DeepCopy())
	return s.saveFunc(m)
}

// mockDestroyer records the machine id it was asked to destroy.
type mockDestroyer struct {
	mu sync.Mutex

	destroyFunc func(env *Env) error

	calls []destroyCall
}

type destroyCall struct {
	vmID                string
	interrupted         bool
	configValidate      bool
	forceConfirmDestroy bool
}

func newMockDestroyer() *mockDestroyer {
	return &mockDestroyer{
		destroyFunc: func(env *Env) error { return nil },
	}
}

func (d *mockDestroyer) Destroy(ctx context.Context, env *Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, destroyCall{
		vmID:                env.Machine.GetID(),
		interrupted:         env.Interrupted(),
		configValidate:      env.ConfigValidate,
		forceConfirmDestroy: env.ForceConfirmDestroy,
	})
	return d.destroyFunc(env)
}

// testProviderConfig returns a valid provider configuration.
func testProviderConfig() *config.ProviderConfig {
	cfg := &config.ProviderConfig{
		URL:      "https://engine.example.com/ovirt-engine/api",
		Username: "admin@internal",
		Password: "secret",
		Cluster:  "Default",
		Template: "fedora-42",
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid test config: %v", err))
	}
	return cfg
}

// testEnv bundles an Env with its mocks.
type testEnv struct {
	env       *Env
	svc       *mockService
	ui        *mockUI
	store     *mockStore
	destroyer *mockDestroyer
	clock     *testingclock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	te := &testEnv{
		svc:       newMockService(),
		ui:        newMockUI(),
		store:     newMockStore(),
		destroyer: newMockDestroyer(),
		clock:     testingclock.NewFakeClock(time.Date(2025, 11, 3, 10, 30, 0, 0, time.UTC)),
	}

	env := NewEnv(v1alpha1.NewMachine("default"), testProviderConfig(), te.svc, te.ui, testr.New(t))
	env.Clock = te.clock
	env.Store = te.store
	env.Destroyer = te.destroyer
	env.NewName = func() (string, error) { return "deadbeef", nil }
	te.env = env

	return te
}

// created puts the machine into the state CreateVM leaves it in.
func (te *testEnv) created() *testEnv {
	m := te.env.Machine
	m.SetID("abc123")
	m.Status.VMName = "deadbeef"
	m.SetState(v1alpha1.StateDown)
	m.SetPhase(v1alpha1.PhaseCreating)
	return te
}

func (te *testEnv) elapsed(since time.Time) time.Duration {
	return te.clock.Since(since)
}

// terminal is a Handler that ends a chain successfully.
func terminal(ctx context.Context, env *Env) error { return nil }

// failing returns a Handler that fails with err.
func failing(err error) Handler {
	return func(ctx context.Context, env *Env) error { return err }
}

// middlewareFunc adapts a function to Middleware.
type middlewareFunc func(ctx context.Context, env *Env, next Handler) error

func (f middlewareFunc) Call(ctx context.Context, env *Env, next Handler) error {
	return f(ctx, env, next)
}
