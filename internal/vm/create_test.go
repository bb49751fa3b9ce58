package vm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
	"github.com/jbweber/foundry-ovirt/internal/config"
	"github.com/jbweber/foundry-ovirt/internal/status"
)

// disksOKFromRound makes every disk report ok starting at the given
// zero-based disk polling round.
func disksOKFromRound(svc *mockService, okRound int) {
	round := -1
	svc.diskAttachmentsFunc = func(vmID string) ([]DiskAttachment, error) {
		round++
		return []DiskAttachment{{ID: "att-1", Disk: Reference{ID: "disk-1"}}}, nil
	}
	svc.resolveDiskFunc = func(ref Reference) (*Disk, error) {
		if okRound >= 0 && round >= okRound {
			return &Disk{ID: ref.ID, Status: DiskStatusOK}, nil
		}
		return &Disk{ID: ref.ID, Status: "locked"}, nil
	}
}

func TestCreateVM_SucceedsFirstRound(t *testing.T) {
	te := newTestEnv(t)
	start := te.clock.Now()

	nextCalled := false
	err := CreateVM{}.Call(context.Background(), te.env, func(ctx context.Context, env *Env) error {
		nextCalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !nextCalled {
		t.Error("Expected next handler to be called")
	}

	if len(te.svc.diskAttachmentsCalls) != 1 {
		t.Errorf("Expected 1 disk round, got %d", len(te.svc.diskAttachmentsCalls))
	}
	if d := te.elapsed(start); d != 0 {
		t.Errorf("Expected no simulated wait, got %v", d)
	}
	if len(te.destroyer.calls) != 0 {
		t.Errorf("Expected no destroy, got %d", len(te.destroyer.calls))
	}

	m := te.env.Machine
	if m.GetID() != "abc123" {
		t.Errorf("Expected ID abc123, got %q", m.GetID())
	}
	if m.Status.VMName != "deadbeef" {
		t.Errorf("Expected VM name deadbeef, got %q", m.Status.VMName)
	}
	if m.GetState() != "image_locked" {
		t.Errorf("Expected state from create response, got %s", m.GetState())
	}
	if m.GetPhase() != v1alpha1.PhaseCreating {
		t.Errorf("Expected phase Creating, got %s", m.GetPhase())
	}
	if !status.IsConditionTrue(m, v1alpha1.ConditionDisksReady) {
		t.Error("Expected DisksReady=True")
	}
}

func TestCreateVM_PersistsIDBeforePolling(t *testing.T) {
	te := newTestEnv(t)

	var savedBeforePoll []string
	te.svc.diskAttachmentsFunc = func(vmID string) ([]DiskAttachment, error) {
		for _, m := range te.store.saved {
			savedBeforePoll = append(savedBeforePoll, m.GetID())
		}
		return nil, nil
	}

	if err := (CreateVM{}).Call(context.Background(), te.env, terminal); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(savedBeforePoll) == 0 || savedBeforePoll[0] != "abc123" {
		t.Errorf("Expected abc123 saved before the first disk poll, got %v", savedBeforePoll)
	}
}

func TestCreateVM_CreateRequest(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(te *testEnv)
		wantCluster  string
		wantTemplate string
		wantHostname string
		wantKeys     int
		wantScript   string
	}{
		{
			name:         "provider defaults",
			setup:        func(te *testEnv) {},
			wantCluster:  "Default",
			wantTemplate: "fedora-42",
		},
		{
			name: "machine spec overrides",
			setup: func(te *testEnv) {
				te.env.Machine.Spec.Cluster = "Lab"
				te.env.Machine.Spec.Template = "centos-10"
			},
			wantCluster:  "Lab",
			wantTemplate: "centos-10",
		},
		{
			name: "guest initialization",
			setup: func(te *testEnv) {
				te.env.Config.Initialization = &config.InitializationConfig{
					FQDN:              "web1.example.com",
					SSHAuthorizedKeys: []string{"ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIIbJKZscbOLzBsgY5y2QupKW4A2kSDjMBQGPb1dChr+S test@example.com"},
				}
			},
			wantCluster:  "Default",
			wantTemplate: "fedora-42",
			wantHostname: "web1",
			wantKeys:     1,
			wantScript:   "fqdn: web1.example.com",
		},
		{
			name: "password login",
			setup: func(te *testEnv) {
				te.env.Config.Initialization = &config.InitializationConfig{
					RootPasswordHash: "$6$rounds=4096$salt$hash",
					SSHPasswordAuth:  true,
				}
			},
			wantCluster:  "Default",
			wantTemplate: "fedora-42",
			wantScript:   "ssh_pwauth: true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(t)
			tt.setup(te)

			if err := (CreateVM{}).Call(context.Background(), te.env, terminal); err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			if len(te.svc.createVMCalls) != 1 {
				t.Fatalf("Expected 1 create call, got %d", len(te.svc.createVMCalls))
			}

			req := te.svc.createVMCalls[0]
			if req.Name != "deadbeef" {
				t.Errorf("Name = %q, want deadbeef", req.Name)
			}
			if req.Cluster != tt.wantCluster {
				t.Errorf("Cluster = %q, want %q", req.Cluster, tt.wantCluster)
			}
			if req.Template != tt.wantTemplate {
				t.Errorf("Template = %q, want %q", req.Template, tt.wantTemplate)
			}
			if req.Hostname != tt.wantHostname {
				t.Errorf("Hostname = %q, want %q", req.Hostname, tt.wantHostname)
			}
			if len(req.SSHAuthorizedKeys) != tt.wantKeys {
				t.Errorf("SSHAuthorizedKeys = %v, want %d keys", req.SSHAuthorizedKeys, tt.wantKeys)
			}
			if tt.wantScript == "" && req.CustomScript != "" {
				t.Errorf("Expected no custom script, got %q", req.CustomScript)
			}
			if !strings.Contains(req.CustomScript, tt.wantScript) {
				t.Errorf("CustomScript = %q, want it to contain %q", req.CustomScript, tt.wantScript)
			}
			if !te.ui.saw(" -- Name:          deadbeef") {
				t.Errorf("Expected name progress message, got %v", te.ui.infos)
			}
			if !te.ui.saw(" -- Cluster:       " + tt.wantCluster) {
				t.Errorf("Expected cluster progress message, got %v", te.ui.infos)
			}
		})
	}
}

func TestCreateVM_DisksReadyWithinBudget(t *testing.T) {
	for _, okRound := range []int{0, 1, 5, 10} {
		t.Run(fmt.Sprintf("ok at round %d", okRound), func(t *testing.T) {
			te := newTestEnv(t)
			disksOKFromRound(te.svc, okRound)
			start := te.clock.Now()

			err := Chain{CreateVM{}}.Run(context.Background(), te.env)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if got := len(te.svc.diskAttachmentsCalls); got != okRound+1 {
				t.Errorf("Expected %d disk rounds, got %d", okRound+1, got)
			}
			want := time.Duration(okRound) * 2 * time.Second
			if d := te.elapsed(start); d != want {
				t.Errorf("Expected %v simulated wait, got %v", want, d)
			}
			if len(te.destroyer.calls) != 0 {
				t.Errorf("Expected no destroy, got %d", len(te.destroyer.calls))
			}
		})
	}
}

func TestCreateVM_DiskTimeout(t *testing.T) {
	te := newTestEnv(t)
	disksOKFromRound(te.svc, -1)
	start := te.clock.Now()

	err := Chain{CreateVM{}}.Run(context.Background(), te.env)

	var timeout *WaitForReadyVMTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected WaitForReadyVMTimeoutError, got %v", err)
	}
	if timeout.VMID != "abc123" || timeout.Rounds != 11 {
		t.Errorf("Unexpected timeout payload %+v", timeout)
	}
	if KindOf(err) != KindWaitForReadyVMTimeout {
		t.Errorf("KindOf() = %s", KindOf(err))
	}
	if !IsCompensated(err) {
		t.Error("Expected error to be marked compensated")
	}

	if got := len(te.svc.diskAttachmentsCalls); got != 11 {
		t.Errorf("Expected 11 disk rounds, got %d", got)
	}
	if d := te.elapsed(start); d != 20*time.Second {
		t.Errorf("Expected 20s simulated wait, got %v", d)
	}

	if len(te.destroyer.calls) != 1 {
		t.Fatalf("Expected exactly 1 destroy, got %d", len(te.destroyer.calls))
	}
	if te.destroyer.calls[0].vmID != "abc123" {
		t.Errorf("Expected destroy to target abc123, got %q", te.destroyer.calls[0].vmID)
	}
	if !te.ui.saw("An error occurred. Recovering...") {
		t.Errorf("Expected recovery message, got %v", te.ui.infos)
	}
	if te.env.Machine.GetPhase() != v1alpha1.PhaseFailed {
		t.Errorf("Expected phase Failed, got %s", te.env.Machine.GetPhase())
	}
}

func TestCreateVM_ShortCircuitsOnFirstUnreadyDisk(t *testing.T) {
	te := newTestEnv(t)
	te.env.Policy.DiskRounds = 1
	te.svc.diskAttachmentsFunc = func(vmID string) ([]DiskAttachment, error) {
		return []DiskAttachment{
			{ID: "att-1", Disk: Reference{ID: "disk-1"}},
			{ID: "att-2", Disk: Reference{ID: "disk-2"}},
			{ID: "att-3", Disk: Reference{ID: "disk-3"}},
		}, nil
	}
	te.svc.resolveDiskFunc = func(ref Reference) (*Disk, error) {
		return &Disk{ID: ref.ID, Status: "locked"}, nil
	}

	err := (CreateVM{}).Call(context.Background(), te.env, terminal)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if len(te.svc.resolveDiskCalls) != 1 {
		t.Errorf("Expected scan to stop after first unready disk, got %d resolves", len(te.svc.resolveDiskCalls))
	}
}

func TestCreateVM_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(te *testEnv)
		wantVMID   string
		wantErrMsg string
	}{
		{
			name: "create request fails",
			setup: func(te *testEnv) {
				te.svc.createVMFunc = func(req CreateRequest) (*VMDescriptor, error) {
					return nil, errors.New("template not found")
				}
			},
			wantVMID:   "",
			wantErrMsg: "template not found",
		},
		{
			name: "disk attachment listing fails",
			setup: func(te *testEnv) {
				te.svc.diskAttachmentsFunc = func(vmID string) ([]DiskAttachment, error) {
					return nil, errors.New("connection reset")
				}
			},
			wantVMID:   "abc123",
			wantErrMsg: "connection reset",
		},
		{
			name: "disk resolution fails",
			setup: func(te *testEnv) {
				te.svc.resolveDiskFunc = func(ref Reference) (*Disk, error) {
					return nil, errors.New("link broken")
				}
			},
			wantVMID:   "abc123",
			wantErrMsg: "link broken",
		},
		{
			name: "name generation fails",
			setup: func(te *testEnv) {
				te.env.NewName = func() (string, error) { return "", errors.New("no entropy") }
			},
			wantVMID:   "",
			wantErrMsg: "no entropy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(t)
			tt.setup(te)

			err := Chain{CreateVM{}}.Run(context.Background(), te.env)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErrMsg, err)
			}
			if KindOf(err) != KindUnclassified {
				t.Errorf("KindOf() = %s, want %s", KindOf(err), KindUnclassified)
			}
			if len(te.destroyer.calls) != 1 {
				t.Fatalf("Expected exactly 1 destroy, got %d", len(te.destroyer.calls))
			}
			if te.destroyer.calls[0].vmID != tt.wantVMID {
				t.Errorf("Destroy saw ID %q, want %q", te.destroyer.calls[0].vmID, tt.wantVMID)
			}
		})
	}
}

func TestCreateVM_DownstreamFailure(t *testing.T) {
	te := newTestEnv(t)
	boom := errors.New("start failed")

	err := Chain{CreateVM{}, middlewareFunc(func(ctx context.Context, env *Env, next Handler) error {
		return boom
	})}.Run(context.Background(), te.env)

	if !errors.Is(err, boom) {
		t.Fatalf("Expected downstream error, got %v", err)
	}
	if len(te.destroyer.calls) != 1 {
		t.Fatalf("Expected exactly 1 destroy, got %d", len(te.destroyer.calls))
	}
	if te.destroyer.calls[0].vmID != "abc123" {
		t.Errorf("Expected destroy to target abc123, got %q", te.destroyer.calls[0].vmID)
	}
}

func TestCreateVM_SkipsCompensatedError(t *testing.T) {
	te := newTestEnv(t)
	handled := markCompensated(&NoVMError{VMID: "abc123"})

	err := Chain{CreateVM{}, middlewareFunc(func(ctx context.Context, env *Env, next Handler) error {
		return handled
	})}.Run(context.Background(), te.env)

	if err != handled {
		t.Errorf("Expected compensated error passed through, got %v", err)
	}
	if len(te.destroyer.calls) != 0 {
		t.Errorf("Expected no destroy, got %d", len(te.destroyer.calls))
	}
	if te.ui.saw("An error occurred. Recovering...") {
		t.Error("Expected no recovery message")
	}
}

func TestCreateVM_InterruptedDuringDiskWait(t *testing.T) {
	te := newTestEnv(t)
	disksOKFromRound(te.svc, -1)

	rounds := 0
	attachments := te.svc.diskAttachmentsFunc
	te.svc.diskAttachmentsFunc = func(vmID string) ([]DiskAttachment, error) {
		rounds++
		if rounds == 3 {
			te.env.Interrupt()
		}
		return attachments(vmID)
	}

	err := Chain{CreateVM{}}.Run(context.Background(), te.env)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}
	if rounds != 3 {
		t.Errorf("Expected polling to stop after round 3, got %d rounds", rounds)
	}
	if len(te.destroyer.calls) != 1 {
		t.Fatalf("Expected exactly 1 destroy, got %d", len(te.destroyer.calls))
	}

	call := te.destroyer.calls[0]
	if call.interrupted {
		t.Error("Expected destroy env to have a cleared interruption flag")
	}
	if call.configValidate {
		t.Error("Expected destroy env to skip config validation")
	}
	if !call.forceConfirmDestroy {
		t.Error("Expected destroy env to force confirmation")
	}
	if !te.env.Interrupted() {
		t.Error("Interrupting the destroy env must not clear the original flag")
	}
}

func TestCreateVM_ResetsStaleCreatingPhase(t *testing.T) {
	te := newTestEnv(t)
	te.env.Machine.SetPhase(v1alpha1.PhaseCreating)

	if err := (CreateVM{}).Call(context.Background(), te.env, terminal); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(te.svc.createVMCalls) != 1 {
		t.Errorf("Expected create to proceed, got %d calls", len(te.svc.createVMCalls))
	}
}

func TestCreateVM_UnresolvedDiskIsNotReady(t *testing.T) {
	te := newTestEnv(t)
	te.env.Policy.DiskRounds = 3
	te.svc.resolveDiskFunc = func(ref Reference) (*Disk, error) {
		return nil, nil
	}

	err := (CreateVM{}).Call(context.Background(), te.env, terminal)

	var timeout *WaitForReadyVMTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected WaitForReadyVMTimeoutError, got %v", err)
	}
	if len(te.svc.diskAttachmentsCalls) != 3 {
		t.Errorf("Expected 3 disk rounds, got %d", len(te.svc.diskAttachmentsCalls))
	}
}

func TestCreateVM_RetryAfterFailedDropsStaleConditions(t *testing.T) {
	te := newTestEnv(t)
	m := te.env.Machine
	status.MarkAddressAssigned(m, "10.0.0.9")
	status.MarkDisksFailed(m, errors.New("disks never became ready"))
	if m.GetPhase() != v1alpha1.PhaseFailed {
		t.Fatalf("setup: expected phase Failed, got %s", m.GetPhase())
	}

	if err := (CreateVM{}).Call(context.Background(), te.env, terminal); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if status.GetCondition(m, v1alpha1.ConditionAddressAssigned) != nil {
		t.Error("Expected the previous AddressAssigned condition to be dropped")
	}
	if !status.IsConditionTrue(m, v1alpha1.ConditionDisksReady) {
		t.Error("Expected DisksReady=True from this attempt")
	}
	if m.GetPhase() != v1alpha1.PhaseCreating {
		t.Errorf("Expected phase Creating, got %s", m.GetPhase())
	}
}

func TestCreateVM_ResetsStaleRunningPhase(t *testing.T) {
	te := newTestEnv(t)
	te.env.Machine.SetPhase(v1alpha1.PhaseRunning)

	if err := (CreateVM{}).Call(context.Background(), te.env, terminal); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(te.svc.createVMCalls) != 1 {
		t.Errorf("Expected create to proceed, got %d calls", len(te.svc.createVMCalls))
	}
}
