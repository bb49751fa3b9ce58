package vm

import (
	"context"
	"fmt"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
	"github.com/jbweber/foundry-ovirt/internal/cloudinit"
	"github.com/jbweber/foundry-ovirt/internal/metrics"
	"github.com/jbweber/foundry-ovirt/internal/naming"
	"github.com/jbweber/foundry-ovirt/internal/status"
)

const stageCreateVM = "create_vm"

// CreateVM creates the VM from the configured template, persists its id,
// and waits for every attached disk to report "ok".
//
// The id is saved before any polling so a compensating destroy can find the
// VM whatever fails afterwards.
type CreateVM struct{}

// Call implements Middleware.
func (CreateVM) Call(ctx context.Context, env *Env, next Handler) error {
	start := env.Clock.Now()
	if err := createVM(ctx, env); err != nil {
		metrics.CountStageError(stageCreateVM, KindOf(err))
		metrics.ObserveStage(stageCreateVM, env.Clock.Since(start))
		return err
	}
	metrics.ObserveStage(stageCreateVM, env.Clock.Since(start))

	return next(ctx, env)
}

func createVM(ctx context.Context, env *Env) error {
	log := env.Log.WithName(stageCreateVM)
	m := env.Machine

	newName := env.NewName
	if newName == nil {
		newName = naming.RandomVMName
	}
	name, err := newName()
	if err != nil {
		return fmt.Errorf("failed to generate VM name: %w", err)
	}

	req := CreateRequest{
		Name:     name,
		Cluster:  firstNonEmpty(m.Spec.Cluster, env.Config.Cluster),
		Template: firstNonEmpty(m.Spec.Template, env.Config.Template),
	}
	if ic := env.Config.Initialization; ic != nil {
		req.Hostname = ic.Hostname()
		req.SSHAuthorizedKeys = ic.SSHAuthorizedKeys
		script, err := cloudinit.GenerateCustomScript(ic)
		if err != nil {
			return err
		}
		req.CustomScript = script
	}

	env.UI.Info("Creating VM with the following settings...")
	env.UI.Info(" -- Name:          " + req.Name)
	env.UI.Info(" -- Cluster:       " + req.Cluster)
	env.UI.Info(" -- Template:      " + req.Template)

	// Without an id there is no VM to resume from
	if phase := m.GetPhase(); m.GetID() == "" && (status.IsTransitioning(phase) || status.IsRunning(phase)) {
		m.SetPhase(v1alpha1.PhasePending)
	}
	if err := status.TransitionToCreating(m); err != nil {
		return err
	}
	// A retry after Failed must not carry the last attempt's results
	status.RemoveCondition(m, v1alpha1.ConditionDisksReady)
	status.RemoveCondition(m, v1alpha1.ConditionAddressAssigned)

	log.V(1).Info("Submitting create request", "name", req.Name, "cluster", req.Cluster, "template", req.Template)
	desc, err := env.Service.CreateVM(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create VM %s: %w", req.Name, err)
	}
	if desc == nil || desc.ID == "" {
		return fmt.Errorf("create VM %s returned no id", req.Name)
	}

	m.SetID(desc.ID)
	m.Status.VMName = req.Name
	m.SetState(v1alpha1.MachineState(firstNonEmpty(desc.Status, string(v1alpha1.StateDown))))
	if err := env.save(); err != nil {
		return fmt.Errorf("failed to save machine record: %w", err)
	}
	status.MarkVMCreated(m)
	log.Info("VM created", "vmID", desc.ID, "name", req.Name)

	env.UI.Info("Waiting for VM disks to become ready...")
	if err := waitForDisks(ctx, env, desc.ID); err != nil {
		status.MarkDisksFailed(m, err)
		return err
	}

	status.MarkDisksReady(m)
	if err := env.save(); err != nil {
		return fmt.Errorf("failed to save machine record: %w", err)
	}
	return nil
}

// waitForDisks polls the VM's disk attachments until every disk is "ok",
// for at most env.Policy.DiskRounds rounds.
func waitForDisks(ctx context.Context, env *Env, vmID string) error {
	log := env.Log.WithName(stageCreateVM)
	rounds := env.Policy.DiskRounds

	for round := 0; round < rounds; round++ {
		if env.Interrupted() {
			return ErrInterrupted
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		metrics.CountPollRound(stageCreateVM)

		ready, err := disksReady(ctx, env, vmID)
		if err != nil {
			return err
		}
		if ready {
			log.V(1).Info("Disks ready", "vmID", vmID, "round", round)
			return nil
		}

		log.V(1).Info("Disks not ready", "vmID", vmID, "round", round)
		if round < rounds-1 {
			env.Clock.Sleep(env.Policy.Interval)
		}
	}

	return &WaitForReadyVMTimeoutError{VMID: vmID, Rounds: rounds}
}

// disksReady reports whether every attached disk is "ok". It stops at the
// first disk that is not.
func disksReady(ctx context.Context, env *Env, vmID string) (bool, error) {
	attachments, err := env.Service.DiskAttachments(ctx, vmID)
	if err != nil {
		return false, fmt.Errorf("failed to list disk attachments of VM %s: %w", vmID, err)
	}

	for _, a := range attachments {
		disk, err := env.Service.ResolveDisk(ctx, a.Disk)
		if err != nil {
			return false, fmt.Errorf("failed to resolve disk %s: %w", a.Disk.ID, err)
		}
		if disk == nil || disk.Status != DiskStatusOK {
			return false, nil
		}
	}
	return true, nil
}

// Recover runs a compensating destroy unless the error was already
// compensated by a later stage.
func (CreateVM) Recover(ctx context.Context, env *Env, err error) error {
	if IsCompensated(err) {
		return err
	}

	env.UI.Info("An error occurred. Recovering...")
	status.MarkFailed(env.Machine, reasonFor(err), err.Error())
	return Terminate(ctx, env, err)
}

// reasonFor turns an error kind into a condition reason.
func reasonFor(err error) string {
	switch KindOf(err) {
	case KindWaitForReadyVMTimeout:
		return "WaitForReadyVMTimeout"
	case KindNoVM:
		return "NoVM"
	case KindInterrupted:
		return "Interrupted"
	default:
		return "ProvisioningFailed"
	}
}
