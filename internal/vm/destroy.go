package vm

import (
	"context"
	"fmt"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
	"github.com/jbweber/foundry-ovirt/internal/metrics"
	"github.com/jbweber/foundry-ovirt/internal/status"
)

const stageDestroy = "destroy"

// ConfirmDestroy asks before destroying unless env.ForceConfirmDestroy is
// set. Declining stops the chain without an error.
type ConfirmDestroy struct{}

// Call implements Middleware.
func (ConfirmDestroy) Call(ctx context.Context, env *Env, next Handler) error {
	if !env.ForceConfirmDestroy {
		ok, err := env.UI.Confirm(fmt.Sprintf("Are you sure you want to destroy VM %s?", env.Machine.Status.VMName))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !ok {
			env.UI.Info("The VM will not be destroyed.")
			return nil
		}
	}
	return next(ctx, env)
}

// HaltVM powers the VM off and waits for it to report "down". VMs that are
// already down, or image locked and unable to start, are left alone.
type HaltVM struct{}

// Call implements Middleware.
func (HaltVM) Call(ctx context.Context, env *Env, next Handler) error {
	if err := haltVM(ctx, env); err != nil {
		metrics.CountStageError(stageDestroy, KindOf(err))
		return err
	}
	return next(ctx, env)
}

func haltVM(ctx context.Context, env *Env) error {
	log := env.Log.WithName(stageDestroy)
	id := env.Machine.GetID()

	state := env.Machine.GetState()
	if state == VMStatusDown || state == VMStatusImageLocked {
		return nil
	}

	env.UI.Info("Halting VM...")
	if err := env.Service.StopVM(ctx, id); err != nil {
		return fmt.Errorf("failed to stop VM %s: %w", id, err)
	}

	rounds := env.Policy.StopRounds
	for round := 0; round < rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		current, err := liveState(ctx, env)
		if err != nil {
			return fmt.Errorf("failed to read state of VM %s: %w", id, err)
		}
		env.Machine.SetState(current)
		if current == VMStatusDown || current == v1alpha1.StateNotCreated {
			log.V(1).Info("VM halted", "vmID", id, "round", round)
			return nil
		}
		if round < rounds-1 {
			env.Clock.Sleep(env.Policy.Interval)
		}
	}
	return fmt.Errorf("VM %s did not stop after %d checks", id, rounds)
}

// RemoveVM deletes the VM and resets the machine record.
type RemoveVM struct{}

// Call implements Middleware.
func (RemoveVM) Call(ctx context.Context, env *Env, next Handler) error {
	start := env.Clock.Now()
	id := env.Machine.GetID()

	if env.Machine.GetState() != v1alpha1.StateNotCreated {
		env.UI.Info("Removing VM...")
		if err := env.Service.RemoveVM(ctx, id); err != nil {
			err = fmt.Errorf("failed to remove VM %s: %w", id, err)
			metrics.CountStageError(stageDestroy, KindOf(err))
			return err
		}
	}

	status.ResetAfterDestroy(env.Machine)
	if err := env.save(); err != nil {
		return fmt.Errorf("failed to save machine record: %w", err)
	}
	metrics.ObserveStage(stageDestroy, env.Clock.Since(start))
	env.Log.WithName(stageDestroy).Info("VM removed", "vmID", id)

	return next(ctx, env)
}
