package vm

import (
	"context"
	"fmt"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
	"github.com/jbweber/foundry-ovirt/internal/config"
	"github.com/jbweber/foundry-ovirt/internal/naming"
	"github.com/jbweber/foundry-ovirt/internal/status"
)

// ValidateConfig checks the provider configuration unless
// env.ConfigValidate is false.
type ValidateConfig struct{}

// Call implements Middleware.
func (ValidateConfig) Call(ctx context.Context, env *Env, next Handler) error {
	if env.ConfigValidate {
		if env.Config == nil {
			return fmt.Errorf("provider configuration is required")
		}
		if err := env.Config.Validate(); err != nil {
			return fmt.Errorf("invalid provider configuration: %w", err)
		}
	}
	return next(ctx, env)
}

// ReadState refreshes the machine's state from the VM it points at. A
// record whose VM is gone is reset to not_created and saved.
type ReadState struct{}

// Call implements Middleware.
func (ReadState) Call(ctx context.Context, env *Env, next Handler) error {
	state, err := liveState(ctx, env)
	if err != nil {
		return fmt.Errorf("failed to read VM state: %w", err)
	}

	if state == v1alpha1.StateNotCreated && env.Machine.GetID() != "" {
		env.Log.WithName("read_state").Info("VM no longer exists, clearing record", "vmID", env.Machine.GetID())
		status.ResetAfterDestroy(env.Machine)
		if err := env.save(); err != nil {
			return fmt.Errorf("failed to save machine record: %w", err)
		}
	} else {
		env.Machine.SetState(state)
	}

	return next(ctx, env)
}

// liveState looks up the machine's VM by id. An unset id or an empty
// result is not_created.
func liveState(ctx context.Context, env *Env) (v1alpha1.MachineState, error) {
	id := env.Machine.GetID()
	if id == "" {
		return v1alpha1.StateNotCreated, nil
	}

	vms, err := env.Service.ListVMs(ctx, naming.SearchByID(id))
	if err != nil {
		return "", err
	}
	if len(vms) == 0 {
		return v1alpha1.StateNotCreated, nil
	}
	if vms[0].Status == "" {
		return v1alpha1.StateUnknown, nil
	}
	return v1alpha1.MachineState(vms[0].Status), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func useCloudInit(cfg *config.ProviderConfig) bool {
	return cfg != nil && !cfg.Initialization.IsEmpty()
}
