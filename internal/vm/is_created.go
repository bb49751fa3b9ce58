package vm

import (
	"context"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
)

// IsCreated reports whether the machine record is bound to a VM: true for
// every state except not_created.
func IsCreated(m *v1alpha1.Machine) bool {
	return m.GetState() != v1alpha1.StateNotCreated
}

// IsCreatedStage stores IsCreated in env.Result.
type IsCreatedStage struct{}

// Call implements Middleware.
func (IsCreatedStage) Call(ctx context.Context, env *Env, next Handler) error {
	env.Result = IsCreated(env.Machine)
	return next(ctx, env)
}

// MessageAlreadyCreated tells the user there is nothing to bring up.
type MessageAlreadyCreated struct{}

// Call implements Middleware.
func (MessageAlreadyCreated) Call(ctx context.Context, env *Env, next Handler) error {
	env.UI.Info("VM is already created")
	return next(ctx, env)
}

// MessageNotCreated tells the user there is nothing to destroy.
type MessageNotCreated struct{}

// Call implements Middleware.
func (MessageNotCreated) Call(ctx context.Context, env *Env, next Handler) error {
	env.UI.Info("VM is not created. Please run `up` first.")
	return next(ctx, env)
}
