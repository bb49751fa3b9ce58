package vm

import (
	"context"
	"fmt"

	"github.com/jbweber/foundry-ovirt/internal/metrics"
)

const stageStartVM = "start_vm"

// StartVM powers on the created VM, applying guest initialization when it
// is configured.
type StartVM struct{}

// Call implements Middleware.
func (StartVM) Call(ctx context.Context, env *Env, next Handler) error {
	start := env.Clock.Now()
	id := env.Machine.GetID()

	env.UI.Info("Starting VM...")
	if err := env.Service.StartVM(ctx, id, useCloudInit(env.Config)); err != nil {
		err = fmt.Errorf("failed to start VM %s: %w", id, err)
		metrics.CountStageError(stageStartVM, KindOf(err))
		metrics.ObserveStage(stageStartVM, env.Clock.Since(start))
		return err
	}
	metrics.ObserveStage(stageStartVM, env.Clock.Since(start))
	env.Log.WithName(stageStartVM).Info("VM started", "vmID", id)

	return next(ctx, env)
}
