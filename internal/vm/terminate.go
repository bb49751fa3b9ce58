package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbweber/foundry-ovirt/internal/metrics"
)

// Terminate runs the compensating destroy for a failed or interrupted
// provisioning and returns cause marked as compensated. A destroy failure
// is joined onto cause.
//
// The destroy runs on a derived Env (see Env.DeriveForDestroy) and a
// context that ignores cancellation of ctx.
func Terminate(ctx context.Context, env *Env, cause error) error {
	if cause == nil {
		cause = ErrInterrupted
	}
	log := env.Log.WithName("terminate")

	if env.Destroyer == nil {
		log.Info("No destroyer configured, leaving VM in place", "vmID", env.Machine.GetID())
		return markCompensated(cause)
	}

	log.Info("Running compensating destroy", "vmID", env.Machine.GetID(), "kind", KindOf(cause))
	err := env.Destroyer.Destroy(context.WithoutCancel(ctx), env.DeriveForDestroy())
	metrics.CountCompensatingDestroy(err)
	if err != nil {
		log.Error(err, "Compensating destroy failed", "vmID", env.Machine.GetID())
		return markCompensated(errors.Join(cause, fmt.Errorf("compensating destroy failed: %w", err)))
	}
	return markCompensated(cause)
}
