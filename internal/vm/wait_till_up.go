package vm

import (
	"context"
	"fmt"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
	"github.com/jbweber/foundry-ovirt/internal/metrics"
	"github.com/jbweber/foundry-ovirt/internal/naming"
	"github.com/jbweber/foundry-ovirt/internal/status"
)

const stageWaitTillUp = "wait_till_up"

// WaitTillUp polls the VM's NICs until one reports an IPv4 address, for at
// most env.Policy.AddressRounds rounds. Running out of rounds is not an
// error: the machine is reported ready without an address.
//
// Rounds that start after an interruption do nothing. Once the loop ends an
// interrupted provisioning is destroyed instead of being reported ready, and
// Call returns ErrInterrupted already marked compensated (IsCompensated
// reports true) so no recovery up the chain destroys it again.
type WaitTillUp struct{}

// Call implements Middleware.
func (WaitTillUp) Call(ctx context.Context, env *Env, next Handler) error {
	log := env.Log.WithName(stageWaitTillUp)
	if env.Metrics == nil {
		env.Metrics = Metrics{}
	}

	env.IPAddress = ""
	env.UI.Info("Waiting for VM to get an IP address...")

	start := env.Clock.Now()
	err := waitForAddress(ctx, env)
	elapsed := env.Clock.Since(start)
	env.Metrics[MetricInstanceIPTime] = elapsed
	metrics.ObserveStage(stageWaitTillUp, elapsed)
	if err != nil {
		metrics.CountStageError(stageWaitTillUp, KindOf(err))
		return err
	}

	if env.Interrupted() {
		metrics.CountStageError(stageWaitTillUp, KindInterrupted)
		status.TransitionToFailed(env.Machine, "Interrupted", "provisioning interrupted while waiting for an address")
		return Terminate(ctx, env, ErrInterrupted)
	}

	log.Info("Address discovery finished", "vmID", env.Machine.GetID(), "address", env.IPAddress, "elapsed", elapsed)

	m := env.Machine
	if !naming.IsIPv4(env.IPAddress) {
		env.IPAddress = ""
	}
	if env.IPAddress != "" {
		status.MarkAddressAssigned(m, env.IPAddress)
	} else {
		status.MarkAddressPending(m)
	}
	if err := status.TransitionToRunning(m); err != nil {
		return err
	}
	if err := env.save(); err != nil {
		return fmt.Errorf("failed to save machine record: %w", err)
	}

	env.UI.Info("Machine is booted and ready for use!")
	return next(ctx, env)
}

func waitForAddress(ctx context.Context, env *Env) error {
	log := env.Log.WithName(stageWaitTillUp)
	id := env.Machine.GetID()
	rounds := env.Policy.AddressRounds

	for round := 0; round < rounds; round++ {
		if env.Interrupted() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		metrics.CountPollRound(stageWaitTillUp)

		vms, err := env.Service.ListVMs(ctx, naming.SearchByID(id))
		if err != nil {
			return fmt.Errorf("failed to look up VM %s: %w", id, err)
		}
		if len(vms) == 0 {
			return &NoVMError{VMID: id}
		}

		nics, err := env.Service.NICs(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list NICs of VM %s: %w", id, err)
		}

		env.IPAddress = firstIPv4(ctx, env, nics)
		log.V(1).Info("Polled NICs", "vmID", id, "round", round, "address", env.IPAddress)
		if naming.IsIPv4(env.IPAddress) {
			return nil
		}

		if round < rounds-1 {
			env.Clock.Sleep(env.Policy.Interval)
		}
	}
	return nil
}

// firstIPv4 returns the first well-formed IPv4 address among the v4
// addresses reported on the NICs, or "". A NIC that cannot be resolved counts
// as having no address.
func firstIPv4(ctx context.Context, env *Env, refs []Reference) string {
	var addrs []string
	for _, ref := range refs {
		nic, err := env.Service.ResolveNIC(ctx, ref)
		if err != nil || nic == nil {
			env.Log.WithName(stageWaitTillUp).V(1).Info("Skipping unresolvable NIC", "nic", ref.ID, "error", err)
			continue
		}
		for _, dev := range nic.ReportedDevices {
			for _, ip := range dev.IPs {
				if ip.Version == IPVersion4 && ip.Address != "" {
					addrs = append(addrs, ip.Address)
				}
			}
		}
	}
	return naming.FirstIPv4(addrs)
}

// Recover destroys the VM unless the error was already compensated or the
// VM no longer exists.
func (WaitTillUp) Recover(ctx context.Context, env *Env, err error) error {
	if IsCompensated(err) {
		return err
	}

	state, lookupErr := liveState(ctx, env)
	if lookupErr != nil {
		env.Log.WithName(stageWaitTillUp).Error(lookupErr, "Failed to read VM state during recovery", "vmID", env.Machine.GetID())
		state = v1alpha1.StateUnknown
	}
	if state == v1alpha1.StateNotCreated {
		status.ResetAfterDestroy(env.Machine)
		if saveErr := env.save(); saveErr != nil {
			env.Log.WithName(stageWaitTillUp).Error(saveErr, "Failed to save machine record during recovery")
		}
		return markCompensated(err)
	}

	status.MarkFailed(env.Machine, reasonFor(err), err.Error())
	return Terminate(ctx, env, err)
}
