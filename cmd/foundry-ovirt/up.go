package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbweber/foundry-ovirt/internal/vm"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create and start the machine's VM",
	Long: `Create a VM from the configured template, start it and wait for it
to report an IPv4 address.

If the machine already has a VM nothing is created. If provisioning fails,
or is interrupted with Ctrl-C, the new VM is destroyed again. A second
Ctrl-C aborts immediately and may leave the VM behind.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd.Context(), vm.UpAction(), false)
	},
}

var destroyForce bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Stop and remove the machine's VM",
	Long: `Destroy the machine's VM.

This will:
- Ask for confirmation unless --force is given
- Stop the VM if it is running
- Remove the VM and its disks
- Reset the machine record`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd.Context(), vm.DestroyAction(), destroyForce)
	},
}

func init() {
	destroyCmd.Flags().BoolVarP(&destroyForce, "force", "f", false, "Destroy without asking for confirmation")
}

// runAction runs chain against the selected machine. The first SIGINT or
// SIGTERM interrupts the run and lets it clean up; the second exits.
func runAction(ctx context.Context, chain vm.Chain, force bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	m, err := s.store.Load(machineName)
	if err != nil {
		return fmt.Errorf("failed to load machine %s: %w", machineName, err)
	}

	env := vm.NewEnv(m, s.cfg, s.client, s.ui, s.log)
	env.Store = s.store
	env.Destroyer = vm.ChainDestroyer{}
	env.ForceConfirmDestroy = force

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCh:
			s.ui.Warn("Interrupted, cleaning up. Press Ctrl-C again to abort.")
			env.Interrupt()
		case <-done:
			return
		}
		select {
		case <-sigCh:
			s.ui.Warn("Aborting without cleanup.")
			os.Exit(130)
		case <-done:
		}
	}()

	if err := chain.Run(ctx, env); err != nil {
		s.log.V(1).Info("Action failed", "machine", machineName, "kind", vm.KindOf(err))
		return err
	}
	return nil
}
