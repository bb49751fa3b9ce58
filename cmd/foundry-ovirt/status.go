package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/foundry-ovirt/api/v1alpha1"
	"github.com/jbweber/foundry-ovirt/internal/loader"
	"github.com/jbweber/foundry-ovirt/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status [machine...]",
	Short: "Show machine records",
	Long: `Show the stored record of the named machines, or of every machine
when none are named.

Records are read from the state directory; oVirt is not contacted.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   Full YAML records
  -o json   Full JSON records`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate output format
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

		store := loader.NewStore(stateDir)

		names := args
		if len(names) == 0 {
			var err error
			names, err = store.List()
			if err != nil {
				return err
			}
		}

		machines := make([]*v1alpha1.Machine, 0, len(names))
		for _, name := range names {
			m, err := store.Load(name)
			if err != nil {
				return fmt.Errorf("failed to load machine %s: %w", name, err)
			}
			machines = append(machines, m)
		}

		// Create formatter
		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		// Format and print
		result, err := formatter.FormatMachineList(machines)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, yaml, json)")
	statusCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "Omit table headers")
}
