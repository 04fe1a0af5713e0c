package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandboxy-go/sandboxy/internal/mdl"
)

var validateCmd = &cobra.Command{
	Use:   "validate <module.yaml>",
	Short: "Load and validate a module document (C1)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		module, err := mdl.Load(args[0])
		if err != nil {
			return fmt.Errorf("load %q: %w", args[0], err)
		}

		errs := mdl.Validate(module)
		if len(errs) == 0 {
			fmt.Printf("OK: %s (%d steps, %d checks)\n", module.ID, len(module.Steps), len(module.Evaluation))
			return nil
		}

		fmt.Printf("%s: %d validation error(s)\n", module.ID, len(errs))
		for _, e := range errs {
			fmt.Printf("  - %s\n", e)
		}
		return fmt.Errorf("module failed validation")
	},
}
