package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vnclimate/weathermart/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the environment is ready for a pipeline run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		v := validate.NewValidator(cfg, logger)
		report := v.Run(cmd.Context())
		report.Write(os.Stdout)
		if n := report.Failures(); n > 0 {
			return fmt.Errorf("%d validation check(s) failed", n)
		}
		return nil
	},
}
