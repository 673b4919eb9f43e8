package main

import (
	"github.com/spf13/cobra"
)

var galleriesCmd = &cobra.Command{
	Use:   "galleries",
	Short: "Print the gallery set in display order",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := wire(cmd.Context(), "portfolio-galleries", false)
		if err != nil {
			return err
		}
		galleries, err := app.Galleries.List(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(galleries)
	},
}
