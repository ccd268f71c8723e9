package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "geoporter",
		Short: "Publishes geospatial archives and crosswalks their metadata into a discovery catalog",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newIngestCommand())
	cmd.AddCommand(newReindexCommand())
	cmd.AddCommand(newLayersCommand())
	cmd.AddCommand(newStoreCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
