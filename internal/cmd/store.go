package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal/config"
)

func newStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manages published data stores",
	}
	cmd.AddCommand(newStoreDeleteCommand())
	return cmd
}

func newStoreDeleteCommand() *cobra.Command {
	var configPath string
	var purge, recurse bool

	cmd := &cobra.Command{
		Use:   "delete <store>",
		Short: "Deletes a published data store and its layers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("geoporter.store.delete")

			c, err := config.NewGeoporterFromFile(configPath)
			if err != nil {
				return err
			}

			publisher := config.InitializeGeoServer(c, l)
			message, err := publisher.DeleteStore(cmd.Context(), args[0], purge, recurse)
			if err != nil {
				return err
			}

			fmt.Println(message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.MarkFlagRequired("config")
	cmd.Flags().BoolVar(&purge, "purge", true, "Remove the underlying data files")
	cmd.Flags().BoolVar(&recurse, "recurse", true, "Remove dependent layers as well")

	return cmd
}
