package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal/config"
)

func newLayersCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Lists the published layers in the configured workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("geoporter.layers")

			c, err := config.NewGeoporterFromFile(configPath)
			if err != nil {
				return err
			}

			publisher := config.InitializeGeoServer(c, l)
			layers, err := publisher.WorkspaceLayers(cmd.Context())
			if err != nil {
				return err
			}

			bs, err := json.MarshalIndent(layers, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(bs))

			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.MarkFlagRequired("config")

	return cmd
}
