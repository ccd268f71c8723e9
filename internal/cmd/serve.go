package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal/config"
	"github.com/openlibgis/geoporter/internal/server"
)

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the ingestion API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("geoporter.serve")

			c, err := config.NewGeoporterFromFile(configPath)
			if err != nil {
				return err
			}

			p, err := config.InitializePipeline(c, l)
			if err != nil {
				return err
			}

			store, err := config.InitializeCatalog(cmd.Context(), c, l)
			if err != nil {
				return err
			}
			defer store.Disconnect(cmd.Context())

			s := server.New(p, config.InitializeGeoServer(c, l),
				server.WithCatalog(store),
				server.WithSearch(config.InitializeSolr(c, l)),
				server.WithUploadDir(c.Ingest.WorkDir),
				server.WithLogger(l),
			)

			addr := viper.GetString("addr")
			if addr == "" {
				addr = c.Server.Addr
			}
			return s.Start(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.MarkFlagRequired("config")
	cmd.Flags().StringP("addr", "a", "", "Listen address, overrides the config file")
	viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	viper.AutomaticEnv()
	viper.SetEnvPrefix("GEOPORTER")

	return cmd
}
