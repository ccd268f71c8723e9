package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal/config"
)

func newReindexCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuilds the search index from the catalog's indexed records",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("geoporter.reindex")

			c, err := config.NewGeoporterFromFile(configPath)
			if err != nil {
				return err
			}

			store, err := config.InitializeCatalog(cmd.Context(), c, l)
			if err != nil {
				return err
			}
			defer store.Disconnect(cmd.Context())

			records, err := store.ListIndexed(cmd.Context())
			if err != nil {
				return err
			}

			solrClient := config.InitializeSolr(c, l)
			if err := solrClient.DeleteAll(cmd.Context()); err != nil {
				return err
			}
			if len(records) > 0 {
				if err := solrClient.Index(cmd.Context(), records); err != nil {
					return err
				}
			}

			fmt.Printf("reindexed %d records\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.MarkFlagRequired("config")

	return cmd
}
