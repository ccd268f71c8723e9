package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal/config"
	"github.com/openlibgis/geoporter/internal/pipeline"
)

func newIngestCommand() *cobra.Command {
	var configPath string
	var opts pipeline.RunOptions
	var skipCatalog bool

	cmd := &cobra.Command{
		Use:   "ingest <archive.zip>",
		Short: "Runs one archive through unpack, publication and crosswalk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("geoporter.ingest")

			c, err := config.NewGeoporterFromFile(configPath)
			if err != nil {
				return err
			}

			p, err := config.InitializePipeline(c, l)
			if err != nil {
				return err
			}

			record, err := p.Run(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			if !skipCatalog && record.CatalogRecord != nil {
				store, err := config.InitializeCatalog(cmd.Context(), c, l)
				if err != nil {
					return err
				}
				defer store.Disconnect(cmd.Context())

				if err := store.Upsert(cmd.Context(), record.CatalogRecord); err != nil {
					return err
				}

				solrClient := config.InitializeSolr(c, l)
				if err := solrClient.Index(cmd.Context(), []any{record.CatalogRecord}); err != nil {
					return err
				}
			}

			bs, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(bs))

			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.MarkFlagRequired("config")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Discard any previous extraction and republish")
	cmd.Flags().StringVarP(&opts.ExistingIdentifier, "identifier", "i", "", "Reuse an existing persistent identifier instead of minting")
	cmd.Flags().StringVarP(&opts.Destination, "destination", "d", "", "Override the extraction folder name")
	cmd.Flags().BoolVar(&skipCatalog, "skip-catalog", false, "Run the pipeline without writing to the catalog or search index")

	return cmd
}
