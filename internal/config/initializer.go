package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal"
	"github.com/openlibgis/geoporter/internal/archive"
	"github.com/openlibgis/geoporter/internal/catalog"
	"github.com/openlibgis/geoporter/internal/crosswalk"
	"github.com/openlibgis/geoporter/internal/geoserver"
	"github.com/openlibgis/geoporter/internal/identifier"
	"github.com/openlibgis/geoporter/internal/local"
	"github.com/openlibgis/geoporter/internal/pipeline"
	"github.com/openlibgis/geoporter/internal/s3"
	"github.com/openlibgis/geoporter/internal/solr"
)

func InitializeRepository(geoporter *Geoporter, logger *zap.Logger) (internal.Repository, error) {
	switch geoporter.Storage.Type {
	case "", "local":
		return local.New(geoporter.Storage.Local.Path,
			local.WithPrefix(geoporter.Storage.Local.Prefix),
			local.WithPublicURL(geoporter.Storage.Local.PublicURL),
			local.WithLogger(logger),
		), nil
	case "s3":
		return s3.New(
			s3.WithBucket(geoporter.Storage.S3.Bucket),
			s3.WithRegion(geoporter.Storage.S3.Region),
			s3.WithPrefix(geoporter.Storage.S3.Prefix),
			s3.WithEndpoint(geoporter.Storage.S3.Endpoint),
			s3.WithPublicURL(geoporter.Storage.S3.PublicURL),
			s3.WithForcePathStyle(geoporter.Storage.S3.ForcePathStyle),
			s3.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", geoporter.Storage.Type)
	}
}

func InitializeGeoServer(geoporter *Geoporter, logger *zap.Logger) *geoserver.Client {
	return geoserver.New(geoporter.GeoServer.URL, geoporter.GeoServer.Workspace,
		geoserver.WithCredentials(geoporter.GeoServer.Username, geoporter.GeoServer.Password),
		geoserver.WithLogger(logger),
	)
}

func InitializePipeline(geoporter *Geoporter, logger *zap.Logger) (*pipeline.Pipeline, error) {
	repository, err := InitializeRepository(geoporter, logger)
	if err != nil {
		return nil, err
	}

	detector := archive.NewDetector(geoporter.Ingest.WorkDir,
		archive.WithRepository(repository),
		archive.WithLogger(logger),
	)

	publisher := InitializeGeoServer(geoporter, logger)

	assigner := identifier.New(
		geoporter.Identifier.ServiceURL,
		geoporter.Identifier.Token,
		geoporter.Identifier.ResolveURL,
		identifier.WithLogger(logger),
	)

	engineOpts := []crosswalk.Option{
		crosswalk.WithProvenance(geoporter.Ingest.Provenance),
		crosswalk.WithLogger(logger),
	}
	if geoporter.Ingest.MODSTemplateURL != "" {
		engineOpts = append(engineOpts,
			crosswalk.WithMODSPublication(repository, geoporter.Ingest.MODSTemplateURL))
	}
	engine := crosswalk.NewEngine(publisher, assigner, engineOpts...)

	return pipeline.New(
		pipeline.WithDetector(detector),
		pipeline.WithPublisher(publisher),
		pipeline.WithEngine(engine),
		pipeline.WithLogger(logger),
	), nil
}

func InitializeCatalog(ctx context.Context, geoporter *Geoporter, logger *zap.Logger) (*catalog.Store, error) {
	store := catalog.New(
		geoporter.Catalog.URI,
		geoporter.Catalog.Database,
		geoporter.Catalog.Collection,
		catalog.WithLogger(logger),
	)
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func InitializeSolr(geoporter *Geoporter, logger *zap.Logger) *solr.Client {
	return solr.New(geoporter.Solr.URL, geoporter.Solr.Core,
		solr.WithLogger(logger),
	)
}
