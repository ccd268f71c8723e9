// Package catalog persists finalized discovery records. The store backs
// the reindex workflow: the search index can be rebuilt at any time from
// the records held here.
package catalog

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal/crosswalk"
)

var ErrRecordNotFound = errors.New("catalog record not found")

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store keeps catalog records in a MongoDB collection keyed by slug.
type Store struct {
	uri        string
	database   string
	collection string

	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

func New(uri, database, collection string, opts ...Option) *Store {
	s := &Store{
		uri:        uri,
		database:   database,
		collection: collection,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return err
	}
	s.client = client
	s.coll = client.Database(s.database).Collection(s.collection)
	s.logger.Info("catalog store connected",
		zap.String("database", s.database),
		zap.String("collection", s.collection))
	return nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Upsert stores a record, replacing any previous version of the same slug.
func (s *Store) Upsert(ctx context.Context, record *crosswalk.Record) error {
	filter := bson.M{"layer_slug_s": record.Slug}
	_, err := s.coll.ReplaceOne(ctx, filter, record, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}
	s.logger.Info("catalog record upserted", zap.String("slug", record.Slug))
	return nil
}

func (s *Store) Get(ctx context.Context, slug string) (*crosswalk.Record, error) {
	var record crosswalk.Record
	err := s.coll.FindOne(ctx, bson.M{"layer_slug_s": slug}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListIndexed returns every record whose status marks it as indexed, the
// set the search index is rebuilt from.
func (s *Store) ListIndexed(ctx context.Context) ([]crosswalk.Record, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"status": "indexed"})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []crosswalk.Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) Delete(ctx context.Context, slug string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"layer_slug_s": slug})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}
