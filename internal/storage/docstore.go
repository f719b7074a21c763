package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/figma-chunkstore/chunkstore/internal/chunkerr"
	"github.com/figma-chunkstore/chunkstore/models"
)

// DocumentStoreConfig configures the DocumentStoreAdapter.
type DocumentStoreConfig struct {
	URI            string
	Database       string
	Collection     string
	DefaultTTL     time.Duration
	BulkWriteBatch int
}

// DefaultDocumentStoreConfig returns the documented defaults.
func DefaultDocumentStoreConfig(uri string) DocumentStoreConfig {
	return DocumentStoreConfig{
		URI:            uri,
		Database:       "chunkstore",
		Collection:     "chunks",
		DefaultTTL:     24 * time.Hour,
		BulkWriteBatch: 500,
	}
}

// docRecord is the Mongo document schema for a stored chunk.
type docRecord struct {
	ID           string         `bson:"_id"`
	FileKey      string         `bson:"fileKey"`
	Type         models.Type    `bson:"type"`
	Created      time.Time      `bson:"created"`
	Expires      *time.Time     `bson:"expires,omitempty"`
	LastAccessed time.Time      `bson:"lastAccessed"`
	Data         any            `bson:"data"`
	Links        []string       `bson:"links"`
	Size         int            `bson:"size"`
	Metadata     map[string]any `bson:"metadata,omitempty"`
}

func toDocRecord(chunk models.Chunk, size int) docRecord {
	return docRecord{
		ID: chunk.ID, FileKey: chunk.FileKey, Type: chunk.Type,
		Created: chunk.Created, Expires: chunk.Expires, LastAccessed: chunk.LastAccessed,
		Data: chunk.Data, Links: chunk.Links, Size: size, Metadata: chunk.Metadata,
	}
}

func fromDocRecord(r docRecord) models.Chunk {
	return models.Chunk{
		ID: r.ID, FileKey: r.FileKey, Type: r.Type,
		Created: r.Created, Expires: r.Expires, LastAccessed: r.LastAccessed,
		Data: r.Data, Links: r.Links, Metadata: r.Metadata,
	}
}

// DocumentStoreAdapter persists chunks in MongoDB. Expiry is enforced
// both by the server (a TTL index on "expires") and defensively on
// Get, since a TTL sweep is best-effort and can lag its deadline by up
// to a minute.
type DocumentStoreAdapter struct {
	cfg    DocumentStoreConfig
	logger *slog.Logger

	connectMu  sync.Mutex
	connected  bool
	connectErr error
	client     *mongo.Client
	collection *mongo.Collection
}

// NewDocumentStoreAdapter returns a DocumentStoreAdapter. The connection
// and index creation happen lazily on first use; a failed dial is
// retried on every later call rather than cached forever.
func NewDocumentStoreAdapter(cfg DocumentStoreConfig, logger *slog.Logger) *DocumentStoreAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BulkWriteBatch <= 0 {
		cfg.BulkWriteBatch = 500
	}
	return &DocumentStoreAdapter{cfg: cfg, logger: logger}
}

// connect returns a live collection handle, dialing on first use and
// re-dialing on every call until that dial has once succeeded. A
// failed attempt is never cached permanently, so a Mongo instance
// that's still starting up when this adapter is first used can still
// be picked up on a later call once it becomes reachable.
func (a *DocumentStoreAdapter) connect(ctx context.Context) (*mongo.Collection, error) {
	a.connectMu.Lock()
	defer a.connectMu.Unlock()

	if a.connected {
		return a.collection, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.cfg.URI))
	if err != nil {
		a.connectErr = fmt.Errorf("%w: mongo connect: %v", chunkerr.StorageTransient, err)
		return nil, a.connectErr
	}
	if err := client.Ping(ctx, nil); err != nil {
		a.connectErr = fmt.Errorf("%w: mongo ping: %v", chunkerr.StorageTransient, err)
		return nil, a.connectErr
	}
	a.client = client
	a.collection = client.Database(a.cfg.Database).Collection(a.cfg.Collection)
	if err := a.ensureIndexes(ctx); err != nil {
		a.logger.Warn("document store adapter: index creation failed", "error", err)
	}
	a.connected = true
	a.connectErr = nil
	return a.collection, nil
}

func (a *DocumentStoreAdapter) ensureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "fileKey", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "lastAccessed", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expires", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	return err
}

// Save implements Adapter via an upsert keyed by _id.
func (a *DocumentStoreAdapter) Save(ctx context.Context, chunk models.Chunk) error {
	coll, err := a.connect(ctx)
	if err != nil {
		return err
	}
	record := toDocRecord(chunk, estimateWireSize(chunk))
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": chunk.ID}, record, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", chunkerr.StorageTransient, err)
	}
	return nil
}

// BulkSave upserts many chunks in batches of cfg.BulkWriteBatch. A nil
// or empty input is a no-op, not an error.
func (a *DocumentStoreAdapter) BulkSave(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	coll, err := a.connect(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += a.cfg.BulkWriteBatch {
		end := start + a.cfg.BulkWriteBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		models_ := make([]mongo.WriteModel, 0, end-start)
		for _, chunk := range chunks[start:end] {
			record := toDocRecord(chunk, estimateWireSize(chunk))
			models_ = append(models_, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": chunk.ID}).
				SetReplacement(record).
				SetUpsert(true))
		}
		if _, err := coll.BulkWrite(ctx, models_); err != nil {
			return fmt.Errorf("%w: bulk write: %v", chunkerr.StorageTransient, err)
		}
	}
	return nil
}

// Get implements Adapter.
func (a *DocumentStoreAdapter) Get(ctx context.Context, id string) (models.Chunk, bool, error) {
	coll, err := a.connect(ctx)
	if err != nil {
		return models.Chunk{}, false, err
	}

	var record docRecord
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return models.Chunk{}, false, nil
	}
	if err != nil {
		return models.Chunk{}, false, fmt.Errorf("%w: find one: %v", chunkerr.StorageTransient, err)
	}

	if record.Expires != nil && record.Expires.Before(time.Now()) {
		coll.DeleteOne(ctx, bson.M{"_id": id})
		return models.Chunk{}, false, nil
	}

	_, err = coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastAccessed": time.Now()}})
	if err != nil {
		a.logger.Warn("document store adapter: failed to refresh lastAccessed", "id", id, "error", err)
	}

	return fromDocRecord(record), true, nil
}

// Has implements Adapter.
func (a *DocumentStoreAdapter) Has(ctx context.Context, id string) (bool, error) {
	coll, err := a.connect(ctx)
	if err != nil {
		return false, err
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%w: count documents: %v", chunkerr.StorageTransient, err)
	}
	return n > 0, nil
}

// Delete implements Adapter.
func (a *DocumentStoreAdapter) Delete(ctx context.Context, id string) (bool, error) {
	coll, err := a.connect(ctx)
	if err != nil {
		return false, err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("%w: delete one: %v", chunkerr.StorageTransient, err)
	}
	return res.DeletedCount > 0, nil
}

// List implements Adapter.
func (a *DocumentStoreAdapter) List(ctx context.Context, filter models.ChunkFilter) ([]models.ChunkSummary, error) {
	coll, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	filter = filter.WithDefaults()

	query := bson.M{}
	if filter.FileKey != "" {
		query["fileKey"] = filter.FileKey
	}
	if filter.HasType() {
		query["type"] = filter.Type
	}
	if !filter.IncludeExpired {
		query["$or"] = []bson.M{
			{"expires": nil},
			{"expires": bson.M{"$gt": time.Now()}},
		}
	}

	cursor, err := coll.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", chunkerr.StorageTransient, err)
	}
	defer cursor.Close(ctx)

	var summaries []models.ChunkSummary
	for cursor.Next(ctx) {
		var record docRecord
		if err := cursor.Decode(&record); err != nil {
			continue
		}
		summary := models.ChunkSummary{
			ID: record.ID, FileKey: record.FileKey, Type: record.Type,
			Created: record.Created, Size: record.Size,
		}
		if filter.Matches(summary) {
			summaries = append(summaries, summary)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", chunkerr.StorageTransient, err)
	}

	return filter.Sort(summaries), nil
}

// Cleanup implements Adapter. Mongo's own TTL monitor already reaps
// expired documents in the background; this call forces an immediate
// sweep for callers (e.g. the scheduler's cleanupOnStart) that can't
// wait for the TTL monitor's next pass.
func (a *DocumentStoreAdapter) Cleanup(ctx context.Context) error {
	coll, err := a.connect(ctx)
	if err != nil {
		return err
	}
	_, err = coll.DeleteMany(ctx, bson.M{"expires": bson.M{"$lte": time.Now()}})
	if err != nil {
		return fmt.Errorf("%w: delete many: %v", chunkerr.StorageTransient, err)
	}
	return nil
}

// Aggregate forwards pipeline to the underlying collection, returning
// raw documents. It exists for callers that need reporting queries
// (e.g. per-fileKey chunk counts) the Adapter contract doesn't model;
// the pipeline's shape is opaque to this package.
func (a *DocumentStoreAdapter) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	coll, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate: %v", chunkerr.StorageTransient, err)
	}
	defer cursor.Close(ctx)

	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%w: cursor all: %v", chunkerr.StorageTransient, err)
	}
	return out, nil
}

// Close implements Adapter.
func (a *DocumentStoreAdapter) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(context.Background())
}
