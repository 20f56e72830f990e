package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"relayvault/internal/record"
)

// MongoRelay implements the relay transport against a MongoDB collection.
// It backs self-hosted relays and integration tests; it stores envelopes
// verbatim and never inspects their content.
type MongoRelay struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoEnvelope struct {
	ID        string     `bson:"_id"`
	Pubkey    string     `bson:"pubkey"`
	CreatedAt int64      `bson:"created_at"`
	Kind      int        `bson:"kind"`
	Tags      [][]string `bson:"tags"`
	Content   string     `bson:"content"`
	Sig       string     `bson:"sig"`
	Recipient string     `bson:"recipient"`
	Type      string     `bson:"type"`
	StoredAt  time.Time  `bson:"stored_at"`
}

func NewMongoRelay(ctx context.Context, uri, dbName, collName string) (*MongoRelay, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}

	coll := cli.Database(dbName).Collection(collName)
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "kind", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return &MongoRelay{client: cli, coll: coll}, nil
}

func (m *MongoRelay) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Publish upserts by record id, so replayed broadcasts are idempotent.
func (m *MongoRelay) Publish(ctx context.Context, rec *record.Record) error {
	if err := rec.Verify(); err != nil {
		return err
	}
	doc := mongoEnvelope{
		ID:        rec.ID,
		Pubkey:    rec.Pubkey,
		CreatedAt: rec.CreatedAt,
		Kind:      rec.Kind,
		Tags:      rec.Tags,
		Content:   rec.Content,
		Sig:       rec.Sig,
		Recipient: rec.TagValue(record.TagRecipient),
		Type:      rec.TagValue(record.TagType),
		StoredAt:  time.Now(),
	}
	_, err := m.coll.UpdateByID(ctx, rec.ID,
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *MongoRelay) Query(ctx context.Context, f record.Filter) ([]record.Record, error) {
	match := bson.M{}
	if len(f.Kinds) > 0 {
		match["kind"] = bson.M{"$in": f.Kinds}
	}
	if len(f.Authors) > 0 {
		match["pubkey"] = bson.M{"$in": f.Authors}
	}
	if len(f.Recipients) > 0 {
		match["recipient"] = bson.M{"$in": f.Recipients}
	}
	if len(f.Types) > 0 {
		match["type"] = bson.M{"$in": f.Types}
	}
	if f.Since > 0 {
		match["created_at"] = bson.M{"$gte": f.Since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := m.coll.Find(ctx, match, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []record.Record
	for cur.Next(ctx) {
		var doc mongoEnvelope
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		out = append(out, record.Record{
			ID:        doc.ID,
			Pubkey:    doc.Pubkey,
			CreatedAt: doc.CreatedAt,
			Kind:      doc.Kind,
			Tags:      doc.Tags,
			Content:   doc.Content,
			Sig:       doc.Sig,
		})
	}
	return out, cur.Err()
}
