// Package mongo implements store.Store on MongoDB via the official driver.
// Each provider and subscriber is a single document, so every engine write
// of one entity is atomic at the document level.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	ledger "github.com/subledger/subledger"
	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	ledgerstore "github.com/subledger/subledger/store"
	"github.com/subledger/subledger/subscriber"
)

const (
	providersCollection   = "subledger_providers"
	subscribersCollection = "subledger_subscribers"
	keysCollection        = "subledger_keys"
)

var _ ledgerstore.Store = (*Store)(nil)

// Store is a MongoDB-backed store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to the given URI and uses the named database.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("subledger/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("subledger/mongo: ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// NewWithClient wraps an existing client. Close disconnects it.
func NewWithClient(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Migrate creates the secondary indexes. Collections and the _id index
// come for free on first insert.
func (s *Store) Migrate(ctx context.Context) error {
	ownerIndex := mongo.IndexModel{Keys: bson.D{{Key: "owner", Value: 1}}}
	for _, coll := range []string{providersCollection, subscribersCollection} {
		if _, err := s.db.Collection(coll).Indexes().CreateOne(ctx, ownerIndex); err != nil {
			return fmt.Errorf("subledger/mongo: index %s: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) providers() *mongo.Collection {
	return s.db.Collection(providersCollection)
}

func (s *Store) subscribers() *mongo.Collection {
	return s.db.Collection(subscribersCollection)
}

func (s *Store) keys() *mongo.Collection {
	return s.db.Collection(keysCollection)
}

func (s *Store) CreateProvider(ctx context.Context, p *provider.Provider) error {
	_, err := s.providers().InsertOne(ctx, toProviderDoc(p))
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("subledger/mongo: create provider: %w", err)
	}
	return nil
}

func (s *Store) GetProvider(ctx context.Context, provID id.ProviderID) (*provider.Provider, error) {
	var doc providerDoc
	err := s.providers().FindOne(ctx, bson.M{"_id": provID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ledger.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("subledger/mongo: get provider: %w", err)
	}
	return fromProviderDoc(&doc)
}

func (s *Store) ListProviders(ctx context.Context) ([]*provider.Provider, error) {
	cursor, err := s.providers().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("subledger/mongo: list providers: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*provider.Provider
	for cursor.Next(ctx) {
		var doc providerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("subledger/mongo: decode provider: %w", err)
		}
		p, err := fromProviderDoc(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("subledger/mongo: list providers: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateProvider(ctx context.Context, p *provider.Provider) error {
	res, err := s.providers().ReplaceOne(ctx,
		bson.M{"_id": p.ID.String()}, toProviderDoc(p))
	if err != nil {
		return fmt.Errorf("subledger/mongo: update provider: %w", err)
	}
	if res.MatchedCount == 0 {
		return ledger.ErrProviderNotFound
	}
	return nil
}

func (s *Store) DeleteProvider(ctx context.Context, provID id.ProviderID) error {
	res, err := s.providers().DeleteOne(ctx, bson.M{"_id": provID.String()})
	if err != nil {
		return fmt.Errorf("subledger/mongo: delete provider: %w", err)
	}
	if res.DeletedCount == 0 {
		return ledger.ErrProviderNotFound
	}
	return nil
}

func (s *Store) CountProviders(ctx context.Context) (int, error) {
	n, err := s.providers().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("subledger/mongo: count providers: %w", err)
	}
	return int(n), nil
}

func (s *Store) CreateSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	_, err := s.subscribers().InsertOne(ctx, toSubscriberDoc(sub))
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("subledger/mongo: create subscriber: %w", err)
	}
	return nil
}

func (s *Store) GetSubscriber(ctx context.Context, subID id.SubscriberID) (*subscriber.Subscriber, error) {
	var doc subscriberDoc
	err := s.subscribers().FindOne(ctx, bson.M{"_id": subID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ledger.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("subledger/mongo: get subscriber: %w", err)
	}
	return fromSubscriberDoc(&doc)
}

func (s *Store) ListSubscribers(ctx context.Context) ([]*subscriber.Subscriber, error) {
	cursor, err := s.subscribers().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("subledger/mongo: list subscribers: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*subscriber.Subscriber
	for cursor.Next(ctx) {
		var doc subscriberDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("subledger/mongo: decode subscriber: %w", err)
		}
		sub, err := fromSubscriberDoc(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("subledger/mongo: list subscribers: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	res, err := s.subscribers().ReplaceOne(ctx,
		bson.M{"_id": sub.ID.String()}, toSubscriberDoc(sub))
	if err != nil {
		return fmt.Errorf("subledger/mongo: update subscriber: %w", err)
	}
	if res.MatchedCount == 0 {
		return ledger.ErrSubscriberNotFound
	}
	return nil
}

func (s *Store) KeyConsumed(ctx context.Context, digest string) (bool, error) {
	err := s.keys().FindOne(ctx, bson.M{"_id": digest}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("subledger/mongo: key lookup: %w", err)
	}
	return true, nil
}

func (s *Store) ConsumeKey(ctx context.Context, digest string) error {
	_, err := s.keys().InsertOne(ctx, keyDoc{Digest: digest, ConsumedAt: time.Now().UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrKeyAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("subledger/mongo: consume key: %w", err)
	}
	return nil
}
