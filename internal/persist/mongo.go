package persist

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/hydrocore/hydrocore/internal/sensor"
)

const (
	alertsCollection          = "alerts"
	recommendationsCollection = "recommendations"

	connectTimeout = 10 * time.Second
)

// MongoStore implements AlertStore and RecommendationStore on MongoDB.
type MongoStore struct {
	client *mongo.Client
	alerts *mongo.Collection
	recs   *mongo.Collection
}

// Connect dials MongoDB at uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

// NewMongoStore creates the store and its indexes on the given database.
func NewMongoStore(client *mongo.Client, database string) (*MongoStore, error) {
	db := client.Database(database)
	alerts := db.Collection(alertsCollection)
	recs := db.Collection(recommendationsCollection)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	_, err := alerts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "state", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create alert indexes: %w", err)
	}

	_, err = recs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "generated_at", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create recommendation indexes: %w", err)
	}

	return &MongoStore{client: client, alerts: alerts, recs: recs}, nil
}

// InsertAlert stores a newly opened alert.
func (s *MongoStore) InsertAlert(ctx context.Context, a *sensor.Alert) error {
	_, err := s.alerts.InsertOne(ctx, a)
	return err
}

// UpdateAlert replaces the stored document for a lifecycle transition.
func (s *MongoStore) UpdateAlert(ctx context.Context, a *sensor.Alert) error {
	res, err := s.alerts.ReplaceOne(ctx, bson.M{"_id": a.ID}, a)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("alert %s: %w", a.ID, sensor.ErrNotFound)
	}
	return nil
}

// InsertRecommendations stores one generated batch.
func (s *MongoStore) InsertRecommendations(ctx context.Context, recs []sensor.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(recs))
	for i, r := range recs {
		docs[i] = r
	}
	_, err := s.recs.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
