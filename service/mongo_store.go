package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/model"
)

const (
	contractsCollection = "contracts"
	templatesCollection = "templates"
)

// ConnectMongo opens a client and verifies the server is reachable.
func ConnectMongo(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// MongoStore persists contracts in a MongoDB collection. Every call is
// bounded by timeout.
type MongoStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoStore creates a contract backend on the contracts collection of db.
func NewMongoStore(db *mongo.Database, timeout time.Duration) *MongoStore {
	return &MongoStore{coll: db.Collection(contractsCollection), timeout: timeout}
}

// EnsureIndexes creates the indexes listing and filtering rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "priority", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create contract indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]*model.Contract, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	var contracts []*model.Contract
	if err := cur.All(ctx, &contracts); err != nil {
		return nil, fmt.Errorf("failed to decode contracts: %w", err)
	}
	return contracts, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*model.Contract, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var c model.Contract
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrContractNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return &c, nil
}

func (s *MongoStore) Insert(ctx context.Context, c *model.Contract) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, patch ContractPatch, now time.Time) (*model.Contract, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c model.Contract
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": patchDocument(patch, now)}, opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrContractNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}
	return &c, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete contract: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) AppendAudit(ctx context.Context, id string, entry model.AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"auditLog": entry}})
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrContractNotFound
	}
	return nil
}

// patchDocument turns a patch into a $set document keyed by bson field names.
func patchDocument(p ContractPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Content != nil {
		set["content"] = *p.Content
	}
	if p.Type != nil {
		set["type"] = *p.Type
	}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.Parties != nil {
		set["parties"] = *p.Parties
	}
	if p.Signatures != nil {
		set["signatures"] = *p.Signatures
	}
	if p.Attachments != nil {
		set["attachments"] = *p.Attachments
	}
	if p.RetentionYears != nil {
		set["retentionPeriod"] = *p.RetentionYears
	}
	if p.AIAnalysis != nil {
		set["aiAnalysis"] = p.AIAnalysis
	}
	if p.AITags != nil {
		set["aiTags"] = *p.AITags
	}
	if p.Tags != nil {
		set["tags"] = *p.Tags
	}
	if p.Priority != nil {
		set["priority"] = *p.Priority
	}
	if p.Category != nil {
		set["category"] = *p.Category
	}
	if p.Amount != nil {
		set["amount"] = *p.Amount
	}
	return set
}

// MongoTemplateStore persists templates in MongoDB.
type MongoTemplateStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoTemplateStore creates a template store on the templates collection of db.
func NewMongoTemplateStore(db *mongo.Database, timeout time.Duration) *MongoTemplateStore {
	return &MongoTemplateStore{coll: db.Collection(templatesCollection), timeout: timeout}
}

func (s *MongoTemplateStore) List(ctx context.Context) ([]*model.Template, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	var templates []*model.Template
	if err := cur.All(ctx, &templates); err != nil {
		return nil, fmt.Errorf("failed to decode templates: %w", err)
	}
	return templates, nil
}

func (s *MongoTemplateStore) Get(ctx context.Context, id string) (*model.Template, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var t model.Template
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &t, nil
}

func (s *MongoTemplateStore) Insert(ctx context.Context, t *model.Template) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	return nil
}
