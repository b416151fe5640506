package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const auditCollection = "audit_logs"

// AuditLog is one stored ledger audit record. The id is the id of the event
// that carried it.
type AuditLog struct {
	ID            string          `bson:"_id"`
	Action        string          `bson:"action"`
	Operation     string          `bson:"operation"`
	UserID        string          `bson:"user_id"`
	TransactionID string          `bson:"transaction_id,omitempty"`
	FromAccountID string          `bson:"from_account_id,omitempty"`
	ToAccountID   string          `bson:"to_account_id,omitempty"`
	Amount        bson.Decimal128 `bson:"amount"`
	Currency      string          `bson:"currency,omitempty"`
	Status        string          `bson:"status,omitempty"`
	ErrorCode     string          `bson:"error_code,omitempty"`
	OccurredAt    time.Time       `bson:"occurred_at"`
	RecordedAt    time.Time       `bson:"recorded_at"`
}

type AuditRepository struct {
	collection *mongo.Collection
}

func NewAuditRepository(client *mongo.Client, dbName string) *AuditRepository {
	return &AuditRepository{collection: client.Database(dbName).Collection(auditCollection)}
}

// EnsureIndexes creates the lookup indexes used when investigating a
// transaction or a user.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}}, Options: options.Index().SetName("action_1")},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

// Save inserts entry. A duplicate id means the event was already stored by an
// earlier delivery and counts as success.
func (r *AuditRepository) Save(ctx context.Context, entry *AuditLog) error {
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}
