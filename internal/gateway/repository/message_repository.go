package repository

import (
	"context"
	"errors"

	"vehicle_marketplace_chat/internal/conversation/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository persisted message store behind the gateway.
type MessageRepository interface {
	// Append persists one message.
	Append(ctx context.Context, msg domain.Message) error
	// History returns the full room sequence ascending by (sent_at, id).
	History(ctx context.Context, room string) ([]domain.Message, error)
	// LastSentAt returns the newest sent_at in the room, zero when empty.
	LastSentAt(ctx context.Context, room string) (int64, error)
}

type mongoMessageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository on mongo
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepository{
		coll: db.Collection("conversation_messages"),
	}
}

func (r *mongoMessageRepository) Append(ctx context.Context, msg domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

func (r *mongoMessageRepository) History(ctx context.Context, room string) ([]domain.Message, error) {
	filter := bson.M{"room": room}
	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}, {Key: "id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var msgs []domain.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *mongoMessageRepository) LastSentAt(ctx context.Context, room string) (int64, error) {
	filter := bson.M{"room": room}
	opts := options.FindOne().SetSort(bson.D{{Key: "sent_at", Value: -1}})
	var last domain.Message
	err := r.coll.FindOne(ctx, filter, opts).Decode(&last)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, err
	}
	return last.SentAt, nil
}
