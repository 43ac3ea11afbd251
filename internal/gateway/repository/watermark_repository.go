package repository

import (
	"context"
	"errors"

	"vehicle_marketplace_chat/internal/conversation/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WatermarkRepository persisted read watermarks, one per (room, role).
type WatermarkRepository interface {
	Get(ctx context.Context, room string, role domain.Role) (int64, error)
	// Advance moves the watermark to max(current, at) and returns the
	// stored value. Concurrent calls can never move it backward.
	Advance(ctx context.Context, room string, role domain.Role, at int64) (int64, error)
}

type mongoWatermarkRepository struct {
	coll *mongo.Collection
}

// NewMongoWatermarkRepository create a WatermarkRepository on mongo
func NewMongoWatermarkRepository(db *mongo.Database) WatermarkRepository {
	return &mongoWatermarkRepository{
		coll: db.Collection("read_watermarks"),
	}
}

func (r *mongoWatermarkRepository) Get(ctx context.Context, room string, role domain.Role) (int64, error) {
	filter := bson.M{"room": room, "viewer_role": role}
	var mark domain.ReadWatermark
	err := r.coll.FindOne(ctx, filter).Decode(&mark)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, err
	}
	return mark.LastReadAt, nil
}

func (r *mongoWatermarkRepository) Advance(ctx context.Context, room string, role domain.Role, at int64) (int64, error) {
	filter := bson.M{"room": room, "viewer_role": role}
	// $max keeps the invariant server-side: the stored value never regresses
	update := bson.M{"$max": bson.M{"last_read_at": at}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var mark domain.ReadWatermark
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&mark); err != nil {
		return 0, err
	}
	return mark.LastReadAt, nil
}
