package mongostore

import (
	"context"

	"report-media/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// findOne 解码第一条匹配文档，没有匹配时返回 storage.ErrNotFound
func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (*T, error) {
	out := new(T)
	if err := col.FindOne(ctx, filter).Decode(out); err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

// findMany 解码全部匹配文档，没有匹配时返回空切片
func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	out := []*T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapError(err)
	}
	return out, nil
}

func insertOne(ctx context.Context, col *mongo.Collection, doc interface{}) error {
	_, err := col.InsertOne(ctx, doc)
	return wrapError(err)
}

// updateByID 更新 _id 对应的文档，没有匹配时返回 storage.ErrNotFound
func updateByID(ctx context.Context, col *mongo.Collection, id string, update bson.D) error {
	res, err := col.UpdateOne(ctx, byID(id), update)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func exists(ctx context.Context, col *mongo.Collection, id string) (bool, error) {
	n, err := col.CountDocuments(ctx, byID(id), options.Count().SetLimit(1))
	if err != nil {
		return false, wrapError(err)
	}
	return n > 0, nil
}
