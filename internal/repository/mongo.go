package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"todo-api/internal/models"
	"todo-api/pkg/logger"
)

// CollectionName is the Mongo collection holding todos.
const CollectionName = "todos"

type todoDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Text      string             `bson:"text"`
	Completed bool               `bson:"completed"`
}

func (d todoDocument) model() models.Todo {
	return models.Todo{ID: d.ID.Hex(), Text: d.Text, Completed: d.Completed}
}

// Mongo stores todos in a MongoDB collection. IDs are ObjectID hex strings.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo uses the given database of an already connected client.
func NewMongo(client *mongo.Client, database string) *Mongo {
	return &Mongo{
		client: client,
		coll:   client.Database(database).Collection(CollectionName),
	}
}

func (m *Mongo) List(ctx context.Context) ([]models.Todo, error) {
	cur, err := m.coll.Find(ctx, bson.D{})
	if err != nil {
		logger.Error(ctx, "Repository List failed", "error", err)
		return nil, err
	}
	var docs []todoDocument
	if err := cur.All(ctx, &docs); err != nil {
		logger.Error(ctx, "Repository decode todos failed", "error", err)
		return nil, err
	}
	todos := make([]models.Todo, 0, len(docs))
	for _, d := range docs {
		todos = append(todos, d.model())
	}
	return todos, nil
}

func (m *Mongo) Create(ctx context.Context, todo *models.Todo) error {
	if err := prepare(todo); err != nil {
		return err
	}
	doc := todoDocument{ID: primitive.NewObjectID(), Text: todo.Text, Completed: false}
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		logger.Error(ctx, "Repository Create failed", "error", err)
		return err
	}
	todo.ID = doc.ID.Hex()
	return nil
}

// Toggle flips completed server-side with an aggregation-pipeline update.
func (m *Mongo) Toggle(ctx context.Context, id string) (*models.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "completed", Value: bson.D{{Key: "$not", Value: bson.A{"$completed"}}}}}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc todoDocument
	err = m.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Error(ctx, "Repository Toggle failed", "error", err, "id", id)
		return nil, err
	}
	t := doc.model()
	return &t, nil
}

func (m *Mongo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := m.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		logger.Error(ctx, "Repository Delete failed", "error", err, "id", id)
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
