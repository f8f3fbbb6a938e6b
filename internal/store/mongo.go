package store

import (
	"context"
	"fmt"

	"go-helpdesk/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore implements Store on a MongoDB database. Change streams back the
// subscription primitive: each stream delivery triggers a re-read of the
// subscribed query so consumers always see a full snapshot.
type MongoStore struct {
	db     *mongo.Database
	logger *zap.Logger
}

func NewMongoStore(mongodb *database.MongodbDB, logger *zap.Logger) Store {
	return &MongoStore{db: mongodb.DB, logger: logger}
}

func (s *MongoStore) Create(ctx context.Context, collection string, fields Document) (string, error) {
	doc := bson.M{}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	res, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprintf("%v", res.InsertedID), nil
	}
	return oid.Hex(), nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields Document) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", id, err)
	}
	set := bson.M{}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		set[k] = v
	}
	_, err = s.db.Collection(collection).UpdateByID(ctx, oid, bson.M{"$set": set})
	return err
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false, fmt.Errorf("invalid document id %q: %w", id, err)
	}
	var raw bson.M
	err = s.db.Collection(collection).FindOne(ctx, bson.M{"_id": oid}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return fromBSON(raw), true, nil
}

func (s *MongoStore) RunQuery(ctx context.Context, q Query) ([]Document, error) {
	filter := buildFilter(q)
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(q.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		docs = append(docs, fromBSON(raw))
	}
	return docs, cur.Err()
}

// Subscribe opens a change stream on the query's collection and re-runs the
// query on each delivery. An ordered query that the store cannot serve
// surfaces as ErrOrderedSubscribe so the caller can retry unordered.
func (s *MongoStore) Subscribe(ctx context.Context, q Query) (Subscription, error) {
	// Probe the query once up front: a sort the store cannot satisfy fails
	// here rather than mid-stream.
	initial, err := s.RunQuery(ctx, q)
	if err != nil {
		if q.OrderBy != "" {
			return nil, fmt.Errorf("%w: %v", ErrOrderedSubscribe, err)
		}
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := s.db.Collection(q.Collection).Watch(streamCtx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &mongoSubscription{
		events: make(chan Event, 16),
		cancel: cancel,
	}

	go s.pump(streamCtx, stream, q, initial, sub)
	return sub, nil
}

func (s *MongoStore) pump(ctx context.Context, stream *mongo.ChangeStream, q Query, initial []Document, sub *mongoSubscription) {
	defer close(sub.events)
	defer stream.Close(context.Background())

	changes := make([]DocChange, 0, len(initial))
	for _, doc := range initial {
		changes = append(changes, DocChange{Type: ChangeAdded, ID: doc.ID(), Doc: doc})
	}
	if !sub.send(ctx, Event{Snapshot: initial, Changes: changes}) {
		return
	}

	for stream.Next(ctx) {
		var change struct {
			OperationType string `bson:"operationType"`
			FullDocument  bson.M `bson:"fullDocument"`
			DocumentKey   struct {
				ID any `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := stream.Decode(&change); err != nil {
			s.logger.Warn("change stream decode failed", zap.Error(err))
			continue
		}

		snapshot, err := s.RunQuery(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("snapshot re-read failed", zap.Error(err))
			continue
		}

		dc := DocChange{Type: mapOperation(change.OperationType)}
		if change.FullDocument != nil {
			dc.Doc = fromBSON(change.FullDocument)
			dc.ID = dc.Doc.ID()
		} else if oid, ok := change.DocumentKey.ID.(primitive.ObjectID); ok {
			dc.ID = oid.Hex()
		}
		if !sub.send(ctx, Event{Snapshot: snapshot, Changes: []DocChange{dc}}) {
			return
		}
	}
}

type mongoSubscription struct {
	events chan Event
	cancel context.CancelFunc
}

func (s *mongoSubscription) Events() <-chan Event { return s.events }
func (s *mongoSubscription) Cancel()              { s.cancel() }

func (s *mongoSubscription) send(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func mapOperation(op string) ChangeType {
	switch op {
	case "insert":
		return ChangeAdded
	case "delete":
		return ChangeRemoved
	default:
		return ChangeModified
	}
}

func buildFilter(q Query) bson.M {
	filter := bson.M{}
	for _, f := range q.Filters {
		if f.Op == "!=" {
			filter[f.Field] = bson.M{"$ne": f.Value}
			continue
		}
		filter[f.Field] = f.Value
	}
	if q.After != nil && q.OrderBy != "" {
		op := "$gt"
		if q.Desc {
			op = "$lt"
		}
		filter[q.OrderBy] = bson.M{op: q.After[q.OrderBy]}
	}
	return filter
}

func fromBSON(raw bson.M) Document {
	doc := Document{}
	for k, v := range raw {
		if k == "_id" {
			if oid, ok := v.(primitive.ObjectID); ok {
				doc["id"] = oid.Hex()
			} else {
				doc["id"] = fmt.Sprintf("%v", v)
			}
			continue
		}
		if arr, ok := v.(primitive.A); ok {
			vals := make([]any, len(arr))
			for i, item := range arr {
				if m, ok := item.(bson.M); ok {
					vals[i] = map[string]any(m)
				} else {
					vals[i] = item
				}
			}
			doc[k] = vals
			continue
		}
		if m, ok := v.(bson.M); ok {
			doc[k] = map[string]any(m)
			continue
		}
		doc[k] = v
	}
	return doc
}
