package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a single Mongo collection. Each document is
// stored as {_id: <path>, parent: <collection path>, data: {...}, updatedAt}.
type MongoStore struct {
	col          *mongo.Collection
	pollInterval time.Duration
}

type mongoDoc struct {
	ID     string `bson:"_id"`
	Parent string `bson:"parent"`
	Data   bson.M `bson:"data"`
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	// index on parent for collection listings
	idxModel := mongo.IndexModel{Keys: bson.D{{Key: "parent", Value: 1}}}
	if _, err := col.Indexes().CreateOne(context.Background(), idxModel); err != nil {
		logger.Warnf("store: could not ensure parent index: %v", err)
	}
	return &MongoStore{col: col, pollInterval: 2 * time.Second}
}

func (s *MongoStore) Get(ctx context.Context, path string) (models.Fields, error) {
	if _, _, err := SplitPath(path); err != nil {
		return nil, err
	}
	var d mongoDoc
	if err := s.col.FindOne(ctx, bson.M{"_id": cleanPath(path)}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return normalize(d.Data), nil
}

func dataSet(parent string, data models.Fields) bson.M {
	set := bson.M{"parent": parent, "updatedAt": time.Now().UTC()}
	for k, v := range data {
		set["data."+k] = v
	}
	return set
}

func (s *MongoStore) Set(ctx context.Context, path string, data models.Fields, merge bool) error {
	parent, _, err := SplitPath(path)
	if err != nil {
		return err
	}
	id := cleanPath(path)
	if merge {
		_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": dataSet(parent, data)}, options.Update().SetUpsert(true))
		return err
	}
	doc := bson.M{"_id": id, "parent": parent, "data": bson.M(data), "updatedAt": time.Now().UTC()}
	_, err = s.col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Create(ctx context.Context, path string, data models.Fields) error {
	parent, _, err := SplitPath(path)
	if err != nil {
		return err
	}
	doc := bson.M{"_id": cleanPath(path), "parent": parent, "data": bson.M(data), "updatedAt": time.Now().UTC()}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrExists
		}
		return err
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, path string, data models.Fields) error {
	parent, _, err := SplitPath(path)
	if err != nil {
		return err
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": cleanPath(path)}, bson.M{"$set": dataSet(parent, data)})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, path string) error {
	if _, _, err := SplitPath(path); err != nil {
		return err
	}
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": cleanPath(path)})
	return err
}

func (s *MongoStore) List(ctx context.Context, collection string, filter Filter) ([]Doc, error) {
	if !validCollection(collection) {
		return nil, ErrInvalidPath
	}
	q := bson.M{"parent": cleanPath(collection)}
	for k, v := range filter {
		q["data."+k] = v
	}
	cur, err := s.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Doc{}
	for cur.Next(ctx) {
		var d mongoDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		_, id, _ := SplitPath(d.ID)
		out = append(out, Doc{Path: d.ID, ID: id, Data: normalize(d.Data)})
	}
	return out, cur.Err()
}

func (s *MongoStore) Batch(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	ops := make([]mongo.WriteModel, 0, len(writes))
	for _, w := range writes {
		parent, _, err := SplitPath(w.Path)
		if err != nil {
			return err
		}
		id := cleanPath(w.Path)
		if w.Merge {
			ops = append(ops, mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": id}).SetUpdate(bson.M{"$set": dataSet(parent, w.Data)}).SetUpsert(true))
			continue
		}
		doc := bson.M{"_id": id, "parent": parent, "data": bson.M(w.Data), "updatedAt": time.Now().UTC()}
		ops = append(ops, mongo.NewReplaceOneModel().SetFilter(bson.M{"_id": id}).SetReplacement(doc).SetUpsert(true))
	}
	_, err := s.col.BulkWrite(ctx, ops, options.BulkWrite().SetOrdered(true))
	return err
}

// Subscribe uses a change stream when the deployment supports one (replica
// set) and falls back to polling otherwise.
func (s *MongoStore) Subscribe(ctx context.Context, collection string, filter Filter) (<-chan Snapshot, error) {
	if !validCollection(collection) {
		return nil, ErrInvalidPath
	}
	coll := cleanPath(collection)
	first, err := s.List(ctx, coll, filter)
	if err != nil {
		return nil, err
	}
	out := make(chan Snapshot, 1)
	out <- Snapshot{Docs: first}

	stream, werr := s.col.Watch(ctx, mongo.Pipeline{}, options.ChangeStream())
	go func() {
		defer close(out)
		if werr != nil {
			logger.Debugf("store: change streams unavailable (%v), polling %s", werr, coll)
			s.poll(ctx, coll, filter, first, out)
			return
		}
		defer stream.Close(context.Background())
		prefix := coll + "/"
		for stream.Next(ctx) {
			var ev struct {
				DocumentKey struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
			}
			if err := stream.Decode(&ev); err != nil {
				continue
			}
			rest := strings.TrimPrefix(ev.DocumentKey.ID, prefix)
			if rest == ev.DocumentKey.ID || strings.Contains(rest, "/") {
				continue
			}
			docs, err := s.List(ctx, coll, filter)
			publish(out, Snapshot{Docs: docs, Err: err})
		}
	}()
	return out, nil
}

func (s *MongoStore) poll(ctx context.Context, coll string, filter Filter, last []Doc, out chan Snapshot) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			docs, err := s.List(ctx, coll, filter)
			if err != nil {
				publish(out, Snapshot{Err: err})
				continue
			}
			if !sameDocs(last, docs) {
				last = docs
				publish(out, Snapshot{Docs: docs})
			}
		}
	}
}

func publish(out chan Snapshot, snap Snapshot) {
	select {
	case out <- snap:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- snap:
		default:
		}
	}
}

func sameDocs(a, b []Doc) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path {
			return false
		}
		ab, _ := bson.Marshal(bson.M(a[i].Data))
		bb, _ := bson.Marshal(bson.M(b[i].Data))
		if string(ab) != string(bb) {
			return false
		}
	}
	return true
}

// normalize turns driver-specific container types into plain maps and slices.
func normalize(m bson.M) models.Fields {
	out := make(models.Fields, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return normalize(t)
	case bson.D:
		return normalize(t.Map())
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, x := range t {
			out[i] = normalizeValue(x)
		}
		return out
	case primitive.DateTime:
		return models.Timestamp(t.Time())
	}
	return v
}
