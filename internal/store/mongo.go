package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// MongoStore keeps settings and history in a hosted document store.
type MongoStore struct {
	client   *mongo.Client
	settings *mongo.Collection
	history  *mongo.Collection
	logger   *zap.Logger
}

type historyDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	FileName  string    `bson:"file_name"`
	FileCount int       `bson:"file_count"`
	Students  string    `bson:"students,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func toHistoryDoc(item *models.HistoryItem) historyDoc {
	return historyDoc{
		ID:        item.ID.String(),
		UserID:    item.UserID,
		FileName:  item.FileName,
		FileCount: item.FileCount,
		Students:  string(item.Students),
		CreatedAt: item.CreatedAt,
	}
}

func (d historyDoc) item() (models.HistoryItem, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.HistoryItem{}, fmt.Errorf("history id %q: %w", d.ID, err)
	}
	item := models.HistoryItem{
		ID:        id,
		UserID:    d.UserID,
		FileName:  d.FileName,
		FileCount: d.FileCount,
		CreatedAt: d.CreatedAt,
	}
	if d.Students != "" {
		item.Students = datatypes.JSON(d.Students)
	}
	return item, nil
}

func NewMongoStore(ctx context.Context, uri, database string, log *zap.Logger) (*MongoStore, error) {
	log = logging.OrNop(log)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, wrap("connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, wrap("ping", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		settings: db.Collection("settings"),
		history:  db.Collection("history"),
		logger:   log,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		log.Warn("Failed to create history indexes", zap.Error(err))
	}

	log.Info("Connected to MongoDB", zap.String("database", database))
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
	_, err := s.history.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *MongoStore) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	defaults := models.DefaultSettings(userID)
	now := time.Now().UTC()
	defaults.CreatedAt, defaults.UpdatedAt = now, now

	var settings models.Settings
	err := s.settings.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$setOnInsert": defaults},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&settings)
	if err != nil {
		return nil, wrap("get settings", err)
	}
	return &settings, nil
}

func (s *MongoStore) SaveSettings(ctx context.Context, userID string, patch models.SettingsPatch) (*models.Settings, error) {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	patch.Apply(settings)
	settings.UpdatedAt = time.Now().UTC()

	_, err = s.settings.ReplaceOne(ctx, bson.M{"_id": userID}, settings, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, wrap("save settings", err)
	}
	return settings, nil
}

func (s *MongoStore) AddHistory(ctx context.Context, item *models.HistoryItem) error {
	newHistoryID(item)
	_, err := s.history.InsertOne(ctx, toHistoryDoc(item))
	return wrap("add history", err)
}

func (s *MongoStore) ListHistory(ctx context.Context, userID string) ([]models.HistoryItem, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"students": 0})
	cur, err := s.history.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, wrap("list history", err)
	}
	defer cur.Close(ctx)

	var docs []historyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrap("list history", err)
	}
	items := make([]models.HistoryItem, 0, len(docs))
	for _, d := range docs {
		item, err := d.item()
		if err != nil {
			s.logger.Warn("Skipping malformed history document", zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *MongoStore) GetHistory(ctx context.Context, userID string, id uuid.UUID) (*models.HistoryItem, error) {
	var doc historyDoc
	err := s.history.FindOne(ctx, bson.M{"_id": id.String(), "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get history", err)
	}
	item, err := doc.item()
	if err != nil {
		return nil, wrap("get history", err)
	}
	return &item, nil
}

func (s *MongoStore) DeleteHistory(ctx context.Context, userID string, id uuid.UUID) error {
	res, err := s.history.DeleteOne(ctx, bson.M{"_id": id.String(), "user_id": userID})
	if err != nil {
		return wrap("delete history", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ClearHistory(ctx context.Context, userID string) (int64, error) {
	res, err := s.history.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, wrap("clear history", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) PruneHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.history.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, wrap("prune history", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
