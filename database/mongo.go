package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"pk55-api/logger"
	"pk55-api/models"
)

const (
	collectionUsers    = "users"
	collectionBanners  = "banners"
	collectionImages   = "images"
	collectionSettings = "settings"
)

type bannerImageDoc struct {
	Data        []byte `bson:"data"`
	ContentType string `bson:"contentType"`
	Filename    string `bson:"filename"`
}

type bannerDoc struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	DiscountPercentage int                `bson:"discountPercentage"`
	Date               string             `bson:"date"`
	Heading            string             `bson:"heading"`
	Description        string             `bson:"description"`
	Image              *bannerImageDoc    `bson:"image,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt"`
}

func (d *bannerDoc) model() *models.Banner {
	b := &models.Banner{
		ID:                 d.ID.Hex(),
		DiscountPercentage: d.DiscountPercentage,
		Date:               d.Date,
		Heading:            d.Heading,
		Description:        d.Description,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.Image != nil {
		b.Image = &models.BannerImage{
			Data:        d.Image.Data,
			ContentType: d.Image.ContentType,
			Filename:    d.Image.Filename,
		}
	}
	return b
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Password  string             `bson:"password"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type imageDoc struct {
	ID        string    `bson:"id"`
	ImageURL  string    `bson:"imageUrl"`
	AssetID   string    `bson:"assetId"`
	Date      string    `bson:"date"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d imageDoc) model() models.Image {
	return models.Image{
		ID:        d.ID,
		ImageURL:  d.ImageURL,
		AssetID:   d.AssetID,
		Date:      d.Date,
		CreatedAt: d.CreatedAt,
	}
}

type settingDoc struct {
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore is the document-store backend.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, cfg DatabaseConfig) (*MongoStore, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI is required for the mongo driver")
	}

	connectCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(cfg.MongoDatabase)}

	if err := s.Ping(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	if err := s.ensureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("MongoDB connected", zap.String("database", cfg.MongoDatabase))
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[string]mongo.IndexModel{
		collectionUsers: {
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		collectionImages: {
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		collectionSettings: {
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		collectionBanners: {
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	}

	for coll, idx := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateOne(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) LatestBanner(ctx context.Context) (*models.Banner, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc bannerDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	err := s.db.Collection(collectionBanners).FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching latest banner: %w", err)
	}
	return doc.model(), nil
}

func (s *MongoStore) CreateBanner(ctx context.Context, banner *models.Banner) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	doc := bannerDoc{
		DiscountPercentage: banner.DiscountPercentage,
		Date:               banner.Date,
		Heading:            banner.Heading,
		Description:        banner.Description,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if banner.Image != nil {
		doc.Image = &bannerImageDoc{
			Data:        banner.Image.Data,
			ContentType: banner.Image.ContentType,
			Filename:    banner.Image.Filename,
		}
	}

	res, err := s.db.Collection(collectionBanners).InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("error creating banner: %w", err)
	}

	banner.ID = res.InsertedID.(primitive.ObjectID).Hex()
	banner.CreatedAt = now
	banner.UpdatedAt = now
	return nil
}

func bannerSetDoc(upd models.BannerUpdate) bson.M {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.DiscountPercentage != nil {
		set["discountPercentage"] = *upd.DiscountPercentage
	}
	if upd.Date != nil {
		set["date"] = *upd.Date
	}
	if upd.Heading != nil {
		set["heading"] = *upd.Heading
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Image != nil {
		set["image"] = bannerImageDoc{
			Data:        upd.Image.Data,
			ContentType: upd.Image.ContentType,
			Filename:    upd.Image.Filename,
		}
	}
	return set
}

func (s *MongoStore) UpdateBanner(ctx context.Context, id string, upd models.BannerUpdate) (*models.Banner, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc bannerDoc
	err = s.db.Collection(collectionBanners).FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bannerSetDoc(upd)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating banner: %w", err)
	}
	return doc.model(), nil
}

func (s *MongoStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc userDoc
	err := s.db.Collection(collectionUsers).FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	return &models.User{
		ID:        doc.ID.Hex(),
		Username:  doc.Username,
		Password:  doc.Password,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	res, err := s.db.Collection(collectionUsers).InsertOne(ctx, userDoc{
		Username:  user.Username,
		Password:  user.Password,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating user: %w", err)
	}

	user.ID = res.InsertedID.(primitive.ObjectID).Hex()
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (s *MongoStore) ListImages(ctx context.Context) ([]models.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	cur, err := s.db.Collection(collectionImages).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing images: %w", err)
	}
	defer cur.Close(ctx)

	images := []models.Image{}
	for cur.Next(ctx) {
		var doc imageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding image: %w", err)
		}
		images = append(images, doc.model())
	}
	return images, cur.Err()
}

func (s *MongoStore) FindImage(ctx context.Context, id string) (*models.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc imageDoc
	err := s.db.Collection(collectionImages).FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching image: %w", err)
	}
	img := doc.model()
	return &img, nil
}

func (s *MongoStore) CreateImage(ctx context.Context, image *models.Image) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(collectionImages).InsertOne(ctx, imageDoc{
		ID:        image.ID,
		ImageURL:  image.ImageURL,
		AssetID:   image.AssetID,
		Date:      image.Date,
		CreatedAt: image.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating image: %w", err)
	}
	return nil
}

func (s *MongoStore) ReplaceImage(ctx context.Context, oldID string, image *models.Image) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var old imageDoc
	err := s.db.Collection(collectionImages).FindOneAndUpdate(ctx,
		bson.M{"id": oldID},
		bson.M{"$set": bson.M{
			"id":       image.ID,
			"imageUrl": image.ImageURL,
			"assetId":  image.AssetID,
			"date":     image.Date,
		}},
	).Decode(&old)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error replacing image: %w", err)
	}

	image.CreatedAt = old.CreatedAt
	return nil
}

func (s *MongoStore) UpdateImageDate(ctx context.Context, id, date string) (*models.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc imageDoc
	err := s.db.Collection(collectionImages).FindOneAndUpdate(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"date": date}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating image date: %w", err)
	}
	img := doc.model()
	return &img, nil
}

func (s *MongoStore) DeleteImage(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.Collection(collectionImages).DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("error deleting image: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListSettings(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cur, err := s.db.Collection(collectionSettings).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("error listing settings: %w", err)
	}
	defer cur.Close(ctx)

	settings := make(map[string]string)
	for cur.Next(ctx) {
		var doc settingDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding setting: %w", err)
		}
		settings[doc.Key] = doc.Value
	}
	return settings, cur.Err()
}

func (s *MongoStore) UpsertSetting(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.Collection(collectionSettings).UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"key": key, "value": value, "updatedAt": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error saving setting %s: %w", key, err)
	}
	return nil
}
