package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(collectionUsers)}
}

var _ ports.UserRepository = (*UserRepository)(nil)

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	SchoolID     string             `bson:"school_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	XP           int64              `bson:"xp"`
	Level        int                `bson:"level"`
	Streak       int                `bson:"streak"`
	LastActiveOn *time.Time         `bson:"last_active_on"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (mu *mongoUser) toDomain() *domain.User {
	u := &domain.User{
		ID:           mu.ID.Hex(),
		SchoolID:     mu.SchoolID,
		Name:         mu.Name,
		Email:        mu.Email,
		PasswordHash: mu.PasswordHash,
		Role:         mu.Role,
		XP:           mu.XP,
		Level:        mu.Level,
		Streak:       mu.Streak,
		CreatedAt:    mu.CreatedAt.UTC(),
		UpdatedAt:    mu.UpdatedAt.UTC(),
	}
	if mu.LastActiveOn != nil {
		d := domain.Day(*mu.LastActiveOn)
		u.LastActiveOn = &d
	}
	return u
}

// userID parses a hex id. Malformed ids cannot exist and read as not found.
func userID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrUserNotFound
	}
	return oid, nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := userID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	doc := mongoUser{
		ID:           primitive.NewObjectID(),
		SchoolID:     user.SchoolID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		XP:           user.XP,
		Level:        domain.CalculateLevel(user.XP),
		Streak:       user.Streak,
		LastActiveOn: user.LastActiveOn,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := userID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CountBySchool(ctx context.Context, schoolID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"school_id": schoolID})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// IncrementXP applies $add and the level recomputation as one pipeline
// update on a single document, which MongoDB executes atomically.
func (r *UserRepository) IncrementXP(ctx context.Context, id string, amount int64) (ports.XPChange, error) {
	oid, err := userID(id)
	if err != nil {
		return ports.XPChange{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, incrementXPPipeline(amount, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&mu)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ports.XPChange{}, domain.ErrUserNotFound
		}
		return ports.XPChange{}, fmt.Errorf("increment xp: %w", err)
	}

	oldXP := mu.XP - amount
	return ports.XPChange{
		OldXP:    oldXP,
		OldLevel: domain.CalculateLevel(oldXP),
		NewXP:    mu.XP,
		NewLevel: mu.Level,
	}, nil
}

func incrementXPPipeline(amount int64, now time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "xp", Value: bson.D{{Key: "$add", Value: bson.A{"$xp", amount}}}},
			{Key: "updated_at", Value: now},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "level", Value: bson.D{{Key: "$toInt", Value: bson.D{{Key: "$add", Value: bson.A{
				bson.D{{Key: "$floor", Value: bson.D{{Key: "$divide", Value: bson.A{"$xp", domain.XPPerLevel}}}}},
				1,
			}}}}}},
		}}},
	}
}

// RecordActivity computes the new streak server-side so the update is a
// single atomic document write.
func (r *UserRepository) RecordActivity(ctx context.Context, id string, day time.Time) (*domain.User, error) {
	oid, err := userID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, recordActivityPipeline(domain.Day(day), time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&mu)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("record activity: %w", err)
	}
	return mu.toDomain(), nil
}

// recordActivityPipeline mirrors domain.AdvanceStreak. Expressions inside one
// $set stage all read the pre-update document.
func recordActivityPipeline(day, now time.Time) mongo.Pipeline {
	yesterday := day.AddDate(0, 0, -1)
	lastActive := bson.D{{Key: "$ifNull", Value: bson.A{"$last_active_on", nil}}}

	streak := bson.D{{Key: "$switch", Value: bson.D{
		{Key: "branches", Value: bson.A{
			bson.D{{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{lastActive, nil}}}}, {Key: "then", Value: 1}},
			bson.D{{Key: "case", Value: bson.D{{Key: "$gt", Value: bson.A{"$last_active_on", day}}}}, {Key: "then", Value: "$streak"}},
			bson.D{{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{"$last_active_on", day}}}}, {Key: "then", Value: bson.D{{Key: "$max", Value: bson.A{"$streak", 1}}}}},
			bson.D{{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{"$last_active_on", yesterday}}}}, {Key: "then", Value: bson.D{{Key: "$add", Value: bson.A{"$streak", 1}}}}},
		}},
		{Key: "default", Value: 1},
	}}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "streak", Value: streak},
			{Key: "last_active_on", Value: bson.D{{Key: "$max", Value: bson.A{"$last_active_on", day}}}},
			{Key: "updated_at", Value: now},
		}}},
	}
}

func (r *UserRepository) ResetStaleStreaks(ctx context.Context, today time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	yesterday := domain.Day(today).AddDate(0, 0, -1)
	filter := bson.M{
		"streak": bson.M{"$gt": 0},
		"$or": bson.A{
			bson.M{"last_active_on": nil},
			bson.M{"last_active_on": bson.M{"$lt": yesterday}},
		},
	}
	res, err := r.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"streak": 0, "updated_at": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("reset streaks: %w", err)
	}
	return res.ModifiedCount, nil
}
