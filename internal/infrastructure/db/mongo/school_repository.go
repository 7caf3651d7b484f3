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

type SchoolRepository struct {
	coll *mongo.Collection
}

func NewSchoolRepository(db *mongo.Database) *SchoolRepository {
	return &SchoolRepository{coll: db.Collection(collectionSchools)}
}

var _ ports.SchoolRepository = (*SchoolRepository)(nil)

type mongoSchool struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	Name                 string             `bson:"name"`
	SubscriptionTier     string             `bson:"subscription_tier"`
	MaxUsers             int                `bson:"max_users"`
	MaxCourses           int                `bson:"max_courses"`
	StripeCustomerID     *string            `bson:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string            `bson:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time          `bson:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at"`
}

func (ms *mongoSchool) toDomain() *domain.School {
	return &domain.School{
		ID:                   ms.ID.Hex(),
		Name:                 ms.Name,
		SubscriptionTier:     domain.SubscriptionTier(ms.SubscriptionTier),
		MaxUsers:             ms.MaxUsers,
		MaxCourses:           ms.MaxCourses,
		StripeCustomerID:     ms.StripeCustomerID,
		StripeSubscriptionID: ms.StripeSubscriptionID,
		CreatedAt:            ms.CreatedAt.UTC(),
		UpdatedAt:            ms.UpdatedAt.UTC(),
	}
}

func (r *SchoolRepository) Create(ctx context.Context, school *domain.School) (*domain.School, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	doc := mongoSchool{
		ID:                   primitive.NewObjectID(),
		Name:                 school.Name,
		SubscriptionTier:     string(school.SubscriptionTier),
		MaxUsers:             school.MaxUsers,
		MaxCourses:           school.MaxCourses,
		StripeCustomerID:     school.StripeCustomerID,
		StripeSubscriptionID: school.StripeSubscriptionID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert school: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *SchoolRepository) findOne(ctx context.Context, filter bson.M) (*domain.School, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ms mongoSchool
	if err := r.coll.FindOne(ctx, filter).Decode(&ms); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSchoolNotFound
		}
		return nil, fmt.Errorf("find school: %w", err)
	}
	return ms.toDomain(), nil
}

func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*domain.School, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrSchoolNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *SchoolRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.School, error) {
	return r.findOne(ctx, bson.M{"stripe_customer_id": customerID})
}

// Apply resolves and updates the school with one FindOneAndUpdate, so no
// other writer can interleave between the lookup and the write.
func (r *SchoolRepository) Apply(ctx context.Context, target domain.SchoolTarget, update domain.SchoolUpdate) (*domain.School, error) {
	filter, err := targetFilter(target)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return r.findOne(ctx, filter)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ms mongoSchool
	err = r.coll.FindOneAndUpdate(ctx, filter, schoolUpdateDoc(update, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ms)
	if err != nil {
		return nil, applyError(err)
	}
	return ms.toDomain(), nil
}

// applyError maps a missing document and the sparse unique index on
// stripe_customer_id to their domain errors.
func applyError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrSchoolNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("apply school update: %w", domain.ErrCustomerConflict)
	}
	return fmt.Errorf("apply school update: %w", err)
}

func targetFilter(target domain.SchoolTarget) (bson.M, error) {
	if target.ID != "" {
		oid, err := primitive.ObjectIDFromHex(target.ID)
		if err != nil {
			return nil, domain.ErrSchoolNotFound
		}
		return bson.M{"_id": oid}, nil
	}
	if target.CustomerID != "" {
		return bson.M{"stripe_customer_id": target.CustomerID}, nil
	}
	return nil, domain.ErrSchoolNotFound
}

func schoolUpdateDoc(u domain.SchoolUpdate, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if u.Tier != nil {
		set["subscription_tier"] = string(*u.Tier)
	}
	if u.MaxUsers != nil {
		set["max_users"] = *u.MaxUsers
	}
	if u.MaxCourses != nil {
		set["max_courses"] = *u.MaxCourses
	}
	if u.StripeCustomerID != nil {
		set["stripe_customer_id"] = *u.StripeCustomerID
	}
	if u.StripeSubscriptionID != nil && !u.ClearSubscriptionID {
		set["stripe_subscription_id"] = *u.StripeSubscriptionID
	}

	doc := bson.M{"$set": set}
	if u.ClearSubscriptionID {
		doc["$unset"] = bson.M{"stripe_subscription_id": ""}
	}
	return doc
}

// BillingEventRepository writes the webhook audit trail to MongoDB.
type BillingEventRepository struct {
	coll *mongo.Collection
}

func NewBillingEventRepository(db *mongo.Database) *BillingEventRepository {
	return &BillingEventRepository{coll: db.Collection(collectionBillingEvents)}
}

func (r *BillingEventRepository) Insert(ctx context.Context, record *domain.BillingEventRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id := primitive.NewObjectID()
	doc := bson.M{
		"_id":          id,
		"provider":     record.Provider,
		"event_id":     record.EventID,
		"event_type":   record.EventType,
		"outcome":      string(record.Outcome),
		"received_at":  record.ReceivedAt.UTC(),
		"processed_at": time.Now().UTC(),
	}
	if record.SchoolID != "" {
		doc["school_id"] = record.SchoolID
	}
	if record.CustomerID != "" {
		doc["customer_id"] = record.CustomerID
	}
	if record.Error != "" {
		doc["error"] = record.Error
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert billing event: %w", err)
	}
	record.ID = id.Hex()
	return nil
}
