package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"parcelhub/models"
)

// MongoLogisticsRepo stores pulls, batches and agencies. Multi-document
// writes run inside a session transaction, which needs a replica set.
type MongoLogisticsRepo struct {
	DB       *mongo.Client
	Database string
}

var _ LogisticsRepository = (*MongoLogisticsRepo)(nil)

func NewMongoLogisticsRepo(db *mongo.Client, database string) *MongoLogisticsRepo {
	return &MongoLogisticsRepo{DB: db, Database: database}
}

func (r *MongoLogisticsRepo) collection(name string) *mongo.Collection {
	return r.DB.Database(r.Database).Collection(name)
}

func (r *MongoLogisticsRepo) GetPull(ctx context.Context, id string) (*models.Pull, error) {
	var pull models.Pull
	err := r.collection("pull").FindOne(ctx, bson.M{"_id": id}).Decode(&pull)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	n, err := r.collection("package").CountDocuments(ctx, bson.M{"pull_id": id})
	if err != nil {
		return nil, err
	}
	pull.PackageCount = int(n)
	return &pull, nil
}

func (r *MongoLogisticsRepo) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	var b models.Batch
	err := r.collection("batch").FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *MongoLogisticsRepo) GetAgency(ctx context.Context, id string) (*models.TransportAgency, error) {
	var a models.TransportAgency
	err := r.collection("transport_agency").FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MongoLogisticsRepo) ListAgencies(ctx context.Context) ([]*models.TransportAgency, error) {
	cur, err := r.collection("transport_agency").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*models.TransportAgency{}
	for cur.Next(ctx) {
		var a models.TransportAgency
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, cur.Err()
}

func (r *MongoLogisticsRepo) CreateAgency(ctx context.Context, a *models.TransportAgency) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection("transport_agency").InsertOne(ctx, a)
	return err
}

func (r *MongoLogisticsRepo) CreatePull(ctx context.Context, pull *models.Pull) error {
	if pull.BatchID != nil {
		b, err := r.GetBatch(ctx, *pull.BatchID)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("batch %s: %w", *pull.BatchID, ErrNotFound)
		}
	}
	return r.insertPull(ctx, pull)
}

func (r *MongoLogisticsRepo) BulkSetPackagePull(ctx context.Context, pullID string, packageIDs []string) error {
	return r.inTransaction(ctx, func(sc mongo.SessionContext) error {
		n, err := r.collection("pull").CountDocuments(sc, bson.M{"_id": pullID})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("pull %s: %w", pullID, ErrNotFound)
		}
		return r.bag(sc, pullID, packageIDs)
	})
}

func (r *MongoLogisticsRepo) CreateBatchWithPulls(ctx context.Context, batch *models.Batch, drafts []models.PullDraft) ([]*models.Pull, error) {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	var pulls []*models.Pull
	err := r.inTransaction(ctx, func(sc mongo.SessionContext) error {
		pulls = pulls[:0]
		if _, err := r.collection("batch").InsertOne(sc, batch); err != nil {
			return err
		}
		for _, d := range drafts {
			batchID := batch.ID
			pull := &models.Pull{CommonDestiny: batch.Destiny, Size: d.Size, BatchID: &batchID}
			if err := r.insertPull(sc, pull); err != nil {
				return err
			}
			if err := r.bag(sc, pull.ID, d.PackageIDs); err != nil {
				return err
			}
			pull.PackageCount = len(d.PackageIDs)
			pulls = append(pulls, pull)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pulls, nil
}

func (r *MongoLogisticsRepo) insertPull(ctx context.Context, pull *models.Pull) error {
	if !pull.Size.Valid() {
		return fmt.Errorf("invalid pull size %q", pull.Size)
	}
	if pull.ID == "" {
		pull.ID = uuid.NewString()
	}
	if pull.CreatedAt.IsZero() {
		pull.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection("pull").InsertOne(ctx, pull)
	return err
}

func (r *MongoLogisticsRepo) bag(ctx context.Context, pullID string, ids []string) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	packages := r.collection("package")

	found, err := packages.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return err
	}
	if int(found) != len(ids) {
		return fmt.Errorf("%d of %d packages: %w", len(ids)-int(found), len(ids), ErrNotFound)
	}

	res, err := packages.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "pull_id": nil},
		bson.M{"$set": bson.M{"pull_id": pullID, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if int(res.ModifiedCount) != len(ids) {
		return ErrPackageInPull
	}
	return nil
}

func (r *MongoLogisticsRepo) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	return withTransaction(ctx, r.DB, fn)
}

// withTransaction runs fn in a session transaction. The driver retries fn
// on transient errors such as write conflicts.
func withTransaction(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
