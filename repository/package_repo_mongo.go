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

	"parcelhub/hierarchy"
	"parcelhub/models"
)

// maxAncestorDepth bounds the ancestor walk when the stored data is corrupt.
const maxAncestorDepth = 10000

type MongoPackageRepo struct {
	DB       *mongo.Client
	Database string
}

var _ PackageRepository = (*MongoPackageRepo)(nil)

func NewMongoPackageRepo(db *mongo.Client, database string) *MongoPackageRepo {
	return &MongoPackageRepo{DB: db, Database: database}
}

func (r *MongoPackageRepo) packages() *mongo.Collection {
	return r.DB.Database(r.Database).Collection("package")
}

func (r *MongoPackageRepo) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	var p models.Package
	err := r.packages().FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MongoPackageRepo) GetPackagesByIDs(ctx context.Context, ids []string) ([]*models.Package, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []*models.Package{}, nil
	}
	cur, err := r.packages().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return decodePackages(ctx, cur)
}

func (r *MongoPackageRepo) ListPackages(ctx context.Context, filter models.PackageFilter) ([]*models.Package, error) {
	opts := options.Find().SetSort(bson.D{{Key: "guide_number", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cur, err := r.packages().Find(ctx, packageQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	return decodePackages(ctx, cur)
}

func packageQuery(filter models.PackageFilter) bson.M {
	q := bson.M{}
	switch {
	case filter.ParentID != nil:
		q["parent_id"] = *filter.ParentID
	case filter.WithoutParent:
		q["parent_id"] = nil
	}
	switch {
	case filter.PullID != nil:
		q["pull_id"] = *filter.PullID
	case filter.WithoutPull:
		q["pull_id"] = nil
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if len(filter.ExcludeIDs) > 0 {
		q["_id"] = bson.M{"$nin": filter.ExcludeIDs}
	}
	return q
}

func (r *MongoPackageRepo) CreatePackage(ctx context.Context, p *models.Package) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.StatusNotReceived
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.HasParent() {
		parent, err := r.GetPackage(ctx, *p.ParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("parent %s: %w", *p.ParentID, ErrNotFound)
		}
	}

	_, err := r.packages().InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateGuide
	}
	return err
}

// UpdatePackageParent re-validates and applies the edit inside a session
// transaction that first writes the hierarchy lock document. Concurrent
// parent edits therefore conflict on that document and run one after the
// other, so two edits cannot close a cycle together.
func (r *MongoPackageRepo) UpdatePackageParent(ctx context.Context, id string, parentID *string) (*models.Package, error) {
	var updated *models.Package
	err := withTransaction(ctx, r.DB, func(sc mongo.SessionContext) error {
		if err := r.lockHierarchy(sc); err != nil {
			return err
		}
		node, err := r.GetPackage(sc, id)
		if err != nil {
			return err
		}
		if node == nil {
			return fmt.Errorf("package %s: %w", id, ErrNotFound)
		}

		snap := hierarchy.NewSnapshot(node)
		var parent *models.Package
		if parentID != nil && *parentID != "" {
			chain, err := r.ancestry(sc, *parentID)
			if err != nil {
				return err
			}
			if len(chain) == 0 {
				return fmt.Errorf("parent %s: %w", *parentID, ErrNotFound)
			}
			snap.Add(chain...)
			parent = chain[0]
		}
		if err := checkParentEdit(snap, node, parent); err != nil {
			return err
		}

		if updated, err = r.setParent(sc, node, parent); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// InsertParent creates parent and attaches childID under it in one
// transaction.
func (r *MongoPackageRepo) InsertParent(ctx context.Context, parent *models.Package, childID string) (*models.Package, error) {
	prepareParent(parent, time.Now().UTC())

	var updated *models.Package
	err := withTransaction(ctx, r.DB, func(sc mongo.SessionContext) error {
		if err := r.lockHierarchy(sc); err != nil {
			return err
		}
		child, err := r.GetPackage(sc, childID)
		if err != nil {
			return err
		}
		if err := checkInsertParent(child, childID); err != nil {
			return err
		}
		kids, err := r.packages().CountDocuments(sc, bson.M{"parent_id": child.ID}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if kids > 0 {
			return fmt.Errorf("package %s: %w", child.GuideNumber, ErrHasChildren)
		}

		if _, err := r.packages().InsertOne(sc, parent); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicateGuide
			}
			return err
		}
		updated, err = r.setParent(sc, child, parent)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// lockHierarchy writes the lock document so that concurrent hierarchy
// transactions hit a write conflict and are retried in turn.
func (r *MongoPackageRepo) lockHierarchy(sc mongo.SessionContext) error {
	_, err := r.DB.Database(r.Database).Collection("lock").UpdateOne(sc,
		bson.M{"_id": "hierarchy"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.Update().SetUpsert(true),
	)
	return err
}

// setParent stores the new parent of node, guarded on the parent it was
// read with.
func (r *MongoPackageRepo) setParent(ctx context.Context, node, parent *models.Package) (*models.Package, error) {
	guard := bson.M{"_id": node.ID, "parent_id": nil}
	if node.ParentID != nil {
		guard["parent_id"] = *node.ParentID
	}
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"updated_at": now}}
	if parent == nil {
		update["$unset"] = bson.M{"parent_id": ""}
	} else {
		update["$set"] = bson.M{"updated_at": now, "parent_id": parent.ID}
	}

	res, err := r.packages().UpdateOne(ctx, guard, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("package %s changed concurrently: %w", node.ID, ErrAlreadyHasParent)
	}

	out := node.Clone()
	out.ParentID = nil
	if parent != nil {
		pid := parent.ID
		out.ParentID = &pid
	}
	out.UpdatedAt = &now
	return out, nil
}

// ancestry returns id followed by its ancestors. The walk stops at a root,
// at a dangling reference, or when an id repeats.
func (r *MongoPackageRepo) ancestry(ctx context.Context, id string) ([]*models.Package, error) {
	var chain []*models.Package
	visited := make(map[string]struct{})
	for next := id; next != "" && len(chain) < maxAncestorDepth; {
		if _, seen := visited[next]; seen {
			break
		}
		visited[next] = struct{}{}

		p, err := r.GetPackage(ctx, next)
		if err != nil {
			return nil, err
		}
		if p == nil {
			break
		}
		chain = append(chain, p)
		next = ""
		if p.ParentID != nil {
			next = *p.ParentID
		}
	}
	return chain, nil
}

func (r *MongoPackageRepo) GuideNumberExists(ctx context.Context, guide string) (bool, error) {
	n, err := r.packages().CountDocuments(ctx, bson.M{"guide_number": guide}, options.Count().SetLimit(1))
	return n > 0, err
}

func decodePackages(ctx context.Context, cur *mongo.Cursor) ([]*models.Package, error) {
	defer cur.Close(ctx)
	out := []*models.Package{}
	for cur.Next(ctx) {
		var p models.Package
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, cur.Err()
}
