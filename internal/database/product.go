package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"pricepal/internal/model"
)

func (db Database) ProductInsert(ctx context.Context, p model.Product) (id string, err error) {
	p.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	r, err := db.Collection(CollectionProducts).InsertOne(ctx, p)
	if err != nil {
		return "", errors.Wrapf(err, "error inserting Product with ASIN: %s for UserID: %s", p.ASIN, p.UserID)
	}
	return r.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (db Database) ProductFindOne(ctx context.Context, productID string) (model.Product, error) {
	var p model.Product
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return p, errors.Wrapf(err, "error creating ObjectID from hex: %s", productID)
	}
	err = db.Collection(CollectionProducts).FindOne(ctx, bson.M{"_id": objID}).Decode(&p)
	return p, errors.Wrapf(err, "error finding Product with ID: %s", productID)
}

func (db Database) ProductFindActiveByUserAndASIN(ctx context.Context, userID string, asin string) (model.Product, error) {
	var p model.Product
	err := db.Collection(CollectionProducts).FindOne(ctx, bson.M{
		"user_id":   userID,
		"asin":      asin,
		"is_active": true,
	}).Decode(&p)
	return p, errors.Wrapf(err, "error finding active Product with ASIN: %s for UserID: %s", asin, userID)
}

func (db Database) ProductsFindByUser(ctx context.Context, userID string) ([]model.Product, error) {
	var ps []model.Product
	cur, err := db.Collection(CollectionProducts).Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find Products for UserID: %s", userID)
	}
	if err = cur.All(ctx, &ps); err != nil {
		return nil, errors.Wrapf(err, "error getting Products from cursor for UserID: %s", userID)
	}
	return ps, nil
}

func (db Database) ProductsFindActive(ctx context.Context) ([]model.Product, error) {
	var ps []model.Product
	cur, err := db.Collection(CollectionProducts).Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, errors.Wrap(err, "error getting cursor to find active Products")
	}
	if err = cur.All(ctx, &ps); err != nil {
		return nil, errors.Wrap(err, "error getting active Products from cursor")
	}
	return ps, nil
}

func (db Database) ProductPricesUpdate(ctx context.Context, productID primitive.ObjectID, currentPrice float64, lowestPrice float64) error {
	_, err := db.Collection(CollectionProducts).UpdateOne(
		ctx,
		bson.M{"_id": productID},
		bson.M{"$set": bson.M{
			"current_price": currentPrice,
			"lowest_price":  lowestPrice,
		}},
	)
	return errors.Wrapf(err, "error updating prices on Product with ID: %s, current: %.2f, lowest: %.2f",
		productID.Hex(), currentPrice, lowestPrice)
}

func (db Database) ProductDeactivate(ctx context.Context, productID primitive.ObjectID) error {
	res, err := db.Collection(CollectionProducts).UpdateOne(
		ctx,
		bson.M{"_id": productID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return errors.Wrapf(err, "error deactivating Product with ID: %s", productID.Hex())
	}
	if res.ModifiedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "Product with ID: %s not deactivated", productID.Hex())
	}
	return nil
}

func (db Database) ProductDelete(ctx context.Context, productID string) error {
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return errors.Wrapf(err, "error creating ObjectID from hex: %s", productID)
	}
	res, err := db.Collection(CollectionProducts).DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return errors.Wrapf(err, "error deleting Product with ID: %s", productID)
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "Product with ID: %s not deleted", productID)
	}
	return nil
}
