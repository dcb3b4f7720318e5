package store

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pricing_service/domain"
)

const (
	DATABASE          = "hotel_pricing"
	PRICES_COLLECTION = "hotel_prices"
)

type RoomPriceMongoDBStore struct {
	prices *mongo.Collection
	tracer trace.Tracer
}

func NewRoomPriceMongoDBStore(client *mongo.Client, tracer trace.Tracer) domain.RoomPriceStore {
	prices := client.Database(DATABASE).Collection(PRICES_COLLECTION)
	return &RoomPriceMongoDBStore{
		prices: prices,
		tracer: tracer,
	}
}

func (store *RoomPriceMongoDBStore) GetAllByOwner(ctx context.Context, ownerID string) ([]*domain.RoomPrice, error) {
	ctx, span := store.tracer.Start(ctx, "RoomPriceMongoDBStore.GetAllByOwner")
	defer span.End()

	filter := bson.M{"hotelId": ownerID}
	return store.filter(filter)
}

func (store *RoomPriceMongoDBStore) GetByDate(ctx context.Context, ownerID string, date string) ([]*domain.RoomPrice, error) {
	ctx, span := store.tracer.Start(ctx, "RoomPriceMongoDBStore.GetByDate")
	defer span.End()

	filter := bson.M{"hotelId": ownerID, "checkinDate": date}
	return store.filter(filter)
}

func (store *RoomPriceMongoDBStore) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.RoomPrice, error) {
	ctx, span := store.tracer.Start(ctx, "RoomPriceMongoDBStore.GetByID")
	defer span.End()

	filter := bson.M{"_id": id}
	return store.filterOne(filter)
}

func (store *RoomPriceMongoDBStore) Insert(ctx context.Context, price *domain.RoomPrice) error {
	ctx, span := store.tracer.Start(ctx, "RoomPriceMongoDBStore.Insert")
	defer span.End()

	price.ID = primitive.NewObjectID()
	result, err := store.prices.InsertOne(ctx, price)
	if err != nil {
		span.SetStatus(codes.Error, "Error inserting room price")
		return err
	}
	price.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// UpdatePriceApplied writes price and applied as one $set, so the record
// can never end up with a new price while still marked pending.
func (store *RoomPriceMongoDBStore) UpdatePriceApplied(ctx context.Context, id primitive.ObjectID, price float64) error {
	ctx, span := store.tracer.Start(ctx, "RoomPriceMongoDBStore.UpdatePriceApplied")
	defer span.End()

	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"price": price, "applied": true}}

	result, err := store.prices.UpdateOne(ctx, filter, update)
	if err != nil {
		span.SetStatus(codes.Error, "Error updating room price")
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (store *RoomPriceMongoDBStore) filter(filter interface{}) ([]*domain.RoomPrice, error) {
	cursor, err := store.prices.Find(context.TODO(), filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(context.TODO())

	return decodePrices(cursor)
}

func (store *RoomPriceMongoDBStore) filterOne(filter interface{}) (*domain.RoomPrice, error) {
	result := store.prices.FindOne(context.TODO(), filter)

	var price domain.RoomPrice
	if err := result.Decode(&price); err != nil {
		if err == mongo.ErrNoDocuments {
			log.Println("No room price found for the given filter")
			return nil, nil
		}
		return nil, err
	}

	return &price, nil
}

func decodePrices(cursor *mongo.Cursor) (prices []*domain.RoomPrice, err error) {
	for cursor.Next(context.TODO()) {
		var price domain.RoomPrice
		err = cursor.Decode(&price)
		if err != nil {
			return
		}
		prices = append(prices, &price)
	}
	err = cursor.Err()
	return
}
