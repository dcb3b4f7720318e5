package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pricing_service/domain"
)

const EVENTS_COLLECTION = "events"

type EventMongoDBStore struct {
	events *mongo.Collection
	tracer trace.Tracer
}

func NewEventMongoDBStore(client *mongo.Client, tracer trace.Tracer) domain.EventStore {
	events := client.Database(DATABASE).Collection(EVENTS_COLLECTION)
	return &EventMongoDBStore{
		events: events,
		tracer: tracer,
	}
}

func (store *EventMongoDBStore) GetAllByOwner(ctx context.Context, ownerID string) ([]*domain.Event, error) {
	ctx, span := store.tracer.Start(ctx, "EventMongoDBStore.GetAllByOwner")
	defer span.End()

	filter := bson.M{"ownerId": ownerID}
	return store.filter(filter)
}

func (store *EventMongoDBStore) Insert(ctx context.Context, event *domain.Event) error {
	ctx, span := store.tracer.Start(ctx, "EventMongoDBStore.Insert")
	defer span.End()

	event.ID = primitive.NewObjectID()
	result, err := store.events.InsertOne(ctx, event)
	if err != nil {
		span.SetStatus(codes.Error, "Error inserting event")
		return err
	}
	event.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (store *EventMongoDBStore) filter(filter interface{}) ([]*domain.Event, error) {
	cursor, err := store.events.Find(context.TODO(), filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(context.TODO())

	return decodeEvents(cursor)
}

func decodeEvents(cursor *mongo.Cursor) (events []*domain.Event, err error) {
	for cursor.Next(context.TODO()) {
		var event domain.Event
		err = cursor.Decode(&event)
		if err != nil {
			return
		}
		events = append(events, &event)
	}
	err = cursor.Err()
	return
}
