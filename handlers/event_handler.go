package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	"pricing_service/authorization"
	"pricing_service/domain"
	"pricing_service/errors"
)

type EventHandler struct {
	events domain.EventStore
	prices domain.RoomPriceStore
	tracer trace.Tracer
}

func NewEventHandler(events domain.EventStore, prices domain.RoomPriceStore, tracer trace.Tracer) *EventHandler {
	return &EventHandler{
		events: events,
		prices: prices,
		tracer: tracer,
	}
}

func (handler *EventHandler) Init(router *mux.Router) {
	router.HandleFunc("/events", handler.GetAllEvents).Methods("GET")
	router.HandleFunc("/events", handler.CreateEvent).Methods("POST")
	router.HandleFunc("/roomPrices", handler.GetAllRoomPrices).Methods("GET")
	router.HandleFunc("/roomPrices", handler.CreateRoomPrice).Methods("POST")
}

func (handler *EventHandler) GetAllEvents(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "EventHandler.GetAllEvents")
	defer span.End()

	ownerID, err := authorization.ExtractOwnerID(req)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusUnauthorized)
		return
	}

	events, err := handler.events.GetAllByOwner(ctx, ownerID)
	if err != nil {
		log.Println(err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	jsonResponse(events, writer)
}

func (handler *EventHandler) CreateEvent(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "EventHandler.CreateEvent")
	defer span.End()

	ownerID, err := authorization.ExtractOwnerID(req)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusUnauthorized)
		return
	}

	var event domain.Event
	if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
		log.Println(err)
		http.Error(writer, errors.InvalidRequestFormatError, http.StatusBadRequest)
		return
	}
	event.OwnerID = ownerID

	if err := event.ValidateEvent(); err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.events.Insert(ctx, &event); err != nil {
		log.Println(err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	jsonResponse(&event, writer)
}

func (handler *EventHandler) GetAllRoomPrices(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "EventHandler.GetAllRoomPrices")
	defer span.End()

	ownerID, err := authorization.ExtractOwnerID(req)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusUnauthorized)
		return
	}

	prices, err := handler.prices.GetAllByOwner(ctx, ownerID)
	if err != nil {
		log.Println(err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	jsonResponse(prices, writer)
}

// CreateRoomPrice is the manual-entry path; scraped rates arrive through
// the ingest package instead.
func (handler *EventHandler) CreateRoomPrice(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "EventHandler.CreateRoomPrice")
	defer span.End()

	ownerID, err := authorization.ExtractOwnerID(req)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusUnauthorized)
		return
	}

	var price domain.RoomPrice
	if err := json.NewDecoder(req.Body).Decode(&price); err != nil {
		log.Println(err)
		http.Error(writer, errors.InvalidRequestFormatError, http.StatusBadRequest)
		return
	}
	price.HotelID = ownerID
	price.Applied = false

	if err := price.ValidateRoomPrice(); err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	if price.Price <= 0 {
		http.Error(writer, (&errors.InvalidPriceError{Value: "non-positive"}).Error(), http.StatusBadRequest)
		return
	}

	if err := handler.prices.Insert(ctx, &price); err != nil {
		log.Println(err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	jsonResponse(&price, writer)
}
