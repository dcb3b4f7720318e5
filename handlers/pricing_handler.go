package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"pricing_service/authorization"
	"pricing_service/errors"
	"pricing_service/pricing"
	application "pricing_service/service"
)

const (
	defaultRangeDays = 30
	maxRangeDays     = 365
)

type PricingHandler struct {
	service *application.PricingService
	scraper *application.ScrapeService
	tracer  trace.Tracer
}

func NewPricingHandler(service *application.PricingService, scraper *application.ScrapeService, tracer trace.Tracer) *PricingHandler {
	return &PricingHandler{
		service: service,
		scraper: scraper,
		tracer:  tracer,
	}
}

func (handler *PricingHandler) Init(router *mux.Router) {
	router.Use(ExtractTraceInfoMiddleware)
	router.HandleFunc("/dayViews", handler.GetDayViews).Methods("GET")
	router.HandleFunc("/apply/{id}", handler.ApplyRecommendation).Methods("POST")
	router.HandleFunc("/applyAll/{date}", handler.ApplyAllRecommendations).Methods("POST")
	router.HandleFunc("/scrape/hotel", handler.RunOwnHotelScrape).Methods("POST")
	router.HandleFunc("/scrape/competitors", handler.RunCompetitorScrape).Methods("POST")
	router.HandleFunc("/scrape/events", handler.RunEventScrape).Methods("POST")
	router.HandleFunc("/scrape/all", handler.RunAllScrapes).Methods("POST")
}

// GetDayViews returns one view per date for the requested range. Defaults
// to the 30 days starting today.
func (handler *PricingHandler) GetDayViews(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "PricingHandler.GetDayViews")
	defer span.End()

	from := time.Now()
	if fromParam := req.URL.Query().Get("from"); fromParam != "" {
		parsed, err := time.Parse(pricing.DateLayout, fromParam)
		if err != nil {
			http.Error(writer, errors.InvalidRequestFormatError, http.StatusBadRequest)
			return
		}
		from = parsed
	}

	days := defaultRangeDays
	if daysParam := req.URL.Query().Get("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil || parsed <= 0 || parsed > maxRangeDays {
			http.Error(writer, errors.InvalidRequestFormatError, http.StatusBadRequest)
			return
		}
		days = parsed
	}

	ownerID, err := authorization.ExtractOwnerID(req)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusUnauthorized)
		return
	}

	views, err := handler.service.BuildDayViews(ctx, ownerID, from, days)
	if err != nil {
		log.Println(err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	jsonResponse(views, writer)
}

type applyRequest struct {
	NewPrice float64 `json:"newPrice"`
}

func (handler *PricingHandler) ApplyRecommendation(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "PricingHandler.ApplyRecommendation")
	defer span.End()

	vars := mux.Vars(req)
	id, ok := vars["id"]
	if !ok {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	var request applyRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		log.Println(err)
		http.Error(writer, errors.InvalidRequestFormatError, http.StatusBadRequest)
		return
	}

	outcome, err := handler.service.ApplyOne(ctx, id, request.NewPrice)
	if err != nil {
		if _, invalid := err.(*errors.InvalidPriceError); invalid {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		switch err.Error() {
		case errors.RecordNotFoundError:
			http.Error(writer, err.Error(), http.StatusNotFound)
		case errors.RecordBusyError:
			http.Error(writer, err.Error(), http.StatusConflict)
		case errors.InvalidRequestFormatError:
			http.Error(writer, err.Error(), http.StatusBadRequest)
		default:
			http.Error(writer, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	jsonResponse(outcome, writer)
}

// ApplyAllRecommendations bulk-applies the date's recommendation. The
// response always carries per-record outcomes so the caller can retry just
// the failed subset.
func (handler *PricingHandler) ApplyAllRecommendations(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "PricingHandler.ApplyAllRecommendations")
	defer span.End()

	ownerID, err := authorization.ExtractOwnerID(req)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(req)
	date, ok := vars["date"]
	if !ok {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	outcomes, err := handler.service.ApplyBulk(ctx, ownerID, date)
	if err != nil {
		if _, invalid := err.(*errors.InvalidDateError); invalid {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		if err.Error() == errors.NoRecommendationError {
			http.Error(writer, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		log.Println(err)
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(outcomes, writer)
}

type scrapeRequest struct {
	HotelName string `json:"hotel_name"`
	Radius    string `json:"radius"`
}

func (handler *PricingHandler) RunOwnHotelScrape(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "PricingHandler.RunOwnHotelScrape")
	defer span.End()

	ownerID, err := authorization.ExtractOwnerID(req)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusUnauthorized)
		return
	}

	var request scrapeRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil || request.HotelName == "" {
		http.Error(writer, errors.InvalidRequestFormatError, http.StatusBadRequest)
		return
	}

	output, err := handler.scraper.RunOwnHotelScrape(ctx, ownerID, request.HotelName)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadGateway)
		return
	}

	jsonResponse(map[string]string{"output": output}, writer)
}

// RunCompetitorScrape refreshes competitor hotel rates, the data the rest
// of the dashboard compares against.
func (handler *PricingHandler) RunCompetitorScrape(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "PricingHandler.RunCompetitorScrape")
	defer span.End()

	ownerID, err := authorization.ExtractOwnerID(req)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusUnauthorized)
		return
	}

	output, err := handler.scraper.RunCompetitorScrape(ctx, ownerID)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadGateway)
		return
	}

	jsonResponse(map[string]string{"output": output}, writer)
}

func (handler *PricingHandler) RunAllScrapes(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "PricingHandler.RunAllScrapes")
	defer span.End()

	ownerID, err := authorization.ExtractOwnerID(req)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusUnauthorized)
		return
	}

	var request scrapeRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil || request.HotelName == "" {
		http.Error(writer, errors.InvalidRequestFormatError, http.StatusBadRequest)
		return
	}

	output, err := handler.scraper.RunAllScrapes(ctx, ownerID, request.HotelName)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadGateway)
		return
	}

	jsonResponse(map[string]string{"output": output}, writer)
}

func (handler *PricingHandler) RunEventScrape(writer http.ResponseWriter, req *http.Request) {
	ctx, span := handler.tracer.Start(req.Context(), "PricingHandler.RunEventScrape")
	defer span.End()

	var request scrapeRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil || request.HotelName == "" {
		http.Error(writer, errors.InvalidRequestFormatError, http.StatusBadRequest)
		return
	}
	if request.Radius == "" {
		request.Radius = "10"
	}

	output, err := handler.scraper.RunEventScrape(ctx, request.HotelName, request.Radius)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadGateway)
		return
	}

	jsonResponse(map[string]string{"output": output}, writer)
}

func jsonResponse(object interface{}, writer http.ResponseWriter) {
	resp, err := json.Marshal(object)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}
	writer.Write(resp)
}

func ExtractTraceInfoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
