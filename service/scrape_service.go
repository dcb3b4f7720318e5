package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"

	"pricing_service/errors"
)

// ScrapeService triggers scrape jobs on the scraping backend. The backend
// drives a headless browser per job, so calls are slow and flaky; the
// circuit breaker keeps a dead backend from hanging every request.
type ScrapeService struct {
	address string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *logrus.Logger
}

func NewScrapeService(address string, client *http.Client, tracer trace.Tracer, logger *logrus.Logger) *ScrapeService {
	return &ScrapeService{
		address: address,
		client:  client,
		cb:      CircuitBreaker("scrapeService"),
		tracer:  tracer,
		logger:  logger,
	}
}

// RunOwnHotelScrape asks the backend to re-scrape the operator's own hotel
// rates, which land in the record store as fresh pending RoomPrice rows.
func (service *ScrapeService) RunOwnHotelScrape(ctx context.Context, userID string, hotelName string) (string, error) {
	ctx, span := service.tracer.Start(ctx, "ScrapeService.RunOwnHotelScrape")
	defer span.End()

	service.logger.Infoln("ScrapeService.RunOwnHotelScrape : RunOwnHotelScrape service reached")

	return service.post(ctx, "/run-scrape-hotel-propio", map[string]string{
		"user_id":    userID,
		"hotel_name": hotelName,
	})
}

// RunCompetitorScrape asks the backend to re-scrape competitor hotel rates
// for the operator's market.
func (service *ScrapeService) RunCompetitorScrape(ctx context.Context, userID string) (string, error) {
	ctx, span := service.tracer.Start(ctx, "ScrapeService.RunCompetitorScrape")
	defer span.End()

	service.logger.Infoln("ScrapeService.RunCompetitorScrape : RunCompetitorScrape service reached")

	return service.post(ctx, "/run-scrape-hotels", map[string]string{
		"user_id": userID,
	})
}

// RunAllScrapes triggers the backend's combined run: own hotel, competitors
// and nearby events in one job.
func (service *ScrapeService) RunAllScrapes(ctx context.Context, userID string, hotelName string) (string, error) {
	ctx, span := service.tracer.Start(ctx, "ScrapeService.RunAllScrapes")
	defer span.End()

	service.logger.Infoln("ScrapeService.RunAllScrapes : RunAllScrapes service reached")

	return service.post(ctx, "/run-all-scrapings", map[string]string{
		"user_id":    userID,
		"hotel_name": hotelName,
	})
}

// RunEventScrape asks the backend to refresh nearby events around the hotel.
func (service *ScrapeService) RunEventScrape(ctx context.Context, hotelName string, radius string) (string, error) {
	ctx, span := service.tracer.Start(ctx, "ScrapeService.RunEventScrape")
	defer span.End()

	service.logger.Infoln("ScrapeService.RunEventScrape : RunEventScrape service reached")

	return service.post(ctx, "/run-scrapeo-geo", map[string]string{
		"hotel_name": hotelName,
		"radius":     radius,
	})
}

func (service *ScrapeService) post(ctx context.Context, path string, payload map[string]string) (string, error) {
	// Job id ties backend log lines to ours, the backend just echoes it.
	jobID := uuid.New().String()
	payload["job_id"] = jobID
	service.logger.WithField("job_id", jobID).Infof("ScrapeService.post : triggering %s", path)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	result, err := service.cb.Execute(func() (interface{}, error) {
		endpoint := fmt.Sprintf("http://%s%s", service.address, path)
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		request.Header.Set("Content-Type", "application/json")

		response, err := service.client.Do(request)
		if err != nil {
			return nil, err
		}
		defer response.Body.Close()

		responseBody, err := io.ReadAll(response.Body)
		if err != nil {
			return nil, err
		}

		if response.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("scraper returned %d: %s", response.StatusCode, string(responseBody))
		}

		return string(responseBody), nil
	})
	if err != nil {
		service.logger.Errorln("ScrapeService.post : Scraper backend call failed")
		log.Printf("scraper call %s failed: %s", path, err)
		return "", fmt.Errorf(errors.ScraperUnavailableError)
	}

	return result.(string), nil
}

func CircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(
		gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			Interval:    0,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 2
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Printf("CB '%s' changed from '%s' to '%s'\n", name, from, to)
			},
		},
	)
}
