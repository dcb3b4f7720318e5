package application

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pricing_service/domain"
	"pricing_service/errors"
	"pricing_service/pricing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// defaultWriteTimeout bounds every record store write so a hung persistence
// call cannot leave a record in an ambiguous state forever. After a timeout
// the caller must re-fetch the record instead of assuming the write failed.
const defaultWriteTimeout = 5 * time.Second

type PricingService struct {
	prices       domain.RoomPriceStore
	events       domain.EventStore
	locks        domain.ApplyLockCache
	tracer       trace.Tracer
	logger       *logrus.Logger
	writeTimeout time.Duration
}

func NewPricingService(prices domain.RoomPriceStore, events domain.EventStore, locks domain.ApplyLockCache, tracer trace.Tracer, logger *logrus.Logger) *PricingService {
	return &PricingService{
		prices:       prices,
		events:       events,
		locks:        locks,
		tracer:       tracer,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
	}
}

// BuildDayViews joins the owner's room prices and events into one view per
// date, for `days` consecutive dates starting at `from`. Records or events
// whose dates cannot be parsed are skipped one by one, never aborting the
// whole range.
func (service *PricingService) BuildDayViews(ctx context.Context, ownerID string, from time.Time, days int) ([]*domain.DayView, error) {
	ctx, span := service.tracer.Start(ctx, "PricingService.BuildDayViews")
	defer span.End()

	service.logger.Infoln("PricingService.BuildDayViews : BuildDayViews service reached")

	records, err := service.prices.GetAllByOwner(ctx, ownerID)
	if err != nil {
		span.SetStatus(codes.Error, "Error fetching room prices")
		return nil, &errors.PersistenceError{Op: "GetAllByOwner", Err: err}
	}

	events, err := service.events.GetAllByOwner(ctx, ownerID)
	if err != nil {
		span.SetStatus(codes.Error, "Error fetching events")
		return nil, &errors.PersistenceError{Op: "GetAllByOwner", Err: err}
	}

	recordsByDate := make(map[string][]*domain.RoomPrice)
	var overallSum float64
	var overallCount int
	for _, record := range records {
		date, err := pricing.CanonicalDate(record.CheckinDate)
		if err != nil {
			log.Printf("skipping room price %s: %s", record.ID.Hex(), err)
			continue
		}
		recordsByDate[date] = append(recordsByDate[date], record)
		if pricing.ValidPrice(record.Price) {
			overallSum += record.Price
			overallCount++
		}
	}

	var overallAverage float64
	if overallCount > 0 {
		overallAverage = overallSum / float64(overallCount)
	}

	views := make([]*domain.DayView, 0, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format(pricing.DateLayout)
		view := &domain.DayView{
			Date:   date,
			Prices: recordsByDate[date],
		}

		var sum float64
		var count int
		for _, record := range view.Prices {
			if pricing.ValidPrice(record.Price) {
				sum += record.Price
				count++
			}
		}
		if count > 0 {
			view.HasData = true
			view.AveragePrice = sum / float64(count)
		}

		if view.HasData && overallAverage > 0 {
			view.ColorIntensity = clamp((view.AveragePrice-overallAverage)/overallAverage/0.5, -1, 1)
		}

		view.Event = matchEvent(events, date)
		if view.Event != nil {
			score, err := pricing.ImpactScore(view.Event.Date)
			if err != nil {
				// Matched by raw string equality, so the canonical day date
				// still scores it.
				score, _ = pricing.ImpactScore(date)
			}
			view.ImpactScore = score
			if view.HasData {
				view.Recommendation = pricing.Recommend(score, view.AveragePrice)
			}
		}

		views = append(views, view)
	}

	return views, nil
}

// matchEvent finds the event for a canonical date. Events whose dates fail
// to normalize fall back to raw string comparison instead of being dropped.
// Ties on the same date go to the lowest event id, so the pick is stable no
// matter what order the store returned them in.
func matchEvent(events []*domain.Event, date string) *domain.Event {
	var matched *domain.Event
	for _, event := range events {
		eventDate, err := pricing.CanonicalDate(event.Date)
		if err != nil {
			eventDate = event.Date
		}
		if eventDate != date {
			continue
		}
		if matched == nil || event.ID.Hex() < matched.ID.Hex() {
			matched = event
		}
	}
	return matched
}

// ApplyOne commits a recommended price to a single record. The record moves
// Pending -> Applied exactly once: an already-applied record and a
// zero-effect price are both reported as skipped without touching the
// store. The in-flight lock keeps a concurrent bulk apply off this record.
func (service *PricingService) ApplyOne(ctx context.Context, recordID string, newPrice float64) (*domain.ApplyOutcome, error) {
	ctx, span := service.tracer.Start(ctx, "PricingService.ApplyOne")
	defer span.End()

	service.logger.Infoln("PricingService.ApplyOne : ApplyOne service reached")

	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return nil, fmt.Errorf(errors.InvalidRequestFormatError)
	}

	if !pricing.ValidPrice(newPrice) {
		return nil, &errors.InvalidPriceError{Value: fmt.Sprintf("%v", newPrice)}
	}

	acquired, err := service.locks.Acquire(ctx, recordID)
	if err != nil {
		span.SetStatus(codes.Error, "Error acquiring apply lock")
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf(errors.RecordBusyError)
	}
	defer func() {
		if err := service.locks.Release(ctx, recordID); err != nil {
			log.Printf("releasing apply lock for %s: %s", recordID, err)
		}
	}()

	record, err := service.prices.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "Error fetching record")
		return nil, &errors.PersistenceError{Op: "GetByID", Err: err}
	}
	if record == nil {
		return nil, fmt.Errorf(errors.RecordNotFoundError)
	}

	return service.applyRecord(ctx, record, newPrice), nil
}

// ApplyBulk commits the date's recommendation to every still-pending record
// with that check-in date. Writes are issued concurrently and each record
// gets its own outcome, so a partially failed batch can be retried and only
// the failed subset is written again.
func (service *PricingService) ApplyBulk(ctx context.Context, ownerID string, date string) ([]*domain.ApplyOutcome, error) {
	ctx, span := service.tracer.Start(ctx, "PricingService.ApplyBulk")
	defer span.End()

	service.logger.Infoln("PricingService.ApplyBulk : ApplyBulk service reached")

	canonical, err := pricing.CanonicalDate(date)
	if err != nil {
		return nil, err
	}

	records, err := service.prices.GetByDate(ctx, ownerID, canonical)
	if err != nil {
		span.SetStatus(codes.Error, "Error fetching records for date")
		return nil, &errors.PersistenceError{Op: "GetByDate", Err: err}
	}

	events, err := service.events.GetAllByOwner(ctx, ownerID)
	if err != nil {
		span.SetStatus(codes.Error, "Error fetching events")
		return nil, &errors.PersistenceError{Op: "GetAllByOwner", Err: err}
	}

	recommendation := service.recommendForDate(records, matchEvent(events, canonical), canonical)
	if recommendation == nil {
		return nil, fmt.Errorf(errors.NoRecommendationError)
	}

	outcomes := make([]*domain.ApplyOutcome, len(records))
	var wg sync.WaitGroup
	for i, record := range records {
		// Invalid-price records never take part in a recommendation, so
		// they stay untouched and pending.
		if !pricing.ValidPrice(record.Price) {
			outcomes[i] = &domain.ApplyOutcome{
				RecordID: record.ID.Hex(),
				Skipped:  true,
				Error:    (&errors.InvalidPriceError{Value: fmt.Sprintf("%v", record.Price)}).Error(),
			}
			continue
		}
		wg.Add(1)
		go func(i int, record *domain.RoomPrice) {
			defer wg.Done()
			outcomes[i] = service.applyLocked(ctx, record, pricing.AdjustedPrice(record.Price, recommendation.Increase))
		}(i, record)
	}
	wg.Wait()

	return outcomes, nil
}

// recommendForDate recomputes the day's recommendation from the date's
// records and event, the same numbers BuildDayViews would show. No event or
// no valid prices means no recommendation, so nothing gets applied.
func (service *PricingService) recommendForDate(records []*domain.RoomPrice, event *domain.Event, date string) *domain.Recommendation {
	if event == nil {
		return nil
	}

	var sum float64
	var count int
	for _, record := range records {
		if pricing.ValidPrice(record.Price) {
			sum += record.Price
			count++
		}
	}
	if count == 0 {
		return nil
	}

	score, err := pricing.ImpactScore(event.Date)
	if err != nil {
		score, err = pricing.ImpactScore(date)
		if err != nil {
			return nil
		}
	}

	return pricing.Recommend(score, sum/float64(count))
}

func (service *PricingService) applyLocked(ctx context.Context, record *domain.RoomPrice, newPrice float64) *domain.ApplyOutcome {
	recordID := record.ID.Hex()

	acquired, err := service.locks.Acquire(ctx, recordID)
	if err != nil {
		return &domain.ApplyOutcome{RecordID: recordID, Error: err.Error()}
	}
	if !acquired {
		return &domain.ApplyOutcome{RecordID: recordID, Error: errors.RecordBusyError}
	}
	defer func() {
		if err := service.locks.Release(ctx, recordID); err != nil {
			log.Printf("releasing apply lock for %s: %s", recordID, err)
		}
	}()

	return service.applyRecord(ctx, record, newPrice)
}

// applyRecord does the single Pending -> Applied transition. The in-memory
// record is only mutated after the store write succeeds; a failed write
// leaves the record Pending for retry.
func (service *PricingService) applyRecord(ctx context.Context, record *domain.RoomPrice, newPrice float64) *domain.ApplyOutcome {
	outcome := &domain.ApplyOutcome{RecordID: record.ID.Hex()}

	if record.Applied {
		outcome.Skipped = true
		outcome.Applied = true
		return outcome
	}
	if newPrice == record.Price {
		outcome.Skipped = true
		return outcome
	}

	writeCtx, cancel := context.WithTimeout(ctx, service.writeTimeout)
	defer cancel()

	err := service.prices.UpdatePriceApplied(writeCtx, record.ID, newPrice)
	if err != nil {
		service.logger.Errorln("PricingService.applyRecord : Update price error")
		persistErr := &errors.PersistenceError{Op: "UpdatePriceApplied", Err: err}
		outcome.Error = persistErr.Error()
		return outcome
	}

	record.Price = newPrice
	record.Applied = true
	outcome.Applied = true
	outcome.NewPrice = newPrice
	return outcome
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
