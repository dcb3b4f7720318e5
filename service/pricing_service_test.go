package application

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/trace"

	"pricing_service/domain"
	"pricing_service/errors"
	"pricing_service/pricing"
)

type fakeRoomPriceStore struct {
	mu      sync.Mutex
	records map[string]*domain.RoomPrice
	failing map[string]bool
	stalled map[string]bool
	writes  map[string]int
}

func newFakeRoomPriceStore(records ...*domain.RoomPrice) *fakeRoomPriceStore {
	store := &fakeRoomPriceStore{
		records: make(map[string]*domain.RoomPrice),
		failing: make(map[string]bool),
		stalled: make(map[string]bool),
		writes:  make(map[string]int),
	}
	for _, record := range records {
		store.records[record.ID.Hex()] = record
	}
	return store
}

func (store *fakeRoomPriceStore) GetAllByOwner(ctx context.Context, ownerID string) ([]*domain.RoomPrice, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var out []*domain.RoomPrice
	for _, record := range store.records {
		if record.HotelID == ownerID {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (store *fakeRoomPriceStore) GetByDate(ctx context.Context, ownerID string, date string) ([]*domain.RoomPrice, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var out []*domain.RoomPrice
	for _, record := range store.records {
		if record.HotelID == ownerID && record.CheckinDate == date {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (store *fakeRoomPriceStore) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.RoomPrice, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	record, ok := store.records[id.Hex()]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (store *fakeRoomPriceStore) Insert(ctx context.Context, price *domain.RoomPrice) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	price.ID = primitive.NewObjectID()
	copied := *price
	store.records[price.ID.Hex()] = &copied
	return nil
}

func (store *fakeRoomPriceStore) UpdatePriceApplied(ctx context.Context, id primitive.ObjectID, price float64) error {
	store.mu.Lock()
	store.writes[id.Hex()]++
	stalled := store.stalled[id.Hex()]
	failing := store.failing[id.Hex()]
	store.mu.Unlock()

	// A stalled write hangs until the caller's deadline fires.
	if stalled {
		<-ctx.Done()
		return ctx.Err()
	}
	if failing {
		return fmt.Errorf("write refused")
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	record, ok := store.records[id.Hex()]
	if !ok {
		return fmt.Errorf("record not found")
	}
	record.Price = price
	record.Applied = true
	return nil
}

func (store *fakeRoomPriceStore) writeCount(id string) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.writes[id]
}

func (store *fakeRoomPriceStore) record(id string) domain.RoomPrice {
	store.mu.Lock()
	defer store.mu.Unlock()
	return *store.records[id]
}

type fakeEventStore struct {
	events []*domain.Event
}

func (store *fakeEventStore) GetAllByOwner(ctx context.Context, ownerID string) ([]*domain.Event, error) {
	return store.events, nil
}

func (store *fakeEventStore) Insert(ctx context.Context, event *domain.Event) error {
	store.events = append(store.events, event)
	return nil
}

type fakeLockCache struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLockCache() *fakeLockCache {
	return &fakeLockCache{held: make(map[string]bool)}
}

func (cache *fakeLockCache) Acquire(ctx context.Context, recordID string) (bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cache.held[recordID] {
		return false, nil
	}
	cache.held[recordID] = true
	return true, nil
}

func (cache *fakeLockCache) Release(ctx context.Context, recordID string) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	delete(cache.held, recordID)
	return nil
}

func testService(prices *fakeRoomPriceStore, events *fakeEventStore, locks *fakeLockCache) *PricingService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return NewPricingService(prices, events, locks, tracer, logger)
}

func oid(suffix byte) primitive.ObjectID {
	var id primitive.ObjectID
	for i := range id {
		id[i] = suffix
	}
	return id
}

func roomPrice(id primitive.ObjectID, date string, price float64, applied bool) *domain.RoomPrice {
	return &domain.RoomPrice{
		ID:          id,
		HotelID:     "owner-1",
		RoomType:    "Doble Estándar",
		CheckinDate: date,
		Price:       price,
		Applied:     applied,
	}
}

func event(id primitive.ObjectID, date string) *domain.Event {
	return &domain.Event{
		ID:      id,
		OwnerID: "owner-1",
		Name:    "Concierto",
		Date:    date,
		Venue:   "Centro",
	}
}

func TestApplyOneIsIdempotent(t *testing.T) {
	record := roomPrice(oid(1), "2026-01-10", 1000, false)
	prices := newFakeRoomPriceStore(record)
	service := testService(prices, &fakeEventStore{}, newFakeLockCache())

	first, err := service.ApplyOne(context.Background(), record.ID.Hex(), 1300)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if !first.Applied || first.Skipped {
		t.Fatalf("first apply outcome = %+v, want applied", first)
	}

	second, err := service.ApplyOne(context.Background(), record.ID.Hex(), 1300)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !second.Skipped {
		t.Fatalf("second apply outcome = %+v, want skipped", second)
	}

	if got := prices.writeCount(record.ID.Hex()); got != 1 {
		t.Errorf("store writes = %d, want 1", got)
	}
	stored := prices.record(record.ID.Hex())
	if stored.Price != 1300 || !stored.Applied {
		t.Errorf("stored record = %+v, want price 1300 applied", stored)
	}
}

func TestApplyOneSkipsZeroEffectAdjustment(t *testing.T) {
	record := roomPrice(oid(2), "2026-01-10", 1000, false)
	prices := newFakeRoomPriceStore(record)
	service := testService(prices, &fakeEventStore{}, newFakeLockCache())

	outcome, err := service.ApplyOne(context.Background(), record.ID.Hex(), 1000)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !outcome.Skipped || outcome.Applied {
		t.Fatalf("outcome = %+v, want skipped and not applied", outcome)
	}
	if got := prices.writeCount(record.ID.Hex()); got != 0 {
		t.Errorf("store writes = %d, want 0", got)
	}
}

func TestApplyOneLeavesRecordPendingOnWriteFailure(t *testing.T) {
	record := roomPrice(oid(3), "2026-01-10", 1000, false)
	prices := newFakeRoomPriceStore(record)
	prices.failing[record.ID.Hex()] = true
	service := testService(prices, &fakeEventStore{}, newFakeLockCache())

	outcome, err := service.ApplyOne(context.Background(), record.ID.Hex(), 1300)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Error == "" {
		t.Fatal("expected a per-record error")
	}

	stored := prices.record(record.ID.Hex())
	if stored.Applied || stored.Price != 1000 {
		t.Errorf("stored record = %+v, want untouched pending record", stored)
	}
}

func TestApplyOneRejectsBusyRecord(t *testing.T) {
	record := roomPrice(oid(4), "2026-01-10", 1000, false)
	prices := newFakeRoomPriceStore(record)
	locks := newFakeLockCache()
	if _, err := locks.Acquire(context.Background(), record.ID.Hex()); err != nil {
		t.Fatal(err)
	}
	service := testService(prices, &fakeEventStore{}, locks)

	_, err := service.ApplyOne(context.Background(), record.ID.Hex(), 1300)
	if err == nil {
		t.Fatal("expected busy error")
	}
}

func TestApplyBulkSkipsAlreadyAppliedRecords(t *testing.T) {
	// Saturday, so the impact score is 100 and the tier percentage 30%.
	date := "2026-01-10"
	pending1 := roomPrice(oid(5), date, 1000, false)
	pending2 := roomPrice(oid(6), date, 2000, false)
	applied1 := roomPrice(oid(7), date, 1300, true)
	applied2 := roomPrice(oid(8), date, 2600, true)
	applied3 := roomPrice(oid(9), date, 3900, true)

	prices := newFakeRoomPriceStore(pending1, pending2, applied1, applied2, applied3)
	events := &fakeEventStore{events: []*domain.Event{event(oid(10), date)}}
	service := testService(prices, events, newFakeLockCache())

	outcomes, err := service.ApplyBulk(context.Background(), "owner-1", date)
	if err != nil {
		t.Fatalf("bulk apply: %v", err)
	}
	if len(outcomes) != 5 {
		t.Fatalf("outcomes = %d, want 5", len(outcomes))
	}

	var written int
	for _, id := range []primitive.ObjectID{pending1.ID, pending2.ID, applied1.ID, applied2.ID, applied3.ID} {
		written += prices.writeCount(id.Hex())
	}
	if written != 2 {
		t.Errorf("store writes = %d, want only the 2 pending records", written)
	}

	for _, id := range []primitive.ObjectID{pending1.ID, pending2.ID} {
		stored := prices.record(id.Hex())
		if !stored.Applied {
			t.Errorf("record %s still pending after bulk apply", id.Hex())
		}
	}
}

func TestApplyBulkPartialFailureIsolation(t *testing.T) {
	date := "2026-01-10"
	good1 := roomPrice(oid(11), date, 1000, false)
	bad := roomPrice(oid(12), date, 1000, false)
	good2 := roomPrice(oid(13), date, 1000, false)

	prices := newFakeRoomPriceStore(good1, bad, good2)
	prices.failing[bad.ID.Hex()] = true
	events := &fakeEventStore{events: []*domain.Event{event(oid(14), date)}}
	service := testService(prices, events, newFakeLockCache())

	outcomes, err := service.ApplyBulk(context.Background(), "owner-1", date)
	if err != nil {
		t.Fatalf("bulk apply: %v", err)
	}

	byID := make(map[string]*domain.ApplyOutcome)
	for _, outcome := range outcomes {
		byID[outcome.RecordID] = outcome
	}
	if byID[bad.ID.Hex()].Error == "" {
		t.Error("failed record should carry an error")
	}
	if !byID[good1.ID.Hex()].Applied || !byID[good2.ID.Hex()].Applied {
		t.Error("healthy records should be applied")
	}
	if prices.record(bad.ID.Hex()).Applied {
		t.Error("failed record must stay pending")
	}

	// Retry after the store recovers: only the failed record is written.
	prices.failing = map[string]bool{}
	goodWrites := prices.writeCount(good1.ID.Hex()) + prices.writeCount(good2.ID.Hex())

	if _, err := service.ApplyBulk(context.Background(), "owner-1", date); err != nil {
		t.Fatalf("retry bulk apply: %v", err)
	}

	if got := prices.writeCount(good1.ID.Hex()) + prices.writeCount(good2.ID.Hex()); got != goodWrites {
		t.Errorf("retry rewrote already-applied records: writes %d -> %d", goodWrites, got)
	}
	if !prices.record(bad.ID.Hex()).Applied {
		t.Error("failed record should be applied after retry")
	}
}

func TestApplyOneRejectsNonPositivePrice(t *testing.T) {
	record := roomPrice(oid(28), "2026-01-10", 1000, false)
	prices := newFakeRoomPriceStore(record)
	service := testService(prices, &fakeEventStore{}, newFakeLockCache())

	for _, bad := range []float64{0, -250} {
		_, err := service.ApplyOne(context.Background(), record.ID.Hex(), bad)
		if err == nil {
			t.Fatalf("ApplyOne with price %v: expected error", bad)
		}
		if _, ok := err.(*errors.InvalidPriceError); !ok {
			t.Errorf("ApplyOne with price %v: expected InvalidPriceError, got %T", bad, err)
		}
	}

	if got := prices.writeCount(record.ID.Hex()); got != 0 {
		t.Errorf("store writes = %d, want 0", got)
	}
	stored := prices.record(record.ID.Hex())
	if stored.Applied || stored.Price != 1000 {
		t.Errorf("stored record = %+v, want untouched pending record", stored)
	}
}

func TestApplyOneLeavesRecordPendingOnWriteTimeout(t *testing.T) {
	record := roomPrice(oid(29), "2026-01-10", 1000, false)
	prices := newFakeRoomPriceStore(record)
	prices.stalled[record.ID.Hex()] = true
	service := testService(prices, &fakeEventStore{}, newFakeLockCache())
	service.writeTimeout = 10 * time.Millisecond

	outcome, err := service.ApplyOne(context.Background(), record.ID.Hex(), 1300)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Applied {
		t.Error("timed-out write must not be reported as applied")
	}
	if outcome.Error == "" {
		t.Fatal("expected a per-record error after the write deadline")
	}

	stored := prices.record(record.ID.Hex())
	if stored.Applied || stored.Price != 1000 {
		t.Errorf("stored record = %+v, want untouched pending record", stored)
	}
}

func TestApplyBulkSkipsInvalidPriceRecords(t *testing.T) {
	// Saturday event; the -5 record must neither shape the average nor be
	// adjusted itself.
	date := "2026-01-10"
	valid := roomPrice(oid(30), date, 1000, false)
	invalid := roomPrice(oid(31), date, -5, false)

	prices := newFakeRoomPriceStore(valid, invalid)
	events := &fakeEventStore{events: []*domain.Event{event(oid(32), date)}}
	service := testService(prices, events, newFakeLockCache())

	outcomes, err := service.ApplyBulk(context.Background(), "owner-1", date)
	if err != nil {
		t.Fatalf("bulk apply: %v", err)
	}

	byID := make(map[string]*domain.ApplyOutcome)
	for _, outcome := range outcomes {
		byID[outcome.RecordID] = outcome
	}

	bad := byID[invalid.ID.Hex()]
	if bad == nil || !bad.Skipped || bad.Applied {
		t.Fatalf("invalid-price outcome = %+v, want skipped", bad)
	}
	if bad.Error == "" {
		t.Error("invalid-price outcome should say why it was skipped")
	}
	if got := prices.writeCount(invalid.ID.Hex()); got != 0 {
		t.Errorf("invalid-price record writes = %d, want 0", got)
	}
	stored := prices.record(invalid.ID.Hex())
	if stored.Applied || stored.Price != -5 {
		t.Errorf("invalid-price record = %+v, want untouched pending record", stored)
	}

	// Average over valid prices only is 1000, so the 30% tier lands at 1300.
	good := prices.record(valid.ID.Hex())
	if !good.Applied || good.Price != 1300 {
		t.Errorf("valid record = %+v, want price 1300 applied", good)
	}
}

func TestApplyBulkWithoutEventAppliesNothing(t *testing.T) {
	date := "2026-01-10"
	record := roomPrice(oid(15), date, 1000, false)
	prices := newFakeRoomPriceStore(record)
	service := testService(prices, &fakeEventStore{}, newFakeLockCache())

	_, err := service.ApplyBulk(context.Background(), "owner-1", date)
	if err == nil {
		t.Fatal("expected no-recommendation error")
	}
	if got := prices.writeCount(record.ID.Hex()); got != 0 {
		t.Errorf("store writes = %d, want 0", got)
	}
}

func TestBuildDayViewsExcludesInvalidPrices(t *testing.T) {
	date := "2026-01-10"
	valid := roomPrice(oid(16), date, 1200, false)
	negative := roomPrice(oid(17), date, -5, false)
	zero := roomPrice(oid(18), date, 0, false)

	prices := newFakeRoomPriceStore(valid, negative, zero)
	service := testService(prices, &fakeEventStore{}, newFakeLockCache())

	from, _ := time.Parse(pricing.DateLayout, date)
	views, err := service.BuildDayViews(context.Background(), "owner-1", from, 1)
	if err != nil {
		t.Fatalf("build day views: %v", err)
	}

	view := views[0]
	if !view.HasData {
		t.Fatal("day with one valid price should have data")
	}
	if view.AveragePrice != 1200 {
		t.Errorf("average = %v, want 1200 (invalid prices excluded)", view.AveragePrice)
	}
}

func TestBuildDayViewsNoValidPricesMeansNoData(t *testing.T) {
	date := "2026-01-10"
	prices := newFakeRoomPriceStore(roomPrice(oid(19), date, -1, false))
	events := &fakeEventStore{events: []*domain.Event{event(oid(20), date)}}
	service := testService(prices, events, newFakeLockCache())

	from, _ := time.Parse(pricing.DateLayout, date)
	views, err := service.BuildDayViews(context.Background(), "owner-1", from, 1)
	if err != nil {
		t.Fatalf("build day views: %v", err)
	}

	view := views[0]
	if view.HasData {
		t.Error("day without valid prices should report no data, not a zero average")
	}
	if view.Recommendation != nil {
		t.Error("no valid prices, no recommendation")
	}
}

func TestBuildDayViewsSaturdayEventRecommendation(t *testing.T) {
	date := "2026-01-10" // Saturday
	prices := newFakeRoomPriceStore(
		roomPrice(oid(21), date, 800, false),
		roomPrice(oid(22), date, 1200, false),
	)
	events := &fakeEventStore{events: []*domain.Event{event(oid(23), date)}}
	service := testService(prices, events, newFakeLockCache())

	from, _ := time.Parse(pricing.DateLayout, date)
	views, err := service.BuildDayViews(context.Background(), "owner-1", from, 1)
	if err != nil {
		t.Fatalf("build day views: %v", err)
	}

	view := views[0]
	if view.ImpactScore != 100 {
		t.Errorf("impact score = %d, want 100", view.ImpactScore)
	}
	if view.Recommendation == nil {
		t.Fatal("expected a recommendation")
	}
	if view.Recommendation.Tier != domain.TierAlto {
		t.Errorf("tier = %q, want Alto", view.Recommendation.Tier)
	}
	if view.Recommendation.RecommendedPrice != 1300 {
		t.Errorf("recommended price = %v, want 1300", view.Recommendation.RecommendedPrice)
	}
}

func TestBuildDayViewsNoEventNoRecommendation(t *testing.T) {
	date := "2026-01-10"
	prices := newFakeRoomPriceStore(roomPrice(oid(24), date, 1000, false))
	service := testService(prices, &fakeEventStore{}, newFakeLockCache())

	from, _ := time.Parse(pricing.DateLayout, date)
	views, err := service.BuildDayViews(context.Background(), "owner-1", from, 1)
	if err != nil {
		t.Fatalf("build day views: %v", err)
	}

	view := views[0]
	if view.ImpactScore != 0 {
		t.Errorf("impact score = %d, want 0", view.ImpactScore)
	}
	if view.Recommendation != nil {
		t.Errorf("recommendation = %+v, want none at all", view.Recommendation)
	}
}

func TestBuildDayViewsPicksLowestEventIDOnTie(t *testing.T) {
	date := "2026-01-10"
	low := event(oid(1), date)
	high := event(oid(9), date)
	prices := newFakeRoomPriceStore(roomPrice(oid(25), date, 1000, false))
	// Deliberately out of order.
	events := &fakeEventStore{events: []*domain.Event{high, low}}
	service := testService(prices, events, newFakeLockCache())

	from, _ := time.Parse(pricing.DateLayout, date)
	views, err := service.BuildDayViews(context.Background(), "owner-1", from, 1)
	if err != nil {
		t.Fatalf("build day views: %v", err)
	}

	view := views[0]
	if view.Event == nil {
		t.Fatal("expected a matched event")
	}
	if view.Event.ID != low.ID {
		t.Errorf("matched event %s, want the lowest id %s", view.Event.ID.Hex(), low.ID.Hex())
	}
}

func TestBuildDayViewsKeepsUnparseableEventWithoutMatching(t *testing.T) {
	date := "2026-01-10"
	broken := &domain.Event{ID: oid(26), OwnerID: "owner-1", Name: "Feria", Date: "sábado 10", Venue: "Centro"}
	prices := newFakeRoomPriceStore(roomPrice(oid(27), date, 1000, false))
	events := &fakeEventStore{events: []*domain.Event{broken}}
	service := testService(prices, events, newFakeLockCache())

	from, _ := time.Parse(pricing.DateLayout, date)
	views, err := service.BuildDayViews(context.Background(), "owner-1", from, 1)
	if err != nil {
		t.Fatalf("build day views: %v", err)
	}

	if views[0].Event != nil {
		t.Errorf("unparseable event date matched day %s", date)
	}
	if views[0].Recommendation != nil {
		t.Error("no matched event, no recommendation")
	}
}
