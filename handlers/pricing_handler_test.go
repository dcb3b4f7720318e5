package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestGetDayViewsRejectsOutOfRangeDays(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	handler := NewPricingHandler(nil, nil, tracer)

	for _, days := range []string{"0", "-3", "abc", "1000000000"} {
		req := httptest.NewRequest(http.MethodGet, "/dayViews?days="+days, nil)
		rec := httptest.NewRecorder()

		handler.GetDayViews(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("days=%s: status = %d, want 400", days, rec.Code)
		}
	}
}

func TestGetDayViewsRejectsMalformedFromDate(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	handler := NewPricingHandler(nil, nil, tracer)

	req := httptest.NewRequest(http.MethodGet, "/dayViews?from=10-01-2026", nil)
	rec := httptest.NewRecorder()

	handler.GetDayViews(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
