package ingest

import (
	"io"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricing_service/domain"
	"pricing_service/pricing"
)

// ParseRateTable reads a scraped Booking.com room-rate page and extracts
// one RoomPrice per table row. Rows with malformed prices are logged and
// skipped; they never become zero-priced records.
func ParseRateTable(r io.Reader, hotelID, hotelName, checkinDate string) ([]*domain.RoomPrice, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	canonical, err := pricing.CanonicalDate(checkinDate)
	if err != nil {
		return nil, err
	}

	scrapeDate := time.Now().Format(pricing.DateLayout)

	var records []*domain.RoomPrice
	doc.Find("#hprt-table tr").Each(func(i int, row *goquery.Selection) {
		roomType := strings.TrimSpace(row.Find("th span.hprt-roomtype-icon-link").First().Text())
		rawPrice := strings.TrimSpace(row.Find("td span.prco-valign-middle-helper").First().Text())
		if roomType == "" || rawPrice == "" {
			return
		}

		price, err := pricing.NormalizePrice(rawPrice)
		if err != nil {
			log.Printf("skipping row %q: %s", roomType, err)
			return
		}

		records = append(records, &domain.RoomPrice{
			HotelID:     hotelID,
			HotelName:   hotelName,
			RoomType:    roomType,
			CheckinDate: canonical,
			ScrapeDate:  scrapeDate,
			Price:       price,
			Applied:     false,
		})
	})

	return records, nil
}
