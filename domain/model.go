package domain

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a market event scraped or entered by the operator. Field names
// mirror the events table (nombre/fecha/lugar/enlace).
type Event struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	OwnerID     string             `bson:"ownerId" json:"ownerId"`
	Name        string             `bson:"nombre" json:"nombre" validate:"required"`
	Date        string             `bson:"fecha" json:"fecha" validate:"required,dateOnly"`
	Venue       string             `bson:"lugar" json:"lugar" validate:"required"`
	Link        string             `bson:"enlace,omitempty" json:"enlace,omitempty"`
	Description string             `bson:"descripcion,omitempty" json:"descripcion,omitempty"`
}

// RoomPrice is one scraped room rate for one check-in date. Applied marks
// whether an event recommendation has already been committed to it.
type RoomPrice struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	HotelID     string             `bson:"hotelId" json:"hotelId"`
	HotelName   string             `bson:"hotelName" json:"hotelName"`
	RoomType    string             `bson:"roomType" json:"roomType" validate:"required"`
	CheckinDate string             `bson:"checkinDate" json:"checkinDate" validate:"required,dateOnly"`
	ScrapeDate  string             `bson:"scrapeDate" json:"scrapeDate"`
	Price       float64            `bson:"price" json:"price"`
	Applied     bool               `bson:"applied" json:"applied"`
}

type ImpactTier string

const (
	TierAlto      ImpactTier = "Alto"
	TierMedioAlto ImpactTier = "Medio-Alto"
	TierMedio     ImpactTier = "Medio"
	TierBajo      ImpactTier = "Bajo"
)

// Recommendation is derived per day, never persisted. Increase is the
// percentage shown to the operator, re-rounded from the absolute amount,
// and it is the value bulk apply works with.
type Recommendation struct {
	CurrentPrice     float64    `json:"currentPrice"`
	RecommendedPrice float64    `json:"recommendedPrice"`
	IncreaseAmount   float64    `json:"increaseAmount"`
	Increase         int        `json:"increase"`
	Tier             ImpactTier `json:"tier"`
}

// DayView joins the prices and the event of one calendar date.
type DayView struct {
	Date           string          `json:"date"`
	Prices         []*RoomPrice    `json:"prices"`
	AveragePrice   float64         `json:"averagePrice"`
	HasData        bool            `json:"hasData"`
	ColorIntensity float64         `json:"colorIntensity"`
	Event          *Event          `json:"event,omitempty"`
	ImpactScore    int             `json:"impactScore"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

// ApplyOutcome reports what happened to a single record during ApplyOne or
// ApplyBulk, so callers can retry just the failed subset.
type ApplyOutcome struct {
	RecordID string  `json:"recordId"`
	Applied  bool    `json:"applied"`
	Skipped  bool    `json:"skipped"`
	NewPrice float64 `json:"newPrice,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type Claims struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"userType"`
	ExpiresAt time.Time `json:"expires_at"`
}

var dateOnlyRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func dateOnlyField(fl validator.FieldLevel) bool {
	return dateOnlyRegex.MatchString(fl.Field().String())
}

func (event *Event) ValidateEvent() error {
	validate := validator.New()

	err := validate.RegisterValidation("dateOnly", dateOnlyField)
	if err != nil {
		return err
	}

	return validate.Struct(event)
}

func (price *RoomPrice) ValidateRoomPrice() error {
	validate := validator.New()

	err := validate.RegisterValidation("dateOnly", dateOnlyField)
	if err != nil {
		return err
	}

	return validate.Struct(price)
}
