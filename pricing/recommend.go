package pricing

import (
	"math"

	"pricing_service/domain"
)

// Recommend turns an impact score and the current price into a suggested
// increase. Returns nil when there is nothing to recommend (no event impact
// or no usable price) rather than a zero recommendation.
//
// Increase is re-derived by rounding the absolute amount against the price,
// so it can differ by a point from the tier percentage. Bulk apply works
// with this reported value, not the tier percentage.
func Recommend(impactScore int, currentPrice float64) *domain.Recommendation {
	if impactScore <= 0 || currentPrice <= 0 {
		return nil
	}

	var percentage float64
	var tier domain.ImpactTier
	switch {
	case impactScore >= 90:
		percentage = 0.30
		tier = domain.TierAlto
	case impactScore >= 60:
		percentage = 0.20
		tier = domain.TierMedioAlto
	case impactScore >= 40:
		percentage = 0.10
		tier = domain.TierMedio
	default:
		percentage = 0.05
		tier = domain.TierBajo
	}

	increaseAmount := math.Round(currentPrice * percentage)
	recommendedPrice := currentPrice + increaseAmount
	reported := int(math.Round(increaseAmount / currentPrice * 100))

	return &domain.Recommendation{
		CurrentPrice:     currentPrice,
		RecommendedPrice: recommendedPrice,
		IncreaseAmount:   increaseAmount,
		Increase:         reported,
		Tier:             tier,
	}
}

// AdjustedPrice applies a reported percentage increase to a single record
// price, rounded to a whole amount the same way the recommendation is.
func AdjustedPrice(price float64, increase int) float64 {
	return price + math.Round(price*float64(increase)/100)
}
