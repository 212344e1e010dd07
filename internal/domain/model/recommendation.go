package model

// Recommendation is a product suggestion attached to a bot reply.
type Recommendation struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url"`
	Reason   string  `json:"reason"`
}

// NewRecommendation projects a catalog product into a recommendation.
func NewRecommendation(p Product, reason string) Recommendation {
	return Recommendation{
		ID:       p.ID,
		Title:    p.Title,
		Price:    p.PriceFloat(),
		ImageURL: p.ImageURL,
		Reason:   reason,
	}
}
