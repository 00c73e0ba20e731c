package models

// ItemStats summarizes the price distribution of one item after outlier
// filtering. SampleSize is the unfiltered count (used for confidence
// scoring); the central-tendency numbers come from the filtered set.
type ItemStats struct {
	Item         ItemKey `json:"item"`
	SampleSize   int     `json:"sample_size"`
	FilteredSize int     `json:"filtered_size"`
	Median       float64 `json:"median"`
	Mean         float64 `json:"mean"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	StdDev       float64 `json:"stddev"`
	Volatility   float64 `json:"volatility"` // stdev/mean*100, 0 when mean is 0
}

// Finding is a transient undervaluation record: a stored listing priced
// strictly below the item's median-derived threshold. Never persisted.
type Finding struct {
	ID          string  `json:"id"`
	Item        ItemKey `json:"item"`
	TS          int64   `json:"ts"`
	Price       float64 `json:"price"`
	Count       *int64  `json:"count"`
	TimeLeft    *int64  `json:"time_left"`
	SellerName  *string `json:"seller"`
	Median      float64 `json:"median"`
	Threshold   float64 `json:"threshold"`
	DiscountPct int     `json:"discount_pct"` // round((1 - price/median)*100)
	Profit      float64 `json:"profit"`       // median - price
}

// Recommendation is a transient ranked purchase candidate. Priority is the
// weighted sum 0.4*discount + 0.3*stability + 0.3*confidence; anything
// below 30 is discarded before ranking.
type Recommendation struct {
	ID              string  `json:"id"`
	Item            ItemKey `json:"item"`
	TS              int64   `json:"ts"`
	Price           float64 `json:"price"`
	SellerName      *string `json:"seller"`
	Median          float64 `json:"median"`
	DiscountPct     float64 `json:"discount_pct"`
	Profit          float64 `json:"profit"`
	Volatility      float64 `json:"volatility"`
	SampleSize      int     `json:"sample_size"`
	DiscountScore   float64 `json:"discount_score"`
	StabilityScore  float64 `json:"stability_score"`
	ConfidenceScore float64 `json:"confidence_score"`
	Priority        float64 `json:"priority"`
}
