package models

import "time"

// SlotView is a single slot inside a time block or avoid slot.
type SlotView struct {
	Time   string  `json:"time"`
	Price  float64 `json:"price"`
	IsPast bool    `json:"is_past"`
}

// TimeBlock is a ranked group of cheap slots.
type TimeBlock struct {
	Rank            int        `json:"rank"`
	RankIcon        string     `json:"rank_icon"`
	TimeRange       string     `json:"time_range"`
	DurationMinutes int        `json:"duration_minutes"`
	ActualSlotCount int        `json:"actual_slot_count"`
	AvgPrice        float64    `json:"avg_price"`
	MinPrice        float64    `json:"min_price"`
	MaxPrice        float64    `json:"max_price"`
	PriceVariance   float64    `json:"price_variance"`
	PriceStdDev     *float64   `json:"price_std_dev,omitempty"`
	IsBest          bool       `json:"is_best"`
	IsFuture        bool       `json:"is_future"`
	IndividualSlots []SlotView `json:"individual_slots"`
}

// AvoidSlot is the most expensive hour-equivalent window of the day.
type AvoidSlot struct {
	TimeRange       string     `json:"time_range"`
	DurationMinutes int        `json:"duration_minutes"`
	AvgPrice        float64    `json:"avg_price"`
	MinPrice        float64    `json:"min_price"`
	MaxPrice        float64    `json:"max_price"`
	PriceVariance   float64    `json:"price_variance"`
	IsFuture        bool       `json:"is_future"`
	IndividualSlots []SlotView `json:"individual_slots"`
}

type FallbackInfo struct {
	Applied          bool    `json:"applied"`
	OriginalPriceGap float64 `json:"original_price_gap"`
	AdjustedPriceGap float64 `json:"adjusted_price_gap"`
	Reason           string  `json:"reason"`
}

// DayReport is the ranked block view of one day.
type DayReport struct {
	Date              string        `json:"date"`
	AverageCtPerKWh   float64       `json:"average_ct_per_kwh"`
	TimeBlocks        []TimeBlock   `json:"time_blocks"`
	AvoidSlot         *AvoidSlot    `json:"avoid_slot"`
	FutureBlocksCount int           `json:"future_blocks_count"`
	TotalBlocksCount  int           `json:"total_blocks_count"`
	ResolutionMinutes int           `json:"resolution_minutes"`
	FallbackInfo      *FallbackInfo `json:"fallback_info,omitempty"`
}

// CheapHour is one entry of the basic cheapest-hours list.
type CheapHour struct {
	Time          string  `json:"time"`
	TimeRange     string  `json:"time_range"`
	PriceCtPerKWh float64 `json:"price_ct_per_kwh"`
	IsPast        bool    `json:"is_past"`
	IsFuture      bool    `json:"is_future"`
	Position      int     `json:"position"`
}

type CheapStatistics struct {
	AvgPriceCtPerKWh    float64 `json:"avg_price_ct_per_kwh"`
	MinPriceCtPerKWh    float64 `json:"min_price_ct_per_kwh"`
	MaxPriceCtPerKWh    float64 `json:"max_price_ct_per_kwh"`
	PriceRangeCtPerKWh  float64 `json:"price_range_ct_per_kwh"`
	DayAverageCtPerKWh  float64 `json:"day_average_ct_per_kwh"`
	SavingsVsDayAverage float64 `json:"savings_vs_day_avg"`
}

// CheapestHours is the unranked "N cheapest slots" result.
type CheapestHours struct {
	ResolutionMinutes int             `json:"resolution_minutes"`
	Hours             []CheapHour     `json:"cheapest_hours"`
	Statistics        CheapStatistics `json:"statistics"`
	FutureHoursCount  int             `json:"future_hours_count"`
}

type PlanThresholds struct {
	PriceP30CtPerKWh *float64 `json:"price_p30_ct_per_kwh"`
	LoadP80MW        *float64 `json:"load_p80_mw"`
}

// AutomationPlan lists the slot positions worth shifting consumption to.
type AutomationPlan struct {
	Date                      string         `json:"date"`
	Zone                      string         `json:"zone"`
	CheapestHoursPositions    []int          `json:"cheapest_hours_positions"`
	RecommendedHoursPositions []int          `json:"recommended_hours_positions"`
	Thresholds                PlanThresholds `json:"thresholds"`
}

// ZoneReport is a refreshed day report pushed to live subscribers.
type ZoneReport struct {
	Zone        string    `json:"zone"`
	Date        string    `json:"date"`
	Label       string    `json:"label"`
	GeneratedAt time.Time `json:"generated_at"`
	Report      DayReport `json:"report"`
}
