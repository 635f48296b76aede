package processor

import (
	"fmt"
	"sort"
	"strings"

	"entsoeflow/models"
)

// Policy decides which item survives when several map to the same instant.
type Policy string

const (
	PolicyLast  Policy = "last"
	PolicyFirst Policy = "first"
	PolicyMean  Policy = "mean"
)

// ParsePolicy accepts last, first or mean (case-insensitive). Empty input
// yields PolicyLast.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyLast, nil
	case PolicyLast, PolicyFirst, PolicyMean:
		return p, nil
	}
	return "", fmt.Errorf("unknown dedup policy %q", s)
}

func meanOf(values []*float64) *float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// Coalesce merges items sharing a timestamp and returns one item per instant,
// sorted ascending. Buckets are keyed on the instant itself, so the two
// occurrences of a repeated wall-clock hour on a DST change stay distinct.
func Coalesce(items []models.SeriesItem, policy Policy) []models.SeriesItem {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int64]int, len(items))
	var buckets [][]models.SeriesItem
	for _, it := range items {
		key := it.Timestamp.UnixNano()
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], it)
	}

	merged := make([]models.SeriesItem, 0, len(buckets))
	for _, arr := range buckets {
		switch policy {
		case PolicyFirst:
			merged = append(merged, arr[0])
		case PolicyMean:
			prices := make([]*float64, 0, len(arr))
			qtys := make([]*float64, 0, len(arr))
			for _, it := range arr {
				prices = append(prices, it.Price)
				qtys = append(qtys, it.Quantity)
			}
			base := arr[len(arr)-1]
			base.Price = meanOf(prices)
			base.Quantity = meanOf(qtys)
			merged = append(merged, base)
		default:
			merged = append(merged, arr[len(arr)-1])
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

func groupTag(it models.SeriesItem) string {
	switch {
	case it.PsrType != "":
		return it.PsrType
	case it.ProductionType != "":
		return it.ProductionType
	}
	return "ALL"
}

func generationKey(it models.SeriesItem) string {
	return fmt.Sprintf("%d|%s", it.Timestamp.UnixNano(), groupTag(it))
}

// CoalesceGeneration deduplicates generation items on (instant, PSR type or
// production type), keeping the last occurrence. Output is ordered by PSR
// type, production group, then timestamp.
func CoalesceGeneration(items []models.SeriesItem) []models.SeriesItem {
	if len(items) == 0 {
		return nil
	}
	index := make(map[string]int, len(items))
	var merged []models.SeriesItem
	for _, it := range items {
		key := generationKey(it)
		if i, ok := index[key]; ok {
			merged[i] = it
			continue
		}
		index[key] = len(merged)
		merged = append(merged, it)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].PsrType != merged[j].PsrType {
			return merged[i].PsrType < merged[j].PsrType
		}
		if gi, gj := groupTag(merged[i]), groupTag(merged[j]); gi != gj {
			return gi < gj
		}
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}
