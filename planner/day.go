package planner

import (
	"fmt"
	"time"

	"entsoeflow/logger"
	"entsoeflow/models"
	"entsoeflow/processor"
)

// BestBlockFactor marks a block as best when its average is below this share
// of the day average.
const BestBlockFactor = 0.85

// Options tunes the block view.
type Options struct {
	MaxBlocks         int
	MaxTimeGapMinutes int
	MaxPriceGap       float64
}

func DefaultOptions() Options {
	return Options{MaxBlocks: 6, MaxTimeGapMinutes: 60, MaxPriceGap: 1.5}
}

// DayInput is what ProcessDay ranks: the cheap subset to group, the full day
// for the avoid window and the day average in ct/kWh.
type DayInput struct {
	Cheap           []models.PriceRow
	All             []models.PriceRow
	AverageCtPerKWh float64
}

func slotViews(slots []models.PriceRow, date string, res int, f Frame) []models.SlotView {
	out := make([]models.SlotView, len(slots))
	for i, s := range slots {
		out[i] = models.SlotView{
			Time:   SlotTime(s.HourLocal),
			Price:  r3(s.CtPerKWh),
			IsPast: f.IsPast(s.HourLocal, date, res),
		}
	}
	return out
}

func timeBlock(rank int, b Block, in DayInput, date string, res int, f Frame) models.TimeBlock {
	p := prices(b.Slots)
	avg := mean(p)
	lo, hi := minMax(p)
	last := b.Slots[len(b.Slots)-1]

	tb := models.TimeBlock{
		Rank:            rank,
		RankIcon:        RankIcon(rank),
		TimeRange:       FormatTimeRange(b.Start, b.End, res),
		DurationMinutes: len(b.Slots) * res,
		ActualSlotCount: len(b.Slots),
		AvgPrice:        r3(avg),
		MinPrice:        r3(lo),
		MaxPrice:        r3(hi),
		PriceVariance:   r3(hi - lo),
		IsBest:          avg < in.AverageCtPerKWh*BestBlockFactor,
		IsFuture:        !f.IsPast(last.HourLocal, date, res),
		IndividualSlots: slotViews(b.Slots, date, res, f),
	}
	if sd := StdDev(p); StdDevRelevant(sd, hi-lo, len(p)) {
		v := r3(sd)
		tb.PriceStdDev = &v
	}
	return tb
}

func avoidSlot(w *Window, date string, res int, f Frame) *models.AvoidSlot {
	if w == nil {
		return nil
	}
	last := w.Slots[len(w.Slots)-1]
	lo, hi := r3(w.MinPrice), r3(w.MaxPrice)
	return &models.AvoidSlot{
		TimeRange:       w.TimeRange,
		DurationMinutes: w.DurationMinutes,
		AvgPrice:        r3(w.AvgPrice),
		MinPrice:        lo,
		MaxPrice:        hi,
		PriceVariance:   r3(hi - lo),
		IsFuture:        !f.IsPast(last.HourLocal, date, res),
		IndividualSlots: slotViews(w.Slots, date, res, f),
	}
}

// ProcessDay builds the ranked block report for one day. It never fails:
// an empty cheap subset yields an empty report.
func ProcessDay(in DayInput, date string, f Frame, opts Options) models.DayReport {
	log := logger.GetLogger().WithComponent("planner").WithFields(logger.Fields{
		"date":        date,
		"cheap_slots": len(in.Cheap),
		"all_slots":   len(in.All),
	})

	report := models.DayReport{
		Date:              date,
		AverageCtPerKWh:   r3(in.AverageCtPerKWh),
		TimeBlocks:        []models.TimeBlock{},
		ResolutionMinutes: 60,
	}
	if len(in.Cheap) == 0 {
		log.Warn("no slots to group")
		return report
	}

	res := DetectResolution(in.Cheap)
	report.ResolutionMinutes = res

	grouping := GroupWithFallback(f.FilterToday(in.Cheap, date), opts.MaxBlocks, opts.MaxTimeGapMinutes, opts.MaxPriceGap, res)
	selected := grouping.Blocks
	if opts.MaxBlocks >= 0 && len(selected) > opts.MaxBlocks {
		selected = selected[:opts.MaxBlocks]
	}

	for i, b := range selected {
		tb := timeBlock(i+1, b, in, date, res, f)
		if tb.IsFuture {
			report.FutureBlocksCount++
		}
		report.TimeBlocks = append(report.TimeBlocks, tb)
	}
	report.TotalBlocksCount = len(report.TimeBlocks)

	if len(in.All) > 0 {
		report.AvoidSlot = avoidSlot(MostExpensiveWindow(in.All, date, res, f), date, res, f)
	}

	if grouping.Applied {
		report.FallbackInfo = &models.FallbackInfo{
			Applied:          true,
			OriginalPriceGap: processor.Round(grouping.OriginalGap, 2),
			AdjustedPriceGap: processor.Round(grouping.AdjustedGap, 2),
			Reason: fmt.Sprintf("auto-reduced from %.2f to %.2f to reach %d blocks",
				grouping.OriginalGap, grouping.AdjustedGap, opts.MaxBlocks),
		}
	}

	log.WithFields(logger.Fields{
		"resolution_minutes": res,
		"blocks":             report.TotalBlocksCount,
		"future_blocks":      report.FutureBlocksCount,
		"fallback_applied":   grouping.Applied,
		"adjusted_price_gap": grouping.AdjustedGap,
	}).Debug("day processed")
	return report
}

// Advanced is the cheapest-advanced view: the cheap subset selected by
// thresholdPct, ranked by ProcessDay against the full day.
type Advanced struct {
	Report        models.DayReport
	Threshold     float64
	AnalyzedSlots int
	TotalSlots    int
}

func ProcessAdvanced(all []models.PriceRow, date string, f Frame, opts Options, thresholdPct int) Advanced {
	cheap, threshold := SelectCheapSubset(all, thresholdPct)
	report := ProcessDay(DayInput{Cheap: cheap, All: all, AverageCtPerKWh: Average(all)}, date, f, opts)
	return Advanced{
		Report:        report,
		Threshold:     r3(threshold),
		AnalyzedSlots: len(cheap),
		TotalSlots:    len(all),
	}
}

// ZoneReport wraps the advanced view for live publishing.
func ZoneReport(zone string, all []models.PriceRow, date string, f Frame, opts Options, thresholdPct int) models.ZoneReport {
	adv := ProcessAdvanced(all, date, f, opts, thresholdPct)
	return models.ZoneReport{
		Zone:        zone,
		Date:        date,
		Label:       DayLabel(date, f),
		GeneratedAt: f.Now.In(f.Loc).Truncate(time.Second),
		Report:      adv.Report,
	}
}
