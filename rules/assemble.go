package rules

import (
	"fmt"
	"sort"
	"time"

	"pantrygen"
)

// Input is everything the assembler reads for one request.
type Input struct {
	Profile   pantrygen.SafetyProfile
	Inventory []pantrygen.InventoryItem
	History   []pantrygen.HistoryEntry

	Now        time.Time
	CurrentDay int
	Days       int

	// GuestCount and BaseServings enable party scaling when both are set.
	GuestCount   int
	BaseServings int

	OutputLanguages []string
	Extensions      map[string]any
}

// Assemble runs every rule and returns the context for one request.
func Assemble(in Input, cfg pantrygen.PipelineConfig) (pantrygen.GenerationContext, error) {
	variety := RecentUsage(in.History, in.Now, cfg.RecencyWindowDays)
	if in.Days > 1 {
		counts := CuisineCounts(in.History, in.Now, cfg.WeeklyWindowDays)
		variety = ApplyWeeklyCap(variety, counts, cfg.WeeklyCuisineCap)
	}

	gctx := pantrygen.GenerationContext{
		Variety:         variety,
		Expiring:        ExpiringItems(in.Inventory, in.CurrentDay, cfg.ExpiryThresholdDays),
		Safety:          SafetyUnion(in.Profile),
		InventoryIDs:    inventoryIDs(in.Inventory),
		Days:            in.Days,
		OutputLanguages: in.OutputLanguages,
	}

	if in.GuestCount > 0 || in.BaseServings > 0 {
		f, err := PartyScalingFactor(in.GuestCount, in.BaseServings, cfg.PartyBuffer)
		if err != nil {
			return pantrygen.GenerationContext{}, fmt.Errorf("party scaling: %w", err)
		}
		gctx.ScalingFactor = &f
	}

	if in.Days > 1 {
		if sched := LeftoverSchedule(in.Days, cfg.LeftoverWindowDays); len(sched) > 0 {
			gctx.LeftoverSources = sched
		}
	}

	gctx.SetExtensions(in.Extensions, cfg.MaxExtensionKeys)
	return gctx, nil
}

func inventoryIDs(inventory []pantrygen.InventoryItem) []string {
	ids := make([]string, 0, len(inventory))
	for id := range KnownIDs(inventory) {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
