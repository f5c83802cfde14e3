package optimizer

import (
	"math"
	"sort"
)

// buildPriceGrid implements the dense-around-base grid construction from
// 4.E, translated from the reference implementation's _build_price_grid:
// when base lies inside [floor, ceiling], the region
// [max(floor, 0.8*base), min(ceiling, 1.2*base)] is sampled at half the
// coarse step, and the rest of the range at the coarse step; otherwise a
// uniform grid at the coarse step. The result is deduplicated, sorted,
// and capped at maxPoints — when capping with a base, the first five,
// last five, and the points within ten indices of base are kept.
func buildPriceGrid(floor, ceiling float64, base *float64, step float64, maxPoints int) []float64 {
	if step <= 0 {
		step = 1.0
	}

	var raw []float64
	if base != nil && *base >= floor && *base <= ceiling {
		denseMin := math.Max(floor, *base*0.8)
		denseMax := math.Min(ceiling, *base*1.2)
		denseStep := step * 0.5

		if denseMin > floor {
			for cur := floor; cur < denseMin; cur += step {
				raw = append(raw, round2(cur))
			}
		}
		for cur := denseMin; cur <= denseMax+1e-6; cur += denseStep {
			raw = append(raw, round2(cur))
		}
		if denseMax < ceiling {
			for cur := denseMax + step; cur <= ceiling+1e-6; cur += step {
				raw = append(raw, round2(cur))
			}
		}
	} else {
		for cur := floor; cur <= ceiling+1e-6; cur += step {
			raw = append(raw, round2(cur))
		}
	}

	grid := dedupeSorted(raw)

	if len(grid) > maxPoints {
		grid = capGrid(grid, base, maxPoints)
	}
	return grid
}

func dedupeSorted(v []float64) []float64 {
	sort.Float64s(v)
	out := v[:0]
	var last float64
	haveLast := false
	for _, x := range v {
		if haveLast && x == last {
			continue
		}
		out = append(out, x)
		last = x
		haveLast = true
	}
	return out
}

// capGrid samples the grid down to maxPoints. With a base price, it keeps
// the first five, last five, and the neighbors around base (±10 indices),
// then re-sorts, dedupes, and truncates to maxPoints. Without a base, it
// samples uniformly.
func capGrid(grid []float64, base *float64, maxPoints int) []float64 {
	if base == nil {
		step := len(grid) / maxPoints
		if step < 1 {
			step = 1
		}
		var sampled []float64
		for i := 0; i < len(grid); i += step {
			sampled = append(sampled, grid[i])
			if len(sampled) >= maxPoints {
				break
			}
		}
		return sampled
	}

	baseIdx := 0
	bestDist := math.Abs(grid[0] - *base)
	for i, p := range grid {
		d := math.Abs(p - *base)
		if d < bestDist {
			bestDist = d
			baseIdx = i
		}
	}

	startIdx := baseIdx - 10
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := baseIdx + 10
	if endIdx > len(grid) {
		endIdx = len(grid)
	}

	firstFive := headN(grid, 5)
	lastFive := tailN(grid, 5)
	middle := grid[startIdx:endIdx]

	combined := append([]float64(nil), firstFive...)
	combined = append(combined, middle...)
	combined = append(combined, lastFive...)

	deduped := dedupeSorted(combined)
	if len(deduped) > maxPoints {
		deduped = deduped[:maxPoints]
	}
	return deduped
}

func headN(v []float64, n int) []float64 {
	if n > len(v) {
		n = len(v)
	}
	return append([]float64(nil), v[:n]...)
}

func tailN(v []float64, n int) []float64 {
	if n > len(v) {
		n = len(v)
	}
	return append([]float64(nil), v[len(v)-n:]...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
