package heuristic

import (
	"math"
	"regexp"
	"sort"
	"strconv"
)

const maxExperienceYears = 50

var (
	explicitYearsRe = regexp.MustCompile(`(\d{1,2}(?:\.\d+)?)\s*\+?\s*(?:years?|yrs?)\b`)
	yearRangeRe     = regexp.MustCompile(`\b((?:19|20)\d{2})\s*(?:-|\x{2013}|\x{2014}|to|until)\s*((?:19|20)\d{2}|present|current|now|today)\b`)
)

type interval struct{ start, end int }

// experienceYears takes the larger of the strongest explicit statement
// ("5+ years") and the union of dated ranges ("2018 - present"), capped at 50.
func experienceYears(lower string, referenceYear int) float64 {
	years := math.Max(explicitYears(lower), float64(rangeYears(lower, referenceYear)))
	return math.Min(maxExperienceYears, years)
}

func explicitYears(lower string) float64 {
	best := 0.0
	for _, m := range explicitYearsRe.FindAllStringSubmatch(lower, -1) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err == nil && n > best {
			best = n
		}
	}
	return best
}

// rangeYears sums the union of [start, end) intervals so overlapping jobs
// are not double counted.
func rangeYears(lower string, referenceYear int) int {
	var spans []interval
	for _, m := range yearRangeRe.FindAllStringSubmatch(lower, -1) {
		start, _ := strconv.Atoi(m[1])
		end := referenceYear
		if n, err := strconv.Atoi(m[2]); err == nil {
			end = n
		}
		end = min(end, referenceYear)
		if start > referenceYear || end < start {
			continue
		}
		spans = append(spans, interval{start: start, end: end})
	}
	if len(spans) == 0 {
		return 0
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	total := 0
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.start <= cur.end {
			cur.end = max(cur.end, s.end)
			continue
		}
		total += cur.end - cur.start
		cur = s
	}
	return total + cur.end - cur.start
}
