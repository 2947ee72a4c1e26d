package reporting

import (
	"strconv"
	"strings"

	"borntoski-evo-sync/internal/database"
)

// Time bands used to group lessons by period of day
const (
	BandMorning   = "Manhã"
	BandAfternoon = "Tarde"
	BandEvening   = "Noite"
	BandUndefined = "Indefinido"
)

// TimeBand classifies a lesson start time: before 12:00 is morning, up to and
// including 17:30 is afternoon, later is evening. Values that do not look
// like a clock time land in the undefined band.
func TimeBand(startTime string) string {
	h, m, ok := parseClock(startTime)
	if !ok {
		return BandUndefined
	}

	minutes := h*60 + m
	switch {
	case minutes < 12*60:
		return BandMorning
	case minutes <= 17*60+30:
		return BandAfternoon
	default:
		return BandEvening
	}
}

// parseClock accepts "HH:MM" and "HH:MM:SS"
func parseClock(v string) (h, m int, ok bool) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) < 2 {
		return 0, 0, false
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err = strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// BuildPeriodReport groups sessions into time bands, ordered morning to
// evening with the undefined band last
func BuildPeriodReport(sessions []*database.Session) []Bucket {
	counts := make(map[string]int)
	for _, s := range sessions {
		start := ""
		if s.StartTime != nil {
			start = *s.StartTime
		}
		counts[TimeBand(start)]++
	}

	buckets := make([]Bucket, 0, 4)
	for _, band := range []string{BandMorning, BandAfternoon, BandEvening, BandUndefined} {
		count, ok := counts[band]
		if !ok {
			continue
		}
		b := Bucket{Key: band, Count: count}
		if len(sessions) > 0 {
			b.Percent = round1(float64(count) / float64(len(sessions)) * 100)
		}
		buckets = append(buckets, b)
	}
	return buckets
}
