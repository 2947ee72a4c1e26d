// Package reporting aggregates the client base into the distributions the
// school tracks: proficiency levels, disciplines, demographics and lesson
// periods.
package reporting

import (
	"sort"

	"borntoski-evo-sync/internal/database"
	"borntoski-evo-sync/internal/level"
)

// Bucket is one slice of a distribution
type Bucket struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// LevelReport summarizes the current state of the client base
type LevelReport struct {
	TotalClients int      `json:"total_clients"`
	WithLevel    int      `json:"with_level"`
	Levels       []Bucket `json:"levels"`
	Disciplines  []Bucket `json:"disciplines"`
	Genders      []Bucket `json:"genders"`
	Cities       []Bucket `json:"cities"`
}

const unknownKey = "Não informado"

// BuildLevelReport aggregates the client list into distributions. Level
// buckets are ordered by proficiency rank and computed over clients that have
// a level; the demographic buckets cover the whole base, ordered by size.
func BuildLevelReport(clients []*database.Client) *LevelReport {
	report := &LevelReport{TotalClients: len(clients)}

	levels := make(map[string]int)
	disciplines := make(map[string]int)
	genders := make(map[string]int)
	cities := make(map[string]int)

	for _, c := range clients {
		if c.CurrentLevel != nil {
			report.WithLevel++
			levels[*c.CurrentLevel]++

			switch {
			case c.Discipline != nil && *c.Discipline == string(level.DisciplineSki):
				disciplines["Esqui"]++
			case c.Discipline != nil && *c.Discipline == string(level.DisciplineSnowboard):
				disciplines["Snowboard"]++
			default:
				disciplines["Não designado"]++
			}
		}

		genders[keyOrUnknown(c.Gender)]++
		cities[keyOrUnknown(c.City)]++
	}

	report.Levels = bucketsByRank(levels, report.WithLevel)
	report.Disciplines = bucketsBySize(disciplines, report.WithLevel)
	report.Genders = bucketsBySize(genders, report.TotalClients)
	report.Cities = bucketsBySize(cities, report.TotalClients)

	return report
}

func keyOrUnknown(v *string) string {
	if v == nil || *v == "" {
		return unknownKey
	}
	return *v
}

// bucketsByRank orders level buckets 1A..4D
func bucketsByRank(counts map[string]int, total int) []Bucket {
	buckets := toBuckets(counts, total)
	sort.Slice(buckets, func(i, j int) bool {
		ri, _ := level.Rank(buckets[i].Key)
		rj, _ := level.Rank(buckets[j].Key)
		return ri < rj
	})
	return buckets
}

// bucketsBySize orders buckets largest first, ties alphabetically
func bucketsBySize(counts map[string]int, total int) []Bucket {
	buckets := toBuckets(counts, total)
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}

func toBuckets(counts map[string]int, total int) []Bucket {
	buckets := make([]Bucket, 0, len(counts))
	for key, count := range counts {
		b := Bucket{Key: key, Count: count}
		if total > 0 {
			b.Percent = round1(float64(count) / float64(total) * 100)
		}
		buckets = append(buckets, b)
	}
	return buckets
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
