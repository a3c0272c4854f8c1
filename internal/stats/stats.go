// Package stats reduces event log records into run level cache statistics.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/Norgate-AV/cachestat/internal/eventlog"
)

// Miss is a unit that had to be compiled
type Miss struct {
	Name          string
	ElapsedMillis int64
	SizeBytes     int64
	CacheKey      string
}

// RunStats summarises the cache outcomes of one run.
// Total counts hits and misses only; errors are tracked separately
// and are not part of the hit rate denominator.
type RunStats struct {
	Total      int
	LocalHits  int
	RemoteHits int
	Hits       int
	Misses     int
	Errors     int

	// HitRate is the hit percentage with one decimal, "0.0" for an empty run
	HitRate string

	// TopMisses is ordered by ElapsedMillis descending, ties in log order
	TopMisses []Miss
}

// Aggregate computes RunStats from records in log order
func Aggregate(records []eventlog.Record) RunStats {
	var s RunStats

	for _, rec := range records {
		switch rec.Result {
		case eventlog.LocalHit:
			s.LocalHits++
		case eventlog.RemoteHit:
			s.RemoteHits++
		case eventlog.Miss:
			s.Misses++
			s.TopMisses = append(s.TopMisses, Miss{
				Name:          rec.UnitName,
				ElapsedMillis: rec.ElapsedMillis,
				SizeBytes:     rec.SizeBytes,
				CacheKey:      rec.CacheKey,
			})
		case eventlog.Error:
			s.Errors++
		}
	}

	s.Hits = s.LocalHits + s.RemoteHits
	s.Total = s.Hits + s.Misses
	s.HitRate = hitRate(s.Hits, s.Total)

	sort.SliceStable(s.TopMisses, func(i, j int) bool {
		return s.TopMisses[i].ElapsedMillis > s.TopMisses[j].ElapsedMillis
	})

	return s
}

// HasKeys reports whether any miss carries a cache key
func (s RunStats) HasKeys() bool {
	for _, m := range s.TopMisses {
		if m.CacheKey != "" {
			return true
		}
	}

	return false
}

func hitRate(hits, total int) string {
	if total == 0 {
		return "0.0"
	}

	// round half up
	return fmt.Sprintf("%.1f", math.Round(float64(hits)/float64(total)*1000)/10)
}
