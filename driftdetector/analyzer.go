package driftdetector

import (
	"fmt"
	"sort"
	"time"

	"github.com/Nithish-ponnusamy/new-k8s/config"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

const topListSize = 10

func topCounts(counts map[string]int) []types.NameCount {
	results := []types.NameCount{}
	for name, count := range counts {
		if name == "" {
			continue
		}
		results = append(results, types.NameCount{Name: name, Count: count})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Name < results[j].Name
	})

	if len(results) > topListSize {
		results = results[:topListSize]
	}

	return results
}

// Analyze summarizes the drift recorded inside the window and derives
// recommendations. A non-positive window falls back to the configured
// analysis window; with neither set the whole retained history is
// analyzed.
func (dt *Detector) Analyze(window time.Duration) types.AnalysisReport {
	cfg := config.GetCfgDrift()

	if window <= 0 {
		window = time.Duration(cfg.AnalysisWindowHours) * time.Hour
	}

	repeatThreshold := cfg.RepeatThreshold
	if repeatThreshold <= 0 {
		repeatThreshold = 5
	}

	criticalAge := time.Duration(cfg.CriticalAgeMinutes) * time.Minute
	if criticalAge <= 0 {
		criticalAge = time.Hour
	}

	now := time.Now().UTC()

	since := time.Time{}
	if window > 0 {
		since = now.Add(-window)
	}
	events := dt.EventsSince(since)

	report := types.AnalysisReport{
		Timestamp:        now,
		Window:           window,
		TotalEvents:      len(events),
		EventsBySeverity: map[string]int{},
		EventsByType:     map[string]int{},
	}

	sources := map[string]int{}
	destinations := map[string]int{}
	groups := map[types.PairCount]int{}

	for _, event := range events {
		report.EventsBySeverity[event.Severity]++
		report.EventsByType[event.EventType]++

		sources[event.SourcePod]++
		destinations[event.DestinationPod]++

		key := types.PairCount{
			SourcePod:      event.SourcePod,
			DestinationPod: event.DestinationPod,
			EventType:      event.EventType,
		}
		groups[key]++
	}

	report.TopSources = topCounts(sources)
	report.TopDestinations = topCounts(destinations)

	for key, count := range groups {
		key.Count = count
		report.Groups = append(report.Groups, key)
	}

	sort.Slice(report.Groups, func(i, j int) bool {
		if report.Groups[i].Count != report.Groups[j].Count {
			return report.Groups[i].Count > report.Groups[j].Count
		}
		if report.Groups[i].SourcePod != report.Groups[j].SourcePod {
			return report.Groups[i].SourcePod < report.Groups[j].SourcePod
		}
		return report.Groups[i].DestinationPod < report.Groups[j].DestinationPod
	})

	report.Recommendations = dt.buildRecommendations(report.Groups, events, now, repeatThreshold, criticalAge)

	return report
}

func (dt *Detector) buildRecommendations(groups []types.PairCount, events []types.DriftEvent,
	now time.Time, repeatThreshold int, criticalAge time.Duration) []types.AnalysisRecommendation {
	recommendations := []types.AnalysisRecommendation{}

	for _, group := range groups {
		if group.EventType != types.DriftUnauthorizedConnection || group.Count < repeatThreshold {
			continue
		}

		recommendations = append(recommendations, types.AnalysisRecommendation{
			Priority: "high",
			Action:   "codify an intent or isolate the workload",
			Details: fmt.Sprintf("%d repeated unauthorized connection attempts from %s to %s",
				group.Count, group.SourcePod, group.DestinationPod),
		})
	}

	staleCritical := 0
	for _, event := range events {
		if event.Severity == types.SeverityCritical && !event.Resolved &&
			now.Sub(event.Timestamp) >= criticalAge {
			staleCritical++
		}
	}

	if staleCritical > 0 {
		recommendations = append(recommendations, types.AnalysisRecommendation{
			Priority: "urgent",
			Action:   "investigate unresolved critical drift",
			Details: fmt.Sprintf("%d critical drift events unresolved for more than %s",
				staleCritical, criticalAge),
		})
	}

	return recommendations
}
