package result

import (
	"sort"
	"time"
)

type RankEntry struct {
	ID        int64
	Tazr      float64
	Province  string
	CreatedAt time.Time
}

type RankAssignment struct {
	ResultID   int64
	National   int
	Provincial int
}

// ComputeRanks assigns competition ranks: equal tazr shares a rank and the
// next distinct tazr takes its 1-based position. National order breaks ties
// by created_at then id; provincial order breaks ties by id only.
// The output follows national order.
func ComputeRanks(entries []RankEntry) []RankAssignment {
	national := make([]RankEntry, len(entries))
	copy(national, entries)
	sort.SliceStable(national, func(i, j int) bool {
		a, b := national[i], national[j]
		if a.Tazr != b.Tazr {
			return a.Tazr > b.Tazr
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	out := make([]RankAssignment, len(national))
	index := make(map[int64]int, len(national))
	for i, rank := range competitionRanks(national) {
		out[i] = RankAssignment{ResultID: national[i].ID, National: rank}
		index[national[i].ID] = i
	}

	byProvince := make(map[string][]RankEntry)
	for _, e := range national {
		byProvince[e.Province] = append(byProvince[e.Province], e)
	}
	for _, group := range byProvince {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Tazr != group[j].Tazr {
				return group[i].Tazr > group[j].Tazr
			}
			return group[i].ID < group[j].ID
		})
		for i, rank := range competitionRanks(group) {
			out[index[group[i].ID]].Provincial = rank
		}
	}
	return out
}

func competitionRanks(sorted []RankEntry) []int {
	ranks := make([]int, len(sorted))
	rank := 0
	for i, e := range sorted {
		if i == 0 || e.Tazr != sorted[i-1].Tazr {
			rank = i + 1
		}
		ranks[i] = rank
	}
	return ranks
}
