package result

import (
	"testing"
	"time"
)

func ranksByID(out []RankAssignment) map[int64]RankAssignment {
	m := make(map[int64]RankAssignment, len(out))
	for _, a := range out {
		m[a.ResultID] = a
	}
	return m
}

func TestComputeRanksCompetition(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		tazrs []float64
		want  []int
	}{
		{name: "tie at top", tazrs: []float64{90, 90, 80}, want: []int{1, 1, 3}},
		{name: "tie in middle", tazrs: []float64{100, 90, 90, 90, 70}, want: []int{1, 2, 2, 2, 5}},
		{name: "all equal", tazrs: []float64{50, 50, 50}, want: []int{1, 1, 1}},
		{name: "distinct", tazrs: []float64{3, 2, 1}, want: []int{1, 2, 3}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entries := make([]RankEntry, 0, len(tc.tazrs))
			for i, v := range tc.tazrs {
				entries = append(entries, RankEntry{ID: int64(i + 1), Tazr: v, Province: "تهران", CreatedAt: base.Add(time.Duration(i) * time.Second)})
			}
			got := ranksByID(ComputeRanks(entries))
			for i, want := range tc.want {
				a := got[int64(i+1)]
				if a.National != want {
					t.Fatalf("result %d: expected national %d, got %d", i+1, want, a.National)
				}
				if a.Provincial != want {
					t.Fatalf("result %d: expected provincial %d, got %d", i+1, want, a.Provincial)
				}
			}
		})
	}
}

func TestComputeRanksEmpty(t *testing.T) {
	if got := ComputeRanks(nil); len(got) != 0 {
		t.Fatalf("expected no assignments, got %d", len(got))
	}
}

func TestComputeRanksPerProvince(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	entries := []RankEntry{
		{ID: 1, Tazr: 9000, Province: "تهران", CreatedAt: base},
		{ID: 2, Tazr: 8000, Province: "فارس", CreatedAt: base.Add(time.Second)},
		{ID: 3, Tazr: 7000, Province: "تهران", CreatedAt: base.Add(2 * time.Second)},
		{ID: 4, Tazr: 8000, Province: "فارس", CreatedAt: base.Add(3 * time.Second)},
	}
	got := ranksByID(ComputeRanks(entries))

	want := map[int64][2]int{
		1: {1, 1},
		2: {2, 1},
		4: {2, 1},
		3: {4, 2},
	}
	for id, w := range want {
		if got[id].National != w[0] || got[id].Provincial != w[1] {
			t.Fatalf("result %d: expected %v, got national=%d provincial=%d", id, w, got[id].National, got[id].Provincial)
		}
	}
}

func TestComputeRanksOrderAndTieBreaks(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	// Result 5 has the lower id but the later timestamp.
	entries := []RankEntry{
		{ID: 5, Tazr: 6000, Province: "قم", CreatedAt: base.Add(time.Minute)},
		{ID: 9, Tazr: 6000, Province: "قم", CreatedAt: base},
	}
	out := ComputeRanks(entries)
	if len(out) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(out))
	}
	if out[0].ResultID != 9 || out[1].ResultID != 5 {
		t.Fatalf("expected national order by created_at [9 5], got [%d %d]", out[0].ResultID, out[1].ResultID)
	}
	for _, a := range out {
		if a.National != 1 || a.Provincial != 1 {
			t.Fatalf("tied results must share rank 1, got %+v", a)
		}
	}
}

func TestComputeRanksIdempotent(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	entries := []RankEntry{
		{ID: 1, Tazr: 5000, Province: "البرز", CreatedAt: base},
		{ID: 2, Tazr: 7000, Province: "البرز", CreatedAt: base.Add(time.Second)},
		{ID: 3, Tazr: 5000, Province: "گیلان", CreatedAt: base.Add(2 * time.Second)},
	}
	first := ComputeRanks(entries)
	second := ComputeRanks(entries)
	if len(first) != len(second) {
		t.Fatalf("length mismatch")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected identical output, got %+v and %+v", first[i], second[i])
		}
	}
	if entries[0].ID != 1 || entries[1].ID != 2 {
		t.Fatalf("input slice must not be reordered")
	}
}
