package result

import (
	"strconv"
	"testing"

	"azmoon/internal/exam"
)

func makeQuestions(n int, correct, topic string) []exam.Question {
	out := make([]exam.Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, exam.Question{ID: int64(i), ExamID: 1, Text: "q" + strconv.Itoa(i), Correct: correct, Topic: topic})
	}
	return out
}

func TestScorePenaltyAndTazr(t *testing.T) {
	questions := makeQuestions(10, "A", "algebra")
	answers := map[string]string{}
	for i := 1; i <= 6; i++ {
		answers[strconv.Itoa(i)] = "a "
	}
	for i := 7; i <= 9; i++ {
		answers[strconv.Itoa(i)] = "B"
	}

	got := Score(questions, answers)

	if got.Percent != 50 {
		t.Fatalf("expected percent 50, got %v", got.Percent)
	}
	if got.Tazr != 7250 {
		t.Fatalf("expected tazr 7250, got %v", got.Tazr)
	}
	want := Counts{Correct: 6, Wrong: 3, Blank: 1, Penalty: 1}
	if got.Counts != want {
		t.Fatalf("expected counts %+v, got %+v", want, got.Counts)
	}
	if got.Details.PerTopic["algebra"] != 60 {
		t.Fatalf("expected topic accuracy 60, got %v", got.Details.PerTopic["algebra"])
	}
	d := got.Details.PerQuestion["1"]
	if d.YourAnswer != "A" || !d.IsCorrect || d.Correct != "A" || d.Text != "q1" {
		t.Fatalf("unexpected detail for q1: %+v", d)
	}
	if d := got.Details.PerQuestion["10"]; d.YourAnswer != "" || d.IsCorrect {
		t.Fatalf("expected blank q10, got %+v", d)
	}
}

func TestScoreCases(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		correct int
		wrong   int
		percent float64
		tazr    float64
	}{
		{name: "all correct", n: 4, correct: 4, percent: 100, tazr: 13500},
		{name: "all blank", n: 4, percent: 0, tazr: 1000},
		{name: "penalty floors at zero", n: 7, correct: 1, wrong: 6, percent: 0, tazr: 1000},
		{name: "two wrong no penalty", n: 3, correct: 1, wrong: 2, percent: 33.33, tazr: 5166.25},
		{name: "six wrong two penalty", n: 10, correct: 4, wrong: 6, percent: 20, tazr: 3500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			questions := makeQuestions(tc.n, "C", "")
			answers := map[string]string{}
			id := 1
			for i := 0; i < tc.correct; i++ {
				answers[strconv.Itoa(id)] = "C"
				id++
			}
			for i := 0; i < tc.wrong; i++ {
				answers[strconv.Itoa(id)] = "D"
				id++
			}
			got := Score(questions, answers)
			if got.Percent != tc.percent {
				t.Fatalf("expected percent %v, got %v", tc.percent, got.Percent)
			}
			if got.Tazr != tc.tazr {
				t.Fatalf("expected tazr %v, got %v", tc.tazr, got.Tazr)
			}
		})
	}
}

func TestScoreNoQuestions(t *testing.T) {
	got := Score(nil, map[string]string{"1": "A"})
	if got.Percent != 0 || got.Tazr != 1000 {
		t.Fatalf("expected 0/1000, got %v/%v", got.Percent, got.Tazr)
	}
	if got.Details.PerTopic == nil || got.Details.PerQuestion == nil {
		t.Fatalf("expected empty, non-nil detail maps")
	}
	if len(got.Details.PerTopic) != 0 || len(got.Details.PerQuestion) != 0 {
		t.Fatalf("expected empty detail maps, got %+v", got.Details)
	}
}

func TestScoreWithOverride(t *testing.T) {
	override := 9999.5
	got := ScoreWithOverride(makeQuestions(2, "A", ""), map[string]string{"1": "A"}, &override)
	if got.Tazr != 9999.5 {
		t.Fatalf("expected override tazr, got %v", got.Tazr)
	}
	if got.Percent != 50 {
		t.Fatalf("expected percent still computed, got %v", got.Percent)
	}
}

func TestScoreBlankTopicAndAnswerKey(t *testing.T) {
	questions := []exam.Question{
		{ID: 1, Correct: "", Topic: "  "},
		{ID: 2, Correct: " b ", Topic: "geometry"},
	}
	got := Score(questions, map[string]string{"1": "A", "2": "b"})

	if got.Counts.Wrong != 1 || got.Counts.Correct != 1 {
		t.Fatalf("unexpected counts %+v", got.Counts)
	}
	if _, ok := got.Details.PerTopic[exam.DefaultTopic]; !ok {
		t.Fatalf("expected default topic bucket, got %+v", got.Details.PerTopic)
	}
	if got.Details.PerTopic["geometry"] != 100 {
		t.Fatalf("expected geometry 100, got %v", got.Details.PerTopic["geometry"])
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	questions := makeQuestions(7, "B", "t")
	answers := map[string]string{"1": "B", "2": "A", "5": "B"}
	a := Score(questions, answers)
	b := Score(questions, answers)
	if a.Percent != b.Percent || a.Tazr != b.Tazr || a.Counts != b.Counts {
		t.Fatalf("expected identical scores, got %+v and %+v", a, b)
	}
}

func TestTazrFromPercentBounds(t *testing.T) {
	if got := TazrFromPercent(0); got != TazrMin {
		t.Fatalf("expected %v, got %v", TazrMin, got)
	}
	if got := TazrFromPercent(100); got != TazrMax {
		t.Fatalf("expected %v, got %v", TazrMax, got)
	}
}
