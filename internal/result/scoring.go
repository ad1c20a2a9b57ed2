package result

import (
	"math"
	"strconv"

	"azmoon/internal/exam"
)

const (
	TazrMin = 1000.0
	TazrMax = 13500.0
)

type Counts struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
	Blank   int `json:"blank"`
	Penalty int `json:"penalty"`
}

type ScoreResult struct {
	Percent float64 `json:"percent"`
	Tazr    float64 `json:"tazr"`
	Counts  Counts  `json:"counts"`
	Details Details `json:"details"`
}

// Score grades answers (question id -> option letter) against questions.
// Every three wrong answers cancel one correct answer.
func Score(questions []exam.Question, answers map[string]string) ScoreResult {
	return ScoreWithOverride(questions, answers, nil)
}

func ScoreWithOverride(questions []exam.Question, answers map[string]string, tazrOverride *float64) ScoreResult {
	res := ScoreResult{Details: newDetails()}

	if total := len(questions); total > 0 {
		topicTotals := make(map[string]int)
		topicCorrect := make(map[string]int)

		for _, q := range questions {
			qid := strconv.FormatInt(q.ID, 10)
			your := exam.NormalizeLetter(answers[qid])
			correct := exam.NormalizeLetter(q.Correct)
			isCorrect := your != "" && your == correct

			switch {
			case isCorrect:
				res.Counts.Correct++
			case your != "":
				res.Counts.Wrong++
			default:
				res.Counts.Blank++
			}

			topic := exam.NormalizeTopic(q.Topic)
			topicTotals[topic]++
			if isCorrect {
				topicCorrect[topic]++
			}

			res.Details.PerQuestion[qid] = QuestionDetail{
				Text:       q.Text,
				YourAnswer: your,
				Correct:    correct,
				IsCorrect:  isCorrect,
			}
		}

		res.Counts.Penalty = res.Counts.Wrong / 3
		adjusted := res.Counts.Correct - res.Counts.Penalty
		if adjusted < 0 {
			adjusted = 0
		}
		res.Percent = round2(100 * float64(adjusted) / float64(total))

		for topic, n := range topicTotals {
			res.Details.PerTopic[topic] = round2(100 * float64(topicCorrect[topic]) / float64(n))
		}
	}

	if tazrOverride != nil {
		res.Tazr = *tazrOverride
	} else {
		res.Tazr = TazrFromPercent(res.Percent)
	}
	return res
}

// TazrFromPercent maps 0..100 linearly onto 1000..13500.
func TazrFromPercent(percent float64) float64 {
	return round2(TazrMin + percent/100*(TazrMax-TazrMin))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
