package result

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrResultNotFound  = errors.New("result not found")
	ErrDuplicateResult = errors.New("duplicate result")
	// ErrStorageContention means the write could not take its lock in time.
	// Nothing was stored and the same request may be retried.
	ErrStorageContention = errors.New("storage contention")
)

type Result struct {
	ID             int64     `json:"id"`
	ExamID         int64     `json:"exam_id"`
	StudentName    string    `json:"student_name"`
	Phone          string    `json:"phone"`
	Province       string    `json:"province"`
	ScorePercent   float64   `json:"score_percent"`
	Tazr           float64   `json:"tazr"`
	RankNational   int       `json:"rank_national"`
	RankProvincial int       `json:"rank_provincial"`
	Details        Details   `json:"details"`
	CreatedAt      time.Time `json:"created_at"`
}

type Details struct {
	PerTopic    map[string]float64        `json:"per_topic"`
	PerQuestion map[string]QuestionDetail `json:"per_question"`
}

type QuestionDetail struct {
	Text       string `json:"text"`
	YourAnswer string `json:"your_answer"`
	Correct    string `json:"correct"`
	IsCorrect  bool   `json:"is_correct"`
}

func newDetails() Details {
	return Details{
		PerTopic:    map[string]float64{},
		PerQuestion: map[string]QuestionDetail{},
	}
}

// EncodeDetails serializes details for storage.
func EncodeDetails(d Details) ([]byte, error) {
	if d.PerTopic == nil {
		d.PerTopic = map[string]float64{}
	}
	if d.PerQuestion == nil {
		d.PerQuestion = map[string]QuestionDetail{}
	}
	return json.Marshal(d)
}

// DecodeDetails never fails: unreadable payloads decode to empty maps.
func DecodeDetails(raw []byte) Details {
	d := newDetails()
	if len(raw) == 0 {
		return d
	}
	var parsed Details
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return d
	}
	if parsed.PerTopic != nil {
		d.PerTopic = parsed.PerTopic
	}
	if parsed.PerQuestion != nil {
		d.PerQuestion = parsed.PerQuestion
	}
	return d
}

// DedupKey identifies a student within one exam: phone when present,
// otherwise name and province.
type DedupKey struct {
	Phone       string
	StudentName string
	Province    string
}

func (k DedupKey) UsesPhone() bool {
	return k.Phone != ""
}

// Matches reports whether r belongs to the same student as k. Without a
// phone, name and province match whatever phone r was stored with.
func (k DedupKey) Matches(r Result) bool {
	if k.UsesPhone() {
		return r.Phone == k.Phone
	}
	return r.StudentName == k.StudentName && r.Province == k.Province
}

type SubmitInput struct {
	ExamID   int64
	Name     string
	Phone    string
	Province string
	Answers  map[string]string
	// TazrOverride replaces the computed tazr when set.
	TazrOverride *float64
}

type SubmitOutcome struct {
	Result     *Result `json:"result"`
	Duplicate  bool    `json:"duplicate"`
	RanksFresh bool    `json:"ranks_fresh"`
}
