package result

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"azmoon/internal/exam"
	"azmoon/internal/identity"

	"github.com/rs/zerolog/log"
)

const DefaultLockTimeout = 5 * time.Second

type Service struct {
	store       Store
	lockTimeout time.Duration
	submitLocks *keyedLock
	rankLocks   *keyedLock
}

func NewService(store Store, lockTimeout time.Duration) *Service {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Service{
		store:       store,
		lockTimeout: lockTimeout,
		submitLocks: newKeyedLock(),
		rankLocks:   newKeyedLock(),
	}
}

type submitState int

const (
	stateIdle submitState = iota
	stateChecking
	stateInserted
	stateRanksStale
	stateRanksFresh
)

func (s submitState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateChecking:
		return "checking"
	case stateInserted:
		return "inserted"
	case stateRanksStale:
		return "ranks_stale"
	case stateRanksFresh:
		return "ranks_fresh"
	default:
		return "unknown"
	}
}

var submitTransitions = map[submitState][]submitState{
	stateIdle:       {stateChecking},
	stateChecking:   {stateInserted, stateIdle},
	stateInserted:   {stateRanksStale, stateIdle},
	stateRanksStale: {stateRanksFresh},
}

// submitRun tracks one submission. Any failure before commit returns it to
// idle; after commit it can only move forward.
type submitRun struct {
	examID int64
	state  submitState
}

func (r *submitRun) advance(to submitState) error {
	for _, next := range submitTransitions[r.state] {
		if next == to {
			log.Debug().Int64("exam_id", r.examID).Str("from", r.state.String()).Str("to", to.String()).Msg("submit state")
			r.state = to
			return nil
		}
	}
	return fmt.Errorf("submit: invalid transition %s -> %s", r.state, to)
}

func (r *submitRun) rollback(err error) {
	if r.state == stateIdle || r.state >= stateRanksStale {
		return
	}
	log.Debug().Err(err).Int64("exam_id", r.examID).Str("from", r.state.String()).Msg("submit rolled back")
	r.state = stateIdle
}

// Submit stores a graded result unless the student already has one for the
// exam, in which case the existing result is returned with Duplicate set.
// Ranks are recomputed after commit; a failed recompute leaves
// RanksFresh false without failing the submission.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitOutcome, error) {
	if in.ExamID <= 0 {
		return nil, ErrInvalidInput
	}
	key := DedupKey{
		Phone:       identity.NormalizePhone(in.Phone),
		StudentName: identity.NormalizeName(in.Name),
		Province:    strings.TrimSpace(in.Province),
	}
	run := &submitRun{examID: in.ExamID}

	release, err := s.submitLocks.acquire(ctx, in.ExamID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	if err := run.advance(stateChecking); err != nil {
		release()
		return nil, err
	}

	out := &SubmitOutcome{}
	err = s.store.InTx(ctx, ScopeSubmit, in.ExamID, func(ctx context.Context, tx Tx) error {
		ok, err := tx.ExamExists(ctx, in.ExamID)
		if err != nil {
			return err
		}
		if !ok {
			return exam.ErrExamNotFound
		}

		existing, err := tx.FindResult(ctx, in.ExamID, key)
		switch {
		case err == nil:
			out.Result = existing
			out.Duplicate = true
			return nil
		case !errors.Is(err, ErrResultNotFound):
			return err
		}

		questions, err := tx.ListQuestions(ctx, in.ExamID)
		if err != nil {
			return err
		}
		score := ScoreWithOverride(questions, in.Answers, in.TazrOverride)
		r := &Result{
			ExamID:       in.ExamID,
			StudentName:  key.StudentName,
			Phone:        key.Phone,
			Province:     key.Province,
			ScorePercent: score.Percent,
			Tazr:         score.Tazr,
			Details:      score.Details,
		}
		if err := tx.InsertResult(ctx, r); err != nil {
			return err
		}
		out.Result = r
		log.Debug().
			Int64("exam_id", in.ExamID).
			Int("correct", score.Counts.Correct).
			Int("wrong", score.Counts.Wrong).
			Int("blank", score.Counts.Blank).
			Int("penalty", score.Counts.Penalty).
			Msg("submission scored")
		return run.advance(stateInserted)
	})
	release()

	if errors.Is(err, ErrDuplicateResult) {
		// Another writer won the unique index race; report its row.
		run.rollback(err)
		existing, ferr := s.store.FindResult(ctx, in.ExamID, key)
		if ferr != nil {
			return nil, fmt.Errorf("reload duplicate result: %w", ferr)
		}
		return &SubmitOutcome{Result: existing, Duplicate: true}, nil
	}
	if err != nil {
		run.rollback(err)
		return nil, err
	}
	if out.Duplicate {
		if err := run.advance(stateIdle); err != nil {
			return nil, err
		}
		log.Info().Int64("exam_id", in.ExamID).Int64("result_id", out.Result.ID).Msg("duplicate submission")
		return out, nil
	}

	if err := run.advance(stateRanksStale); err != nil {
		return nil, err
	}
	log.Info().
		Int64("exam_id", in.ExamID).
		Int64("result_id", out.Result.ID).
		Float64("tazr", out.Result.Tazr).
		Msg("result stored")

	if err := s.RecalculateRanks(ctx, in.ExamID); err != nil {
		log.Warn().Err(err).Int64("exam_id", in.ExamID).Msg("rank recalculation failed, ranks stale")
		return out, nil
	}
	if fresh, err := s.store.GetResult(ctx, out.Result.ID); err == nil {
		out.Result = fresh
	} else {
		log.Warn().Err(err).Int64("result_id", out.Result.ID).Msg("reload ranked result failed")
	}
	if err := run.advance(stateRanksFresh); err != nil {
		return nil, err
	}
	out.RanksFresh = true
	return out, nil
}

// RecalculateRanks rewrites national and provincial ranks for every result of
// the exam. Running it again without new results changes nothing.
func (s *Service) RecalculateRanks(ctx context.Context, examID int64) error {
	if examID <= 0 {
		return ErrInvalidInput
	}
	release, err := s.rankLocks.acquire(ctx, examID, s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	return s.store.InTx(ctx, ScopeRanks, examID, func(ctx context.Context, tx Tx) error {
		ok, err := tx.ExamExists(ctx, examID)
		if err != nil {
			return err
		}
		if !ok {
			return exam.ErrExamNotFound
		}
		entries, err := tx.ListRankEntries(ctx, examID)
		if err != nil {
			return err
		}
		return tx.UpdateRanks(ctx, examID, ComputeRanks(entries))
	})
}

// GetResults lists results by tazr desc, created_at asc. An empty province
// means all provinces.
func (s *Service) GetResults(ctx context.Context, examID int64, province string) ([]Result, error) {
	if examID <= 0 {
		return nil, ErrInvalidInput
	}
	return s.store.ListResults(ctx, examID, strings.TrimSpace(province))
}

func (s *Service) GetResult(ctx context.Context, id int64) (*Result, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.store.GetResult(ctx, id)
}

// FindExisting looks up a prior result for the identity without writing.
func (s *Service) FindExisting(ctx context.Context, examID int64, id identity.Identity) (*Result, error) {
	return s.store.FindResult(ctx, examID, DedupKey{
		Phone:       identity.NormalizePhone(id.Phone),
		StudentName: identity.NormalizeName(id.Name),
		Province:    strings.TrimSpace(id.Province),
	})
}

type StartOutcome struct {
	Identity  identity.Identity `json:"identity"`
	Duplicate bool              `json:"duplicate"`
	Result    *Result           `json:"result,omitempty"`
}

// Start validates a student's identity before the exam is shown. A student
// who already submitted gets their stored result instead.
func (s *Service) Start(ctx context.Context, examID int64, in identity.StartInput) (*StartOutcome, error) {
	if examID <= 0 {
		return nil, ErrInvalidInput
	}
	id, err := identity.Resolve(in)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.ExamExists(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, exam.ErrExamNotFound
	}

	existing, err := s.FindExisting(ctx, examID, id)
	switch {
	case err == nil:
		return &StartOutcome{Identity: id, Duplicate: true, Result: existing}, nil
	case errors.Is(err, ErrResultNotFound):
		return &StartOutcome{Identity: id}, nil
	default:
		return nil, err
	}
}
