// Package memstore keeps exams, questions and results in process memory.
// It backs STORE_DRIVER=memory and the service tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"azmoon/internal/exam"
	"azmoon/internal/result"

	"golang.org/x/sync/semaphore"
)

type Store struct {
	mu        sync.RWMutex
	exams     map[int64]exam.Exam
	questions map[int64][]exam.Question
	results   map[int64]result.Result

	nextExamID     int64
	nextQuestionID int64
	nextResultID   int64
	lastCreatedAt  time.Time

	// writer serializes InTx callers; mu only guards the maps.
	writer      *semaphore.Weighted
	lockTimeout time.Duration
	now         func() time.Time
}

func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = result.DefaultLockTimeout
	}
	return &Store{
		exams:       make(map[int64]exam.Exam),
		questions:   make(map[int64][]exam.Question),
		results:     make(map[int64]result.Result),
		writer:      semaphore.NewWeighted(1),
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// WithClock replaces the timestamp source. Timestamps still strictly
// increase across inserts.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) CreateExam(ctx context.Context, title, description string) (*exam.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExamID++
	e := exam.Exam{ID: s.nextExamID, Title: title, Description: description, CreatedAt: s.now().UTC()}
	s.exams[e.ID] = e
	return &e, nil
}

func (s *Store) UpdateExam(ctx context.Context, id int64, title, description string) (*exam.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[id]
	if !ok {
		return nil, exam.ErrExamNotFound
	}
	e.Title = title
	e.Description = description
	s.exams[id] = e
	return &e, nil
}

func (s *Store) DeleteExam(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[id]; !ok {
		return exam.ErrExamNotFound
	}
	delete(s.exams, id)
	delete(s.questions, id)
	for rid, r := range s.results {
		if r.ExamID == id {
			delete(s.results, rid)
		}
	}
	return nil
}

func (s *Store) GetExam(ctx context.Context, id int64) (*exam.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exams[id]
	if !ok {
		return nil, exam.ErrExamNotFound
	}
	return &e, nil
}

func (s *Store) ListExams(ctx context.Context) ([]exam.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exam.Exam, 0, len(s.exams))
	for _, e := range s.exams {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) InsertQuestion(ctx context.Context, q exam.Question) (*exam.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[q.ExamID]; !ok {
		return nil, exam.ErrExamNotFound
	}
	s.nextQuestionID++
	q.ID = s.nextQuestionID
	s.questions[q.ExamID] = append(s.questions[q.ExamID], q)
	return &q, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, examID, questionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.questions[examID]
	for i, q := range items {
		if q.ID == questionID {
			s.questions[examID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return exam.ErrQuestionNotFound
}

func (s *Store) ListQuestions(ctx context.Context, examID int64) ([]exam.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionsLocked(examID), nil
}

func (s *Store) questionsLocked(examID int64) []exam.Question {
	out := make([]exam.Question, len(s.questions[examID]))
	copy(out, s.questions[examID])
	return out
}

func (s *Store) InTx(ctx context.Context, scope result.LockScope, examID int64, fn func(ctx context.Context, tx result.Tx) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	if err := s.writer.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s lock for exam %d", result.ErrStorageContention, scope, examID)
	}
	defer s.writer.Release(1)

	tx := &memTx{store: s, ranks: make(map[int64]result.RankAssignment)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) ExamExists(ctx context.Context, examID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.exams[examID]
	return ok, nil
}

func (s *Store) GetResult(ctx context.Context, id int64) (*result.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return nil, result.ErrResultNotFound
	}
	return &r, nil
}

func (s *Store) ListResults(ctx context.Context, examID int64, province string) ([]result.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]result.Result, 0)
	for _, r := range s.results {
		if r.ExamID != examID || (province != "" && r.Province != province) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Tazr != b.Tazr {
			return a.Tazr > b.Tazr
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) FindResult(ctx context.Context, examID int64, key result.DedupKey) (*result.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(examID, key, nil)
}

func (s *Store) findLocked(examID int64, key result.DedupKey, pending []result.Result) (*result.Result, error) {
	var found *result.Result
	consider := func(r result.Result) {
		if r.ExamID != examID || !key.Matches(r) {
			return
		}
		if found == nil || r.ID < found.ID {
			c := r
			found = &c
		}
	}
	for _, r := range s.results {
		consider(r)
	}
	for _, r := range pending {
		consider(r)
	}
	if found == nil {
		return nil, result.ErrResultNotFound
	}
	return found, nil
}

// memTx buffers writes and applies them on commit.
type memTx struct {
	store    *Store
	inserted []result.Result
	ranks    map[int64]result.RankAssignment
}

func (t *memTx) ExamExists(ctx context.Context, examID int64) (bool, error) {
	return t.store.ExamExists(ctx, examID)
}

func (t *memTx) FindResult(ctx context.Context, examID int64, key result.DedupKey) (*result.Result, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.findLocked(examID, key, t.inserted)
}

func (t *memTx) ListQuestions(ctx context.Context, examID int64) ([]exam.Question, error) {
	return t.store.ListQuestions(ctx, examID)
}

func (t *memTx) InsertResult(ctx context.Context, r *result.Result) error {
	key := result.DedupKey{Phone: r.Phone, StudentName: r.StudentName, Province: r.Province}
	if _, err := t.FindResult(ctx, r.ExamID, key); err == nil {
		return result.ErrDuplicateResult
	}

	t.store.mu.Lock()
	t.store.nextResultID++
	r.ID = t.store.nextResultID
	r.CreatedAt = t.store.nextTimestampLocked()
	t.store.mu.Unlock()

	r.RankNational = 0
	r.RankProvincial = 0
	t.inserted = append(t.inserted, *r)
	return nil
}

func (t *memTx) ListRankEntries(ctx context.Context, examID int64) ([]result.RankEntry, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := make([]result.RankEntry, 0)
	add := func(r result.Result) {
		if r.ExamID == examID {
			out = append(out, result.RankEntry{ID: r.ID, Tazr: r.Tazr, Province: r.Province, CreatedAt: r.CreatedAt})
		}
	}
	for _, r := range t.store.results {
		add(r)
	}
	for _, r := range t.inserted {
		add(r)
	}
	return out, nil
}

func (t *memTx) UpdateRanks(ctx context.Context, examID int64, ranks []result.RankAssignment) error {
	for _, a := range ranks {
		t.ranks[a.ResultID] = a
	}
	return nil
}

func (t *memTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range t.inserted {
		if _, ok := s.exams[r.ExamID]; !ok {
			return fmt.Errorf("commit result: %w", exam.ErrExamNotFound)
		}
	}
	for _, r := range t.inserted {
		s.results[r.ID] = r
	}
	for id, a := range t.ranks {
		r, ok := s.results[id]
		if !ok {
			continue
		}
		r.RankNational = a.National
		r.RankProvincial = a.Provincial
		s.results[id] = r
	}
	return nil
}

// nextTimestampLocked returns a time after every created_at handed out so far.
func (s *Store) nextTimestampLocked() time.Time {
	ts := s.now().UTC()
	if !ts.After(s.lastCreatedAt) {
		ts = s.lastCreatedAt.Add(time.Microsecond)
	}
	s.lastCreatedAt = ts
	return ts
}
