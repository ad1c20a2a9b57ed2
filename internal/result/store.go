package result

import (
	"context"

	"azmoon/internal/exam"
)

// LockScope names the per-exam write lock a transaction holds. Submissions
// and rank rewrites of the same exam use different scopes.
type LockScope string

const (
	ScopeSubmit LockScope = "results"
	ScopeRanks  LockScope = "ranks"
)

// Store persists results. InTx runs fn in one transaction that holds the
// scope's lock for examID; writes made through tx are visible to others only
// after fn returns nil. Lock waits that exceed the store's timeout fail with
// ErrStorageContention.
type Store interface {
	InTx(ctx context.Context, scope LockScope, examID int64, fn func(ctx context.Context, tx Tx) error) error
	ExamExists(ctx context.Context, examID int64) (bool, error)
	GetResult(ctx context.Context, id int64) (*Result, error)
	ListResults(ctx context.Context, examID int64, province string) ([]Result, error)
	FindResult(ctx context.Context, examID int64, key DedupKey) (*Result, error)
}

type Tx interface {
	ExamExists(ctx context.Context, examID int64) (bool, error)
	// FindResult returns ErrResultNotFound when no result matches key.
	FindResult(ctx context.Context, examID int64, key DedupKey) (*Result, error)
	ListQuestions(ctx context.Context, examID int64) ([]exam.Question, error)
	// InsertResult fills r.ID and r.CreatedAt. A row that collides with an
	// existing student yields ErrDuplicateResult.
	InsertResult(ctx context.Context, r *Result) error
	ListRankEntries(ctx context.Context, examID int64) ([]RankEntry, error)
	UpdateRanks(ctx context.Context, examID int64, ranks []RankAssignment) error
}
