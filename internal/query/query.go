package query

import (
	"context"
	"errors"
	"time"

	"github.com/Abhinay1235/aichatbot-service/internal/schema"
	"github.com/Abhinay1235/aichatbot-service/internal/sqlguard"
)

// ErrTimeout reports that a query exceeded its execution deadline. The
// distinction from ErrExecution matters to the caller: a timeout is not
// retried and is surfaced as its own failure kind.
var ErrTimeout = errors.New("query timed out")

// ErrExecution wraps store-level failures such as references to columns
// that do not exist. The validator is lexical, so these are expected.
var ErrExecution = errors.New("query execution failed")

type Result struct {
	Columns []string
	Rows    [][]any
	// RowCount is len(Rows) after the hard cap was applied.
	RowCount int
	// Truncated reports that the store produced more rows than the cap.
	Truncated bool
	Duration  time.Duration
}

// Engine executes validated queries against the prepared dataset. The
// parameter type is the whole contract: there is no way to hand an Engine
// a string that did not pass the gate.
type Engine interface {
	Execute(ctx context.Context, q sqlguard.ValidatedQuery) (Result, error)
	DescribeTable(ctx context.Context) (schema.Descriptor, error)
}
