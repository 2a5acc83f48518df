package provisioner

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Status is the outcome of one administrative operation.
type Status string

const (
	// StatusSucceeded means the statement ran and changed (or confirmed) the target.
	StatusSucceeded Status = "succeeded"
	// StatusAlreadyExists means a create found its target already present.
	StatusAlreadyExists Status = "already-exists"
	// StatusNotFound means a drop or truncate found no target.
	StatusNotFound Status = "not-found"
	// StatusFailed means the operation failed for any other reason.
	StatusFailed Status = "failed"
)

// ErrNotConnected is returned by operations issued without an open session.
var ErrNotConnected = errors.New("no open database session")

// PostgreSQL error codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	codeDuplicateDatabase  = "42P04"
	codeDuplicateSchema    = "42P06"
	codeDuplicateTable     = "42P07"
	codeDuplicateObject    = "42710"
	codeInvalidCatalogName = "3D000"
	codeInvalidSchemaName  = "3F000"
	codeUndefinedTable     = "42P01"
	codeUndefinedObject    = "42704"
)

// Result describes the outcome of one operation on one target.
type Result struct {
	Operation string
	Target    string
	Status    Status
	// Affected is the number of rows touched, for operations that report it.
	Affected int64
	Err      error
}

// OK reports whether the operation reached its intended end state.
func (r Result) OK() bool {
	return r.Status != StatusFailed
}

// String renders the result as a single status line.
func (r Result) String() string {
	switch r.Status {
	case StatusSucceeded:
		return fmt.Sprintf("%s %s: succeeded", r.Operation, r.Target)
	case StatusAlreadyExists:
		return fmt.Sprintf("%s %s: already exists", r.Operation, r.Target)
	case StatusNotFound:
		return fmt.Sprintf("%s %s: not found", r.Operation, r.Target)
	default:
		return fmt.Sprintf("%s %s: failed: %v", r.Operation, r.Target, r.Err)
	}
}

// Classifier maps the error of one operation to a Status.
type Classifier func(err error) Status

// Classify maps an error returned by an administrative create, drop or truncate to a Status.
// A nil error is StatusSucceeded. Errors raised while reaching the server are always StatusFailed.
func Classify(err error) Status {
	if err == nil {
		return StatusSucceeded
	}
	var se *sessionError
	if errors.As(err, &se) {
		return StatusFailed
	}
	switch sqlState(err) {
	case codeDuplicateDatabase, codeDuplicateSchema, codeDuplicateTable, codeDuplicateObject:
		return StatusAlreadyExists
	case codeInvalidCatalogName, codeInvalidSchemaName, codeUndefinedTable, codeUndefinedObject:
		return StatusNotFound
	default:
		return StatusFailed
	}
}

// ClassifyStrict maps any error to StatusFailed. It serves operations whose target must exist:
// connecting, running scripts and loading data.
func ClassifyStrict(err error) Status {
	if err == nil {
		return StatusSucceeded
	}
	return StatusFailed
}

// sessionError marks a failure to open the session an administrative operation needs.
type sessionError struct {
	err error
}

func (e *sessionError) Error() string {
	return e.err.Error()
}

func (e *sessionError) Unwrap() error {
	return e.err
}

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func newResult(operation, target string, err error) Result {
	return classifyResult(operation, target, err, Classify)
}

func classifyResult(operation, target string, err error, classify Classifier) Result {
	status := classify(err)
	r := Result{Operation: operation, Target: target, Status: status}
	if status != StatusSucceeded {
		r.Err = err
	}
	return r
}
