// Package chat orchestrates one conversational turn: window the history,
// generate SQL, gate it, execute it, compose the answer, record the
// exchange. Each step either advances the turn or fails it with a typed
// kind; a failed turn still produces an answer the user can read.
package chat

// Turn states in the order a successful turn passes through them.
const (
	StateReceived   = "RECEIVED"
	StateWindowed   = "WINDOWED"
	StateTranslated = "TRANSLATED"
	StateValidated  = "VALIDATED"
	StateExecuted   = "EXECUTED"
	StateComposed   = "COMPOSED"
	StateRecorded   = "RECORDED"
	StateFailed     = "FAILED"
)

// Failure kinds carried on failed turns.
const (
	KindGenerationFailed = "generation_failed"
	KindQueryTimeout     = "query_timeout"
	KindExecutionError   = "execution_error"
	KindComposeFailed    = "compose_failed"
)

// TurnResult is the outcome of one turn. ErrorKind is empty on success;
// when set, Answer holds the apology that was recorded in its place.
type TurnResult struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Answer    string `json:"answer"`
	SQL       string `json:"sql,omitempty"`
	RowCount  int    `json:"row_count"`
	Truncated bool   `json:"truncated,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func apologyFor(kind string) string {
	switch kind {
	case KindGenerationFailed:
		return "I'm sorry, I couldn't turn that question into a database query. Could you rephrase it?"
	case KindQueryTimeout:
		return "I'm sorry, that question took too long to answer. Try narrowing it down, for example to a shorter date range."
	case KindExecutionError:
		return "I'm sorry, something went wrong while looking that up. Could you try asking differently?"
	case KindComposeFailed:
		return "I'm sorry, I found the data but couldn't put an answer together. Please try again."
	default:
		return "I'm sorry, something went wrong while answering that question."
	}
}
