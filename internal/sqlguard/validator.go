// Package sqlguard is the safety gate between the language model and the
// data store. It lexically screens candidate SQL so that only single,
// read-only SELECT statements over the one known table ever reach the
// executor. The gate is deliberately lexical: column-level validity is the
// store's job and is reported back as an execution error.
package sqlguard

import (
	"fmt"
	"strings"
	"unicode"
)

// Rejection codes carried back to the translator. forbidden_keyword and
// unknown_table are suffixed with the offending token.
const (
	CodeEmpty              = "empty_query"
	CodeNotSelect          = "not_select"
	CodeMultipleStatements = "multiple_statements"
	CodeComment            = "comment_not_allowed"
	CodeForbiddenKeyword   = "forbidden_keyword"
	CodeUnknownTable       = "unknown_table"
	CodeMissingFrom        = "missing_from"
)

// DefaultDenylist covers mutating, schema-altering and session-control
// keywords plus the duckdb table functions that read outside the prepared
// view. Matched as whole tokens, case-insensitive, outside string literals.
var DefaultDenylist = []string{
	"insert", "update", "delete", "drop", "alter", "create", "truncate",
	"grant", "revoke", "exec", "execute", "call", "merge", "upsert",
	"pragma", "attach", "detach", "copy", "install", "load", "vacuum",
	"checkpoint", "export", "import", "set", "reset", "use",
	"begin", "commit", "rollback", "transaction",
	"read_parquet", "read_csv", "read_csv_auto", "read_json",
	"read_json_auto", "read_text", "glob", "sniff_csv",
}

var systemTablePrefixes = []string{"duckdb_", "pg_", "sqlite_", "information_schema"}

// RejectionReason is the typed outcome for a rejected candidate. Code is
// machine-readable for retry decisions; Detail is the feedback handed back
// to the generator on the single retry.
type RejectionReason struct {
	Code   string
	Detail string
}

func (r RejectionReason) String() string {
	return r.Code
}

// ValidatedQuery wraps SQL that has passed every gate rule. Only Validate
// constructs it, so the executor's signature alone guarantees no raw string
// can reach the store.
type ValidatedQuery struct {
	text string
}

func (q ValidatedQuery) Text() string { return q.text }

type Config struct {
	// Table is the single table candidates may reference.
	Table string
	// Denylist replaces DefaultDenylist when non-empty.
	Denylist []string
	// ExtraDenied extends the effective denylist.
	ExtraDenied []string
	// DefaultLimit is injected when a candidate has no LIMIT clause.
	DefaultLimit int
}

type Validator struct {
	table        string
	denied       map[string]struct{}
	defaultLimit int
}

func New(cfg Config) (*Validator, error) {
	table := strings.ToLower(strings.TrimSpace(cfg.Table))
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	list := cfg.Denylist
	if len(list) == 0 {
		list = DefaultDenylist
	}
	denied := make(map[string]struct{}, len(list)+len(cfg.ExtraDenied))
	for _, token := range list {
		denied[strings.ToLower(strings.TrimSpace(token))] = struct{}{}
	}
	for _, token := range cfg.ExtraDenied {
		denied[strings.ToLower(strings.TrimSpace(token))] = struct{}{}
	}
	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = 1000
	}
	return &Validator{table: table, denied: denied, defaultLimit: limit}, nil
}

// Validate applies the gate rules in order and returns either the
// normalized query or the first rejection. It is pure: no I/O, identical
// input always yields the identical outcome.
func (v *Validator) Validate(candidate string) (ValidatedQuery, *RejectionReason) {
	normalized := stripTrailingSemicolons(candidate)
	if normalized == "" {
		return ValidatedQuery{}, &RejectionReason{Code: CodeEmpty, Detail: "the query is empty"}
	}

	tokens, reject := scan(normalized)
	if reject != nil {
		return ValidatedQuery{}, reject
	}
	if len(tokens) == 0 {
		return ValidatedQuery{}, &RejectionReason{Code: CodeEmpty, Detail: "the query has no statement"}
	}

	if tokens[0].kind != tokenWord || tokens[0].lower != "select" {
		return ValidatedQuery{}, &RejectionReason{
			Code:   CodeNotSelect,
			Detail: "only SELECT statements are allowed",
		}
	}

	hasFrom := false
	hasLimit := false
	expectTable := false
	inFromClause := false
	// from-clause state of each enclosing paren scope; len is the depth
	var parenScopes []bool
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		switch token.kind {
		case tokenSemicolon:
			return ValidatedQuery{}, &RejectionReason{
				Code:   CodeMultipleStatements,
				Detail: "only one statement is allowed per query",
			}
		case tokenWord:
			if _, forbidden := v.denied[token.lower]; forbidden {
				upper := strings.ToUpper(token.lower)
				return ValidatedQuery{}, &RejectionReason{
					Code:   CodeForbiddenKeyword + ":" + upper,
					Detail: fmt.Sprintf("the keyword %s is not allowed", upper),
				}
			}
			switch token.lower {
			case "from":
				hasFrom = true
				expectTable = true
				inFromClause = true
				continue
			case "join":
				expectTable = true
				inFromClause = true
				continue
			case "limit":
				// only an outermost LIMIT caps the result; one inside a
				// subquery must not suppress the injected default
				if len(parenScopes) == 0 {
					hasLimit = true
				}
			case "where", "group", "order", "having", "on", "select", "union",
				"intersect", "except", "window", "qualify":
				inFromClause = false
				expectTable = false
			}
		case tokenQuotedIdent:
			// falls through to the table-reference check below
		case tokenComma:
			if inFromClause {
				expectTable = true
			}
			continue
		case tokenCloseParen:
			// restore the enclosing scope: a comma after a closed derived
			// table still re-arms the table check for the next reference
			if n := len(parenScopes); n > 0 {
				inFromClause = parenScopes[n-1]
				parenScopes = parenScopes[:n-1]
			} else {
				inFromClause = false
			}
			expectTable = false
			continue
		case tokenOpenParen:
			// a derived table's inner SELECT is screened by the same
			// token walk, in its own scope
			parenScopes = append(parenScopes, inFromClause)
			inFromClause = false
			expectTable = false
			continue
		default:
			continue
		}

		if !expectTable || (token.kind != tokenWord && token.kind != tokenQuotedIdent) {
			continue
		}
		expectTable = false

		name := token.lower
		qualified := i+2 < len(tokens) && tokens[i+1].kind == tokenDot
		if qualified {
			name = name + "." + tokens[i+2].lower
			i += 2
		}
		if reject := v.checkTableRef(name); reject != nil {
			return ValidatedQuery{}, reject
		}
	}

	if !hasFrom {
		return ValidatedQuery{}, &RejectionReason{
			Code:   CodeMissingFrom,
			Detail: fmt.Sprintf("the query must read from the %s table", v.table),
		}
	}

	if !hasLimit {
		normalized = fmt.Sprintf("%s LIMIT %d", normalized, v.defaultLimit)
	}
	return ValidatedQuery{text: normalized}, nil
}

func (v *Validator) checkTableRef(name string) *RejectionReason {
	if name == v.table {
		return nil
	}
	for _, prefix := range systemTablePrefixes {
		if strings.HasPrefix(name, prefix) || strings.HasPrefix(name, prefix+".") ||
			strings.Contains(name, "."+prefix) {
			return &RejectionReason{
				Code:   CodeUnknownTable + ":" + name,
				Detail: fmt.Sprintf("system tables are not accessible; only %s may be queried", v.table),
			}
		}
	}
	return &RejectionReason{
		Code:   CodeUnknownTable + ":" + name,
		Detail: fmt.Sprintf("the table %q does not exist; only %s may be queried", name, v.table),
	}
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenQuotedIdent
	tokenSemicolon
	tokenComma
	tokenDot
	tokenOpenParen
	tokenCloseParen
	tokenOther
)

type token struct {
	kind  tokenKind
	lower string
}

// scan walks the candidate, treating single-quoted strings (with ''
// escapes) and double-quoted identifiers as opaque, and rejecting SQL
// comments. Identifiers and keywords come back lowercased.
func scan(input string) ([]token, *RejectionReason) {
	tokens := make([]token, 0, 32)
	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'':
			i++
			for i < len(runes) {
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						i += 2
						continue
					}
					break
				}
				i++
			}
		case r == '"':
			start := i + 1
			i++
			for i < len(runes) && runes[i] != '"' {
				i++
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, lower: strings.ToLower(string(runes[start:i]))})
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			return nil, &RejectionReason{Code: CodeComment, Detail: "SQL comments are not allowed"}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			return nil, &RejectionReason{Code: CodeComment, Detail: "SQL comments are not allowed"}
		case r == ';':
			tokens = append(tokens, token{kind: tokenSemicolon})
		case r == ',':
			tokens = append(tokens, token{kind: tokenComma})
		case r == '.':
			tokens = append(tokens, token{kind: tokenDot})
		case r == '(':
			tokens = append(tokens, token{kind: tokenOpenParen})
		case r == ')':
			tokens = append(tokens, token{kind: tokenCloseParen})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i+1 < len(runes) && (unicode.IsLetter(runes[i+1]) || unicode.IsDigit(runes[i+1]) || runes[i+1] == '_') {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, lower: strings.ToLower(string(runes[start : i+1]))})
		case unicode.IsSpace(r) || unicode.IsDigit(r):
			// digits never start an identifier; numeric literals are inert
		default:
			tokens = append(tokens, token{kind: tokenOther})
		}
	}
	return tokens, nil
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
