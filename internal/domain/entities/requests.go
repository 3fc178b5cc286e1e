package entities

import "time"

// Mode selects the terminal label and fallback message used when cleaning
// generated text.
type Mode string

const (
	ModeAnswer     Mode = "answer"
	ModeSummary    Mode = "summary"
	ModeComparison Mode = "comparison"
)

// Outcome tells the caller how a request was resolved. Everything other than
// OutcomeAnswered is a state signal, not an error.
type Outcome string

const (
	OutcomeAnswered    Outcome = "answered"
	OutcomeNoSession   Outcome = "no_session"
	OutcomeNoDocuments Outcome = "no_documents"
	OutcomeNoContext   Outcome = "no_context"
	OutcomeUnrelated   Outcome = "unrelated"

	// OutcomeFailed is only recorded for metrics when an operation returns
	// an error. It never appears in an Answer.
	OutcomeFailed Outcome = "failed"
)

// Default request parameters.
const (
	DefaultTopK       = 4
	DefaultSummaryK   = 6
	DefaultCompareK   = 3
	DefaultHistoryLen = 5
)

// IngestRequest adds one parsed document to a session.
// An empty SessionID creates a new session.
type IngestRequest struct {
	SessionID    string
	DocumentName string
	Records      []Record
}

// IngestResult reports where a document landed.
type IngestResult struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// QueryRequest asks a question against a session.
// DocumentIDs is optional (all documents when empty); K defaults to DefaultTopK;
// only the last DefaultHistoryLen history messages are used.
type QueryRequest struct {
	SessionID   string        `json:"session_id"`
	Question    string        `json:"question"`
	DocumentIDs []string      `json:"document_ids,omitempty"`
	History     []ChatMessage `json:"history,omitempty"`
	K           int           `json:"k,omitempty"`
}

// SummarizeRequest summarizes the selected documents (all when empty).
type SummarizeRequest struct {
	SessionID   string   `json:"session_id"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// CompareRequest compares two or more documents (all when empty).
type CompareRequest struct {
	SessionID   string   `json:"session_id"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// RetrievalOutcome is the generation-free result of a query.
type RetrievalOutcome struct {
	Outcome    Outcome
	Hits       []ScoredChunk
	Confidence float64
	Relevant   bool
	Citations  []Citation
}

// DocumentContext is the retrieved context for one document in a comparison.
type DocumentContext struct {
	Document DocumentInfo
	Hits     []ScoredChunk
}

// Answer is what the caller renders for ask, summarize and compare.
// Sources lists the distinct cited document names in citation order.
type Answer struct {
	Outcome    Outcome    `json:"outcome"`
	Text       string     `json:"answer"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations"`
	Sources    []string   `json:"sources"`
}

// ResetResult reports whether a session existed before reset.
type ResetResult struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

// Status describes a session without touching it.
type Status struct {
	SessionID     string         `json:"session_id"`
	Loaded        bool           `json:"loaded"`
	DocumentCount int            `json:"document_count"`
	Documents     []DocumentInfo `json:"documents"`
	LastAccessed  time.Time      `json:"last_accessed,omitempty"`
}

// SessionEventKind names a session lifecycle transition.
type SessionEventKind string

const (
	SessionCreated  SessionEventKind = "created"
	SessionDocument SessionEventKind = "document_added"
	SessionTouched  SessionEventKind = "touched"
	SessionReset    SessionEventKind = "reset"
	SessionExpired  SessionEventKind = "expired"
)

// SessionEvent is emitted by the session store after a transition commits.
type SessionEvent struct {
	Kind          SessionEventKind
	SessionID     string
	DocumentID    string
	DocumentCount int
	LastAccessed  time.Time
}
