// Package session keeps the rolling conversation history for each sender.
//
// A history holds at most MaxPairs user+assistant round trips; older entries
// are discarded oldest-first when Truncate runs. The persona system prompt is
// never stored here, it is injected per request by the prompt package.
package session

// Role tags a history entry with its conversational origin.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is a single immutable message in a sender's history.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Store is the conversation history contract shared by the in-memory and
// sqlite backends. Mutations for one sender are serialized by the
// implementation; operations on distinct senders do not block one another.
type Store interface {
	// History returns the sender's entries in chronological order, or an
	// empty slice for an unknown sender. The returned slice is a copy.
	History(sender string) []Entry

	// AppendUser adds a user entry, creating the sender's history if absent.
	AppendUser(sender, text string)

	// AppendAssistant adds an assistant entry.
	AppendAssistant(sender, text string)

	// Truncate drops the oldest entries so at most 2*MaxPairs remain.
	Truncate(sender string)

	// RollbackLastUser removes the trailing entry iff it is a user entry.
	// It is the compensating action for a failed completion and is
	// idempotent: a second call finds an assistant tail (or nothing) and
	// does not touch the history.
	RollbackLastUser(sender string)
}
