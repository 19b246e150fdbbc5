// Package intent parses structured action tags out of assistant replies.
//
// The language model is prompted to end its reply with at most one bracketed
// action tag, e.g. [CREATE date="2026-03-02" time="09:00"]. The tag grammar is
// a small wire protocol: every captured field is validated before an action is
// built, and all tag-like residue is stripped from the text spoken to the
// caller.
package intent

// Kind discriminates the action variants.
type Kind string

const (
	KindCreate Kind = "CREATE"
	KindDelete Kind = "DELETE"
	KindUpdate Kind = "UPDATE"
	KindCheck  Kind = "CHECK"
)

// Action is one validated scheduling directive extracted from a reply.
//
// Field usage by kind:
//   - CREATE: Date, Time; optional Name, Reason
//   - DELETE: Date+Time, or Name (never required together)
//   - UPDATE: (Date+Time or Name) plus NewDate, NewTime
//   - CHECK:  Date, Time
type Action struct {
	Kind    Kind
	Date    string
	Time    string
	NewDate string
	NewTime string
	Name    string
	Reason  string
}

// HasName reports whether the action identifies an appointment by name.
func (a *Action) HasName() bool {
	return a != nil && a.Name != ""
}
