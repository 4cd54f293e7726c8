package swis

import (
	"encoding/json"
	"fmt"
)

// Rows is the outcome of a query: result rows, or the fault that prevented them.
type Rows struct {
	Results []json.RawMessage
	Err     error
}

// Len returns the number of rows (zero on fault).
func (r Rows) Len() int { return len(r.Results) }

// Empty reports whether no row is available.
func (r Rows) Empty() bool { return len(r.Results) == 0 }

// Decode unmarshals row i into v.
func (r Rows) Decode(i int, v any) error {
	if i < 0 || i >= len(r.Results) {
		return fmt.Errorf("row %d out of range (%d rows)", i, len(r.Results))
	}
	return json.Unmarshal(r.Results[i], v)
}

// Reply is the outcome of a verb invocation or update: the 2xx body, or the
// transport, HTTP or decode fault that replaced it.
type Reply struct {
	Body json.RawMessage
	Err  error
}

// OK reports whether the server accepted the call. Void verbs answer null,
// which still counts.
func (r Reply) OK() bool { return r.Err == nil }
