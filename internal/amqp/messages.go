package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Export scopes. "all" snapshots every expense; "paid" restricts the export
// to expenses already paid out.
const (
	ScopeAll  = "all"
	ScopePaid = "paid"
)

// ExportJobMessage asks the export worker to produce a CSV snapshot. It
// carries only the scope; the worker reads the expenses from the store when
// it picks the job up, so the file reflects the state at processing time.
type ExportJobMessage struct {
	Scope       string    `json:"scope"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewExportJobMessage(scope string) *ExportJobMessage {
	return &ExportJobMessage{
		Scope:       scope,
		RequestedAt: time.Now(),
	}
}

// Validate rejects unknown scopes before they reach the queue.
func (m *ExportJobMessage) Validate() error {
	switch m.Scope {
	case ScopeAll, ScopePaid:
		return nil
	default:
		return fmt.Errorf("unknown export scope %q", m.Scope)
	}
}

func (m *ExportJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportJobMessageFromJSON(data []byte) (*ExportJobMessage, error) {
	var msg ExportJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
