package record

// EventType names a record state transition.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes a committed mutation in one owner's namespace.
type Event struct {
	Type   EventType `json:"type"`
	ID     uint64    `json:"id"`
	Record *Record   `json:"record,omitempty"`
}
