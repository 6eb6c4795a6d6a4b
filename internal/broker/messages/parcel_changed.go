package messages

import "time"

// Actions published on the parcel.changed topic.
const (
	ActionCreated    = "created"
	ActionUpdated    = "updated"
	ActionDeleted    = "deleted"
	ActionStatusSet  = "status"
	ActionPickup     = "pickup"
	ActionBulkImport = "import"
)

// ParcelChanged notifies other dashboard instances that provider-side state
// moved, so cached aggregates (stats snapshot) must be dropped. Code is empty
// for batch actions covering many parcels at once.
type ParcelChanged struct {
	Code   string    `json:"code,omitempty"`
	Action string    `json:"action"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}
