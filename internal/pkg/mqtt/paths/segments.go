package paths

// Topic segments consumed by the feed. The vehicle side publishes them
// under a configurable root.

// Upstream: Vehicle -> Cloud
const (
	// Online is the topic segment for reporting vehicle online/offline status.
	// It is also the vehicle's will topic, so an unexpected drop is reported
	// by the broker.
	// Payload: { "vehicle_id": "...", "online": true/false, "reason": "..." }
	// Pattern: {root}/online/{vehicleID}
	Online = "online"
)
