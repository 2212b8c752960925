package topic

// MQTT wildcard levels.
const (
	// Wildcard matches exactly one level: "iov/v1/online/+" matches "iov/v1/online/V1".
	Wildcard = "+"

	// MultiWildcard matches the rest of the topic and must be the last level.
	MultiWildcard = "#"
)
