package stage

// Health summarizes whether a stage can currently do its work, such as an
// external binary being installed or an upstream API being configured.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Degraded is ready but carries a note, for stages that fall back to a
// reduced mode.
func Degraded(name, detail string) Health {
	return Health{Name: name, Ready: true, Detail: detail}
}
