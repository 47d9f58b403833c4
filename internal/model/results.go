package model

// Status is the externally visible snapshot of the device.
// The JSON shape of /status is {probability, angle, slug, ip}; Mode and the
// AP fields are only used by the pages and the dashboard.
type Status struct {
	Probability float64 `json:"probability"`
	Angle       int     `json:"angle"`
	Slug        string  `json:"slug"`
	IP          string  `json:"ip"`
	Mode        Mode    `json:"mode"`
	Hostname    string  `json:"hostname,omitempty"`
	APAddress   string  `json:"ap_ip,omitempty"`
}

// ConfigureResult is the reply to a credential submission.
type ConfigureResult struct {
	Success  bool   `json:"success"`
	IP       string `json:"ip,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SlugResult is the reply to a market identifier change.
type SlugResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
