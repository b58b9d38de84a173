package domain

import "strings"

// VehicleIdentity is the best-effort identification of a vehicle. Fields the
// identifying source could not determine are empty strings rather than
// errors; callers decide whether a partial identity is usable.
type VehicleIdentity struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

// Empty reports whether no field of the identity is populated.
func (v VehicleIdentity) Empty() bool {
	return v.Make == "" && v.Model == "" && v.Year == ""
}

// Key returns a normalized form used to deduplicate repeated identification
// requests for the same vehicle.
func (v VehicleIdentity) Key() string {
	return strings.ToLower(strings.TrimSpace(v.Make) + "|" + strings.TrimSpace(v.Model) + "|" + strings.TrimSpace(v.Year))
}
