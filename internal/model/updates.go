package model

// AvailableUpdates is the result of a refresh: one human readable line per
// pending update, grouped by subsystem.
type AvailableUpdates struct {
	System   []string `json:"system" yaml:"system"`
	Flatpak  []string `json:"flatpak" yaml:"flatpak"`
	Firmware []string `json:"firmware" yaml:"firmware"`
}

func (u AvailableUpdates) TotalCount() int {
	return len(u.System) + len(u.Flatpak) + len(u.Firmware)
}

func (u AvailableUpdates) IsEmpty() bool {
	return u.TotalCount() == 0
}
