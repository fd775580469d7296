package aura

import "auraconnect/internal/lights"

// ProviderSnapshot is a read-only copy of one provider's device tree.
type ProviderSnapshot struct {
	Name    string           `json:"name"`
	Active  bool             `json:"active"`
	Devices []DeviceSnapshot `json:"devices"`
}

type DeviceSnapshot struct {
	Name   string         `json:"name"`
	Lights []lights.Color `json:"lights"`
}

// Snapshot copies the provider → device → light tree.
func (s *Service) Snapshot() []ProviderSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ProviderSnapshot, 0, len(s.entries))
	for _, e := range s.entries {
		ps := ProviderSnapshot{Name: e.provider.Name(), Active: e.active}
		if e.active {
			for _, d := range e.provider.Devices() {
				ds := DeviceSnapshot{Name: d.Name()}
				for _, l := range d.Lights() {
					ds.Lights = append(ds.Lights, l.Color)
				}
				ps.Devices = append(ps.Devices, ds)
			}
		}
		out = append(out, ps)
	}
	return out
}
