package aura

import (
	"strconv"

	"auraconnect/internal/lights"
)

// DedupeNames makes device names unique within one provider. Every device
// whose name is shared with another gets " k" appended, where k is its
// 1-based position among the devices sharing that name. Unique names are left
// alone. A generated name can collide with a name the provider already
// reported ("Strip", "Strip", "Strip 1"), so the scan repeats over the
// current names until none are shared. It returns the number of devices
// renamed at least once.
//
// The suffixes follow the provider's reported order, so they are not stable
// across runs if that order changes.
func DedupeNames(devices []lights.Device) int {
	renamed := make(map[int]bool)
	for {
		groups := make(map[string][]int)
		var order []string
		for i, d := range devices {
			name := d.Name()
			if _, ok := groups[name]; !ok {
				order = append(order, name)
			}
			groups[name] = append(groups[name], i)
		}

		collided := false
		for _, name := range order {
			group := groups[name]
			if len(group) < 2 {
				continue
			}
			collided = true
			for k, i := range group {
				devices[i].SetName(name + " " + strconv.Itoa(k+1))
				renamed[i] = true
			}
		}
		if !collided {
			return len(renamed)
		}
	}
}
