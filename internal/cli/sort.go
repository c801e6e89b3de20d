package cli

import (
	"sort"

	"github.com/pfrederiksen/shelter-watch/internal/shelter"
)

// SortOrder represents the available sorting options for the shelter list
type SortOrder string

const (
	SortByName      SortOrder = "name"
	SortByOccupants SortOrder = "occupants"
	SortByCapacity  SortOrder = "capacity"
)

func parseSortOrder(s string) (SortOrder, bool) {
	switch order := SortOrder(s); order {
	case SortByName, SortByOccupants, SortByCapacity:
		return order, true
	}
	return "", false
}

// latestByShelter returns the most recent snapshot of every shelter. Later
// snapshots in the slice win, matching announcement order.
func latestByShelter(snapshots []shelter.Snapshot) []shelter.Snapshot {
	index := make(map[string]int)
	latest := make([]shelter.Snapshot, 0)
	for _, s := range snapshots {
		if i, ok := index[s.ShelterName]; ok {
			latest[i] = s
			continue
		}
		index[s.ShelterName] = len(latest)
		latest = append(latest, s)
	}
	return latest
}

// sortSnapshots sorts snapshots in place by the specified order
func sortSnapshots(snapshots []shelter.Snapshot, order SortOrder) {
	switch order {
	case SortByName:
		sort.SliceStable(snapshots, func(i, j int) bool {
			return snapshots[i].ShelterName < snapshots[j].ShelterName
		})
	case SortByOccupants:
		sort.SliceStable(snapshots, func(i, j int) bool {
			if snapshots[i].Occupants != snapshots[j].Occupants {
				return snapshots[i].Occupants > snapshots[j].Occupants
			}
			// If occupants are equal, sort by name
			return snapshots[i].ShelterName < snapshots[j].ShelterName
		})
	case SortByCapacity:
		sort.SliceStable(snapshots, func(i, j int) bool {
			if snapshots[i].Capacity != snapshots[j].Capacity {
				return snapshots[i].Capacity > snapshots[j].Capacity
			}
			return snapshots[i].ShelterName < snapshots[j].ShelterName
		})
	}
}
