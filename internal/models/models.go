package models

import (
	"time"
)

// Status is the reachability classification of a device.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// Device is a monitored switch. Identity is the IP address.
type Device struct {
	IP   string `yaml:"ip" json:"ip"`
	Name string `yaml:"name" json:"name"`
}

// ProbeResult captures the outcome of a single reachability check.
type ProbeResult struct {
	Device     Device    `json:"device"`
	Reachable  bool      `json:"reachable"`
	ObservedAt time.Time `json:"observed_at"`
}

// TransitionEvent is emitted once per status change of a device.
type TransitionEvent struct {
	Device    Device    `json:"device"`
	NewStatus Status    `json:"new_status"`
	Timestamp time.Time `json:"timestamp"`
}

// TransitionRecord is a persisted transition as read back from storage.
type TransitionRecord struct {
	ID        int64     `json:"id"`
	IP        string    `json:"ip"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordFromEvent flattens an event into its stored shape.
func RecordFromEvent(id int64, ev TransitionEvent) TransitionRecord {
	return TransitionRecord{
		ID:        id,
		IP:        ev.Device.IP,
		Name:      ev.Device.Name,
		Status:    ev.NewStatus,
		Timestamp: ev.Timestamp,
	}
}

// Entry is the per-device row of a Snapshot.
type Entry struct {
	Device       Device     `json:"device"`
	Status       Status     `json:"status"`
	DownSince    *time.Time `json:"down_since,omitempty"`
	RecentlyDown bool       `json:"recently_down"`
}

// Snapshot stores the state of every device after one polling cycle.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Entries   []Entry   `json:"entries"`
}

// Split partitions the entries into reachable and unreachable devices,
// preserving order within each group.
func (s Snapshot) Split() (up, down []Entry) {
	for _, e := range s.Entries {
		if e.Status == StatusDown {
			down = append(down, e)
		} else {
			up = append(up, e)
		}
	}
	return up, down
}
