package domain

// Milestone is a discrete, timestamped lifecycle state of a shipment.
type Milestone int

const (
	MilestoneCreated Milestone = iota
	MilestonePicked
	MilestonePacked
	MilestoneLabeled
	MilestoneLabelValidated
	MilestoneInTransit
	MilestoneOutForDelivery
	MilestoneDelivered
	MilestoneDeliveryFailed
)

var milestoneNames = map[Milestone]string{
	MilestoneCreated:        "created",
	MilestonePicked:         "picked",
	MilestonePacked:         "packed",
	MilestoneLabeled:        "labeled",
	MilestoneLabelValidated: "label_validated",
	MilestoneInTransit:      "in_transit",
	MilestoneOutForDelivery: "out_for_delivery",
	MilestoneDelivered:      "delivered",
	MilestoneDeliveryFailed: "delivery_attempt_failed",
}

func (m Milestone) String() string {
	if s, ok := milestoneNames[m]; ok {
		return s
	}
	return "unknown"
}

// Terminal reports whether no further milestones are expected.
func (m Milestone) Terminal() bool {
	return m == MilestoneDelivered
}

// PreLabel reports whether the milestone precedes label generation.
// Used to detect the race between label creation and the main order
// sync (a labeled event with a still pre-label cached status triggers
// one corrective status fetch).
func (m Milestone) PreLabel() bool {
	return m < MilestoneLabeled
}

// ParseMilestone maps an upstream timeline event name to a milestone.
// Unknown names return false; the poller counts and skips them.
func ParseMilestone(name string) (Milestone, bool) {
	for m, s := range milestoneNames {
		if s == name {
			return m, true
		}
	}
	return 0, false
}
