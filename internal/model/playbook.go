package model

// TimelineStage is one step of the consequence timeline, relative to a due date.
type TimelineStage struct {
	Title       string
	Description string
	DaysOffset  int
}

// ActionPlan is the prescribed remediation for a task category at a given health status.
type ActionPlan struct {
	Title        string
	Category     TaskCategory
	HealthStatus HealthStatus
	Steps        []string
	Timeline     []TimelineStage
}
