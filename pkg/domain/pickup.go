package domain

// TimeSlot is a pickup window offered by the availability endpoint.
type TimeSlot struct {
	ID        string `json:"id"`
	Display   string `json:"display"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Available bool   `json:"available"`
}

// PickupDetails is the schedule captured on the pickup step.
type PickupDetails struct {
	Date                  string      `json:"date"`
	TimeSlot              TimeSlot    `json:"timeSlot"`
	ReadyTime             string      `json:"readyTime"`
	Instructions          string      `json:"instructions"`
	PrimaryContact        ContactInfo `json:"primaryContact"`
	BackupContact         ContactInfo `json:"backupContact"`
	AccessRequirements    []string    `json:"accessRequirements"`
	EquipmentRequirements []string    `json:"equipmentRequirements"`
	LoadingDock           bool        `json:"loadingDock"`
	AuthorizedPersonnel   []string    `json:"authorizedPersonnel"`
}
