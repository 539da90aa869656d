package types

import (
	"strings"
)

const ContextUserKey = "user"

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in progress"
	StatusDone       = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Real-time event names pushed over the websocket.
const (
	EventTaskAssigned = "taskAssigned"
	EventTaskDueSoon  = "taskDueSoon"
)

const TargetTypeTask = "Task"

var (
	// Default allowed origins for development
	defaultOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}
)

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleManager || role == RoleUser
}

func ValidStatus(status string) bool {
	return status == StatusTodo || status == StatusInProgress || status == StatusDone
}

func ValidPriority(priority string) bool {
	return priority == PriorityLow || priority == PriorityMedium || priority == PriorityHigh
}

func ValidFrequency(frequency string) bool {
	return frequency == FrequencyDaily || frequency == FrequencyWeekly || frequency == FrequencyMonthly
}

// AllowedOrigins merges the development defaults with the client URL and a
// comma-separated list of extra origins.
func AllowedOrigins(clientURL, extra string) []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL != "" {
		origins = append(origins, clientURL)
	}

	if extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
