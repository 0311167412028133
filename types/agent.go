package types

// AgentType identifies the role an agent plays in the system.
type AgentType string

// Built-in agent roles
const (
	TypeGeneric    AgentType = "generic"
	TypeCoder      AgentType = "coder"
	TypeTester     AgentType = "tester"
	TypeReviewer   AgentType = "reviewer"
	TypeArchitect  AgentType = "architect"
	TypeResearcher AgentType = "researcher"
	TypeAnalyzer   AgentType = "analyzer"
	TypeDocumenter AgentType = "documenter"
)

// AgentInfo is a capability descriptor for a candidate agent. The
// orchestration core never executes agents itself; it only needs their
// identity, role, and declared capabilities to rank them for a task.
type AgentInfo struct {
	ID           string    `json:"id"`
	Type         AgentType `json:"type"`
	Capabilities []string  `json:"capabilities"`
}

// HasCapability reports whether the agent declares the given capability.
func (a AgentInfo) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Task describes a unit of work that agents compete to participate in.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	// RequiredCapabilities lists the capabilities the task calls for.
	// An empty list means no specific capability is required.
	RequiredCapabilities []string `json:"required_capabilities"`
	// Priority orders tasks relative to each other; higher runs first.
	Priority int `json:"priority"`
	// Complexity is a normalized difficulty estimate in [0, 1].
	Complexity float64 `json:"complexity"`
}
