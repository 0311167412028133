package equilibrium

import (
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/loomworks/loom/internal/metrics"
	"github.com/loomworks/loom/types"
)

// Config tunes the equilibrium iteration. All fields are explicit; zero
// values fall back to the documented defaults.
type Config struct {
	// LearningRate scales each gradient update.
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	// MaxIterations caps the iteration count when convergence is slow.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// ConvergenceThreshold is the maximum per-agent level change below which
	// the iteration is considered converged.
	ConvergenceThreshold float64 `json:"convergence_threshold" yaml:"convergence_threshold"`
	// MinParticipation collapses levels below it to exactly zero, which is
	// what makes dominated agents vanish from the result.
	MinParticipation float64 `json:"min_participation" yaml:"min_participation"`
}

// DefaultConfig returns the default selector configuration.
func DefaultConfig() Config {
	return Config{
		LearningRate:         0.1,
		MaxIterations:        100,
		ConvergenceThreshold: 0.001,
		MinParticipation:     0.01,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.ConvergenceThreshold <= 0 {
		c.ConvergenceThreshold = d.ConvergenceThreshold
	}
	if c.MinParticipation <= 0 {
		c.MinParticipation = d.MinParticipation
	}
	return c
}

// AgentParticipation is one agent's standing in an equilibrium result.
type AgentParticipation struct {
	AgentID string          `json:"agent_id"`
	Type    types.AgentType `json:"agent_type"`
	// Level is the agent's participation level in [0, 1].
	Level float64 `json:"participation_level"`
	// Effectiveness scores the agent's fit for the task, in [0, 1].
	Effectiveness float64 `json:"effectiveness_score"`
	// RedundancyPenalty measures overlap-weighted competition pressure.
	RedundancyPenalty float64 `json:"redundancy_penalty"`
	// Utility is the agent's net payoff at its current level; may be negative.
	Utility float64 `json:"utility"`
}

// Result is the outcome of one equilibrium computation.
type Result struct {
	// Participations holds every agent with positive participation, sorted
	// descending by level (stable on input order for ties).
	Participations []AgentParticipation `json:"participations"`
	// Converged reports whether the iteration reached a fixed point before
	// the iteration cap. False is advisory, not an error.
	Converged bool `json:"converged"`
	// Iterations is the number of update rounds performed.
	Iterations int `json:"iterations"`
}

// Selector computes stable participation levels across a pool of agents for
// one task. It keeps no state across calls, so a single Selector may be used
// from many goroutines.
type Selector struct {
	config  Config
	logger  *zap.Logger
	metrics atomic.Pointer[metrics.Collector]
}

// NewSelector creates a selector. A nil logger falls back to a no-op logger.
func NewSelector(config Config, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		config: config.withDefaults(),
		logger: logger.With(zap.String("component", "equilibrium_selector")),
	}
}

// SetMetrics attaches a metrics collector. Safe to call concurrently with
// FindEquilibrium; a nil collector disables recording.
func (s *Selector) SetMetrics(collector *metrics.Collector) {
	s.metrics.Store(collector)
}

// roleKeywords maps each agent role to the substrings of a task description
// that indicate the role is a natural fit.
var roleKeywords = map[types.AgentType][]string{
	types.TypeCoder:      {"code", "implement", "build"},
	types.TypeTester:     {"test", "verify", "validate"},
	types.TypeReviewer:   {"review", "audit"},
	types.TypeArchitect:  {"architecture", "design"},
	types.TypeResearcher: {"research", "investigate"},
	types.TypeAnalyzer:   {"analy"}, // analyze / analysis
	types.TypeDocumenter: {"document", "docs"},
}

// FindEquilibrium computes participation levels for the agents and returns
// every agent still holding a positive level, sorted descending by level.
func (s *Selector) FindEquilibrium(task types.Task, agents []types.AgentInfo) Result {
	switch len(agents) {
	case 0:
		return Result{}
	case 1:
		// A lone agent faces no competition; its level is fixed.
		eff := s.effectiveness(task, agents[0])
		result := Result{
			Participations: []AgentParticipation{{
				AgentID:       agents[0].ID,
				Type:          agents[0].Type,
				Level:         1.0,
				Effectiveness: eff,
				Utility:       eff,
			}},
			Converged: true,
		}
		s.metrics.Load().RecordEquilibrium(true, 0)
		return result
	}

	states := make([]AgentParticipation, len(agents))
	for i, agent := range agents {
		states[i] = AgentParticipation{
			AgentID:       agent.ID,
			Type:          agent.Type,
			Level:         1.0 / float64(len(agents)),
			Effectiveness: s.effectiveness(task, agent),
		}
	}

	// Pairwise overlaps are constant for the run.
	overlaps := make([][]float64, len(agents))
	for i := range agents {
		overlaps[i] = make([]float64, len(agents))
		for j := range agents {
			if i == j {
				continue
			}
			overlaps[i][j] = capabilityOverlap(agents[i], agents[j])
		}
	}

	converged := false
	iterations := 0
	for iter := 0; iter < s.config.MaxIterations; iter++ {
		iterations = iter + 1
		previous := make([]float64, len(states))
		for i := range states {
			previous[i] = states[i].Level
		}

		// Updates read the previous snapshot so agent order does not matter.
		for i := range states {
			competition := 0.0
			for j := range states {
				if i == j {
					continue
				}
				competition += overlaps[i][j] * previous[j]
			}
			states[i].RedundancyPenalty = competition * 0.5
			states[i].Utility = states[i].Effectiveness*previous[i] - states[i].RedundancyPenalty

			level := previous[i] + s.config.LearningRate*(states[i].Utility-competition)
			level = clamp01(level)
			if level < s.config.MinParticipation {
				level = 0
			}
			states[i].Level = level
		}

		// Levels contest a fixed total capacity: scale down when the sum
		// exceeds 1, but never scale up (the sum may legitimately stay
		// below 1 once agents collapse to zero).
		sum := 0.0
		for i := range states {
			sum += states[i].Level
		}
		if sum > 1 {
			for i := range states {
				states[i].Level /= sum
			}
		}

		maxDelta := 0.0
		for i := range states {
			if d := math.Abs(states[i].Level - previous[i]); d > maxDelta {
				maxDelta = d
			}
		}
		if maxDelta < s.config.ConvergenceThreshold {
			converged = true
			break
		}
	}

	participations := make([]AgentParticipation, 0, len(states))
	for _, st := range states {
		if st.Level > 0 {
			participations = append(participations, st)
		}
	}
	sort.SliceStable(participations, func(i, j int) bool {
		return participations[i].Level > participations[j].Level
	})

	s.metrics.Load().RecordEquilibrium(converged, iterations)
	s.logger.Debug("equilibrium computed",
		zap.String("task_id", task.ID),
		zap.Int("agents", len(agents)),
		zap.Int("selected", len(participations)),
		zap.Int("iterations", iterations),
		zap.Bool("converged", converged),
	)
	return Result{
		Participations: participations,
		Converged:      converged,
		Iterations:     iterations,
	}
}

// SelectTopAgents runs FindEquilibrium and returns the underlying AgentInfo
// records of the top n participants.
func (s *Selector) SelectTopAgents(task types.Task, agents []types.AgentInfo, n int) []types.AgentInfo {
	if n <= 0 {
		return nil
	}
	result := s.FindEquilibrium(task, agents)

	byID := make(map[string]types.AgentInfo, len(agents))
	for _, agent := range agents {
		byID[agent.ID] = agent
	}

	top := make([]types.AgentInfo, 0, n)
	for _, p := range result.Participations {
		top = append(top, byID[p.AgentID])
		if len(top) == n {
			break
		}
	}
	return top
}

// effectiveness scores how well an agent fits a task, in [0, 1]. Capability
// match carries most of the weight; a role keyword appearing in the task
// description adds the rest.
func (s *Selector) effectiveness(task types.Task, agent types.AgentInfo) float64 {
	capabilityMatch := 0.5
	if len(task.RequiredCapabilities) > 0 {
		matched := 0
		for _, required := range task.RequiredCapabilities {
			if agent.HasCapability(required) {
				matched++
			}
		}
		capabilityMatch = float64(matched) / float64(len(task.RequiredCapabilities))
	}

	typeBoost := 0.3
	description := strings.ToLower(task.Description)
	for _, keyword := range roleKeywords[agent.Type] {
		if strings.Contains(description, keyword) {
			typeBoost = 1.0
			break
		}
	}

	return 0.7*capabilityMatch + 0.3*typeBoost
}

// capabilityOverlap is the ratio of shared capabilities to the larger of the
// two capability sets. Agents declaring no capabilities fall back to a role
// comparison as a similarity proxy.
func capabilityOverlap(a, b types.AgentInfo) float64 {
	if len(a.Capabilities) == 0 && len(b.Capabilities) == 0 {
		if a.Type == b.Type {
			return 0.8
		}
		return 0.2
	}

	shared := 0
	for _, c := range a.Capabilities {
		if b.HasCapability(c) {
			shared++
		}
	}
	larger := len(a.Capabilities)
	if len(b.Capabilities) > larger {
		larger = len(b.Capabilities)
	}
	if larger == 0 {
		return 0
	}
	return float64(shared) / float64(larger)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
