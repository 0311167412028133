package equilibrium

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/loomworks/loom/types"
)

var agentTypes = []types.AgentType{
	types.TypeGeneric,
	types.TypeCoder,
	types.TypeTester,
	types.TypeReviewer,
	types.TypeArchitect,
	types.TypeResearcher,
	types.TypeAnalyzer,
	types.TypeDocumenter,
}

var capabilityPool = []string{"code", "test", "review", "docs", "research", "analyze", "design"}

func genAgents(t *rapid.T) []types.AgentInfo {
	n := rapid.IntRange(0, 8).Draw(t, "agents")
	agents := make([]types.AgentInfo, n)
	for i := range agents {
		caps := rapid.SliceOfNDistinct(
			rapid.SampledFrom(capabilityPool), 0, len(capabilityPool),
			func(s string) string { return s },
		).Draw(t, fmt.Sprintf("caps%d", i))
		agents[i] = types.AgentInfo{
			ID:           fmt.Sprintf("agent-%d", i),
			Type:         rapid.SampledFrom(agentTypes).Draw(t, fmt.Sprintf("type%d", i)),
			Capabilities: caps,
		}
	}
	return agents
}

func genTask(t *rapid.T) types.Task {
	return types.Task{
		ID:          "task",
		Description: rapid.SampledFrom([]string{"", "test the build", "review and document", "arbitrary work"}).Draw(t, "description"),
		RequiredCapabilities: rapid.SliceOfNDistinct(
			rapid.SampledFrom(capabilityPool), 0, 3,
			func(s string) string { return s },
		).Draw(t, "required"),
		Complexity: rapid.Float64Range(0, 1).Draw(t, "complexity"),
	}
}

func TestFindEquilibrium_Invariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		selector := newTestSelector()
		task := genTask(t)
		agents := genAgents(t)

		result := selector.FindEquilibrium(task, agents)

		sum := 0.0
		for _, p := range result.Participations {
			if p.Level <= 0 || p.Level > 1 {
				t.Fatalf("level out of range: %v", p.Level)
			}
			if p.Effectiveness < 0 || p.Effectiveness > 1 {
				t.Fatalf("effectiveness out of range: %v", p.Effectiveness)
			}
			sum += p.Level
		}
		if sum > 1+1e-9 {
			t.Fatalf("participation sum %v exceeds 1", sum)
		}

		for i := 1; i < len(result.Participations); i++ {
			if result.Participations[i-1].Level < result.Participations[i].Level {
				t.Fatalf("participations not sorted descending at %d", i)
			}
		}

		if len(agents) == 0 && len(result.Participations) != 0 {
			t.Fatal("zero agents must yield an empty result")
		}
		if len(agents) == 1 {
			if len(result.Participations) != 1 || result.Participations[0].Level != 1.0 {
				t.Fatal("single agent must hold level 1.0")
			}
		}
		if result.Iterations > selector.config.MaxIterations {
			t.Fatalf("iterations %d exceed cap", result.Iterations)
		}
	})
}

func TestFindEquilibrium_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		selector := newTestSelector()
		task := genTask(t)
		agents := genAgents(t)

		first := selector.FindEquilibrium(task, agents)
		second := selector.FindEquilibrium(task, agents)

		if len(first.Participations) != len(second.Participations) {
			t.Fatal("repeated runs disagree on participant count")
		}
		for i := range first.Participations {
			if first.Participations[i] != second.Participations[i] {
				t.Fatalf("repeated runs disagree at %d", i)
			}
		}
		if first.Converged != second.Converged || first.Iterations != second.Iterations {
			t.Fatal("repeated runs disagree on convergence")
		}
	})
}
