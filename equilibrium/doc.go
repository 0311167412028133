// Package equilibrium computes stable participation levels for a set of
// agents competing over a task. Each agent's level balances its effectiveness
// for the task against redundancy with overlapping agents; the selector
// iterates gradient updates until levels stop moving or an iteration cap is
// reached.
package equilibrium
