// Package types contains the shared leaf types of the orchestration core:
// the structured error taxonomy, agent capability descriptors, and task
// definitions. It is the lowest-level package with no internal dependencies,
// so higher-level packages (workflow, equilibrium) can share these contracts
// without circular imports.
package types
