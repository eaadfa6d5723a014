// Package failure defines the failure taxonomy shared by actions, containers
// and the messaging substrate: timeouts, validation failures, configuration
// failures and aggregated failures of concurrent branches.
//
// Containers match on Kind (Catch, Assert) and the runner reports the whole
// cause chain, so every failure keeps its Kind when it is wrapped with the
// name of the action it passed through.
package failure
