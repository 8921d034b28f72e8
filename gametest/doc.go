// Package gametest runs functional tests inside a live simulated world.
//
// # Model
//
// A Descriptor names a test, the structure it is played out in, and the
// body that drives it. Every attempt at running a descriptor is an
// Execution: it places the structure, runs the body once the setup delay has
// passed, and is then ticked once per world tick until it succeeds, fails, or
// runs out of ticks.
//
// Assertions that span ticks are expressed as a Sequence of steps. A step
// returns a StepResult: Done pops it, Wait keeps it at the head of the
// sequence to be retried on the next tick, and Fail fails the whole test.
// Waiting is ordinary control flow. It never reaches a reporter unless the
// test times out while waiting, in which case the last wait reason becomes
// part of the timeout cause.
//
// # Scheduling
//
// Everything runs on the host's tick thread. The Ticker advances every live
// Execution in registration order once per tick and drops the ones that are
// done. Batches of executions are laid out side by side so their structures
// never overlap, and batches run one after another.
//
// # Reporting
//
// Listeners observe executions through a Bus keyed by execution id. A
// RetryReporter is attached to every execution started by the Orchestrator;
// it re-runs flaky tests until they have passed often enough or cannot
// anymore, paints status markers in the world, and forwards final results to
// a Reporter.
package gametest
