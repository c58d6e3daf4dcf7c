// Package engine is the task layer above construction evaluation.
//
// One Recompute call evaluates every projection of a focus:
//
//  1. A run ID and a run seq are assigned (seq continues from the store).
//  2. Projections are evaluated by a bounded pool of workers. Each gets its
//     own Evaluation, loader, and recompute tracker; nothing is shared
//     between them except the expression evaluator.
//  3. References in the outputs are resolved to display names, one batched
//     lookup per projection.
//  4. Each projection's error is classified into a child ExecutionResult and
//     merged into the run result. ILLEGAL_STATE errors abort the run.
//  5. The run and the per-construction next recompute time are written to
//     the store when one is configured.
//
// Results keep the order of the request regardless of which worker
// finished first.
package engine
