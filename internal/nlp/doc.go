// Package nlp describes smooth nonlinear programs with equality constraints
// and box bounds, and provides interchangeable backends that solve them.
//
// A Program exposes its objective, gradient, constraint residuals and sparse
// constraint Jacobian over a flat decision vector. A Simulator is a Program
// whose dependent variables can be recomputed from a subset of control
// variables, which lets reduced-space backends satisfy the equalities by
// construction.
//
// Backends are selected by name through New so the controller never depends
// on a particular numerical method:
//
//   - "shooting": optimise the controls only; states come from Rollout and
//     the reduced gradient from one adjoint solve.
//   - "auglag":   augmented Lagrangian over the full decision vector.
//
// Both run L-BFGS from gonum/optimize for their inner minimisation and honour
// an iteration and wall-clock budget. A solve that stops early still returns
// its best iterate alongside faults.ErrNotConverged.
package nlp
