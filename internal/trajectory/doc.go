// Package trajectory implements phase 8 (trajectory building and scoring),
// phase 9 (best-trajectory selection, chain connection and color-change
// reassignment) and the phase-10 finalization passes (outward extension,
// virtual gap filling, enhancement). Grounded on trajognize's
// algo_trajectory.py.
package trajectory
