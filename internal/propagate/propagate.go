// Package propagate implements phases 5-7: forward/backward partial-barcode
// propagation from temporal distance lists (find_partlyfound_from_tdist) and
// the reconciliation pass that follows it. Grounded on trajognize's
// algo_barcode.py.
package propagate

import (
	"os"

	"github.com/charmbracelet/log"
)

// logger reports non-halting warnings (ambiguous missing-blob completion);
// SetLogger lets the driver substitute its own.
var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "propagate"})

// SetLogger replaces the package logger.
func SetLogger(l *log.Logger) { logger = l }

const (
	// dedupRadius is the distance below which a freshly proposed barcode is
	// considered the same physical one as an existing barcode of the same
	// colorid that is not permanently deleted, and is merged into it
	// (undeleting it if soft-deleted) instead of inserted.
	dedupRadius = 10.0
	// mergeRadius is the distance below which two newly grouped tentative
	// seeds are considered the same candidate and merged rather than kept
	// distinct.
	mergeRadius = 10.0
	// maxSkip bounds how many frames the stranded-cluster recovery search
	// looks forward/backward for a matching existing colorid barcode.
	maxSkip = 50
)
