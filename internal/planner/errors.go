package planner

import "fmt"

// ErrShapeMismatch is the fatal invariant violation spec.md §7 names
// explicitly: a block's merged contributions didn't share the block's own
// shape. It can only happen on malformed input (a reader padding a block
// to the wrong size), never from correct planner/reader-pool output, so
// the writer loop treats it as fatal rather than retrying or skipping.
type ErrShapeMismatch struct {
	BlockIndex   int
	GotW, GotH   int
	WantW, WantH int
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("planner: block %d: shape mismatch: got (%d,%d), want (%d,%d)",
		e.BlockIndex, e.GotW, e.GotH, e.WantW, e.WantH)
}
