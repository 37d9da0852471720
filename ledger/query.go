package ledger

import "ckbecs.dev/ecs/schema"

// Absence of a cell is a legitimate state at every call site below, so
// ErrIndexOutOfBound is collapsed into a boolean or the end of iteration.
// Any other host error is returned verbatim.

// LoadOptional loads a cell, reporting ok=false when index is past the end.
func LoadOptional(ctx Context, index int, source Source) (Cell, bool, error) {
	c, err := ctx.LoadCell(index, source)
	if err != nil {
		if IsIndexOutOfBound(err) {
			return Cell{}, false, nil
		}
		return Cell{}, false, err
	}
	return c, true, nil
}

// CellExists reports whether source has a cell at index.
func CellExists(ctx Context, index int, source Source) (bool, error) {
	_, ok, err := LoadOptional(ctx, index, source)
	return ok, err
}

// ForEachCell calls fn for every cell in source, in order, stopping at the
// first error fn returns.
func ForEachCell(ctx Context, source Source, fn func(index int, c Cell) error) error {
	for i := 0; ; i++ {
		c, ok, err := LoadOptional(ctx, i, source)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(i, c); err != nil {
			return err
		}
	}
}

// FindCell returns the index of the first cell in source for which match
// reports true, or ok=false if there is none.
func FindCell(ctx Context, source Source, match func(Cell) bool) (int, bool, error) {
	found := -1
	err := ForEachCell(ctx, source, func(i int, c Cell) error {
		if match(c) {
			found = i
			return errStop
		}
		return nil
	})
	if err != nil && err != errStop {
		return 0, false, err
	}
	return found, found >= 0, nil
}

// LookForDepOptional wraps Context.LookForDep, reporting ok=false when no
// dep matches.
func LookForDepOptional(ctx Context, hash [32]byte, hashType schema.HashType) (int, bool, error) {
	i, err := ctx.LookForDep(hash, hashType)
	if err != nil {
		if IsIndexOutOfBound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return i, true, nil
}

type stopError struct{}

func (stopError) Error() string { return "stop" }

var errStop error = stopError{}
