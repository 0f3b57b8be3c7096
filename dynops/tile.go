package dynops

import "github.com/pkg/errors"

// TileSpec holds the per-axis input dimensions and repeat counts of a Tile, both padded
// to the output rank.
type TileSpec struct {
	InputDims []int
	Reps      []int
}

// OutputDims returns the dimensions of the tiled output.
func (s TileSpec) OutputDims() []int {
	dims := make([]int, len(s.InputDims))
	for axis := range dims {
		dims[axis] = s.InputDims[axis] * s.Reps[axis]
	}
	return dims
}

// ResolveTile returns the output dimensions and the TileSpec of tiling a tensor with inputDims
// by reps, following numpy.tile: if reps is shorter than the input rank it is left-padded with 1s,
// if it is longer the input dimensions are left-padded with 1s.
//
// Repeat counts must be non-negative; 0 produces an empty axis. An output with more elements
// than fit an int fails with ErrShapeMismatch.
func ResolveTile(inputDims, reps []int) ([]int, TileSpec, error) {
	for axis, r := range reps {
		if r < 0 {
			return nil, TileSpec{}, invalidControlf("Tile(%v, reps=%v): negative repeat count at position %d", inputDims, reps, axis)
		}
	}
	rank := max(len(inputDims), len(reps))
	spec := TileSpec{
		InputDims: leftPad(inputDims, rank),
		Reps:      leftPad(reps, rank),
	}
	for axis := range rank {
		if _, err := checkedSize([]int{spec.InputDims[axis], spec.Reps[axis]}); err != nil {
			return nil, TileSpec{}, errors.WithMessagef(err, "Tile(%v, reps=%v): axis %d", inputDims, reps, axis)
		}
	}
	dims := spec.OutputDims()
	if _, err := checkedSize(dims); err != nil {
		return nil, TileSpec{}, errors.WithMessagef(err, "Tile(%v, reps=%v)", inputDims, reps)
	}
	return dims, spec, nil
}

// leftPad returns a copy of values, left-padded with 1s to the given length.
func leftPad(values []int, length int) []int {
	padded := make([]int, length)
	offset := length - len(values)
	for ii := range offset {
		padded[ii] = 1
	}
	copy(padded[offset:], values)
	return padded
}
