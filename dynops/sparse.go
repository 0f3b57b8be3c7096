package dynops

// SparseEntry is one coordinate of a SparseToDense, and the position of its value in the
// flat values tensor.
type SparseEntry struct {
	Coordinate []int
	ValueIndex int
}

// ResolveSparseToDense returns the entries to scatter into a dense tensor of outputDims.
//
// indices holds the flat values of the indices tensor, whose dimensions are indicesDims. Three
// layouts are accepted:
//
//   - scalar: one coordinate on a rank-1 output.
//   - vector of length m: m coordinates on a rank-1 output.
//   - matrix m x d: m coordinates on a rank-d output.
//
// valuesDims must be either [m], with one value per coordinate, or a scalar, which is used
// for every coordinate.
//
// Layout and count disagreements fail with ErrArity, negative output dimensions and
// out-of-bounds coordinates fail with ErrShapeMismatch.
func ResolveSparseToDense(indicesDims []int, indices []int, valuesDims []int, outputDims []int) ([]SparseEntry, error) {
	if _, err := ResolveFill(outputDims); err != nil {
		return nil, err
	}
	var numCoords, coordRank int
	switch len(indicesDims) {
	case 0:
		numCoords, coordRank = 1, 1
	case 1:
		numCoords, coordRank = indicesDims[0], 1
	case 2:
		numCoords, coordRank = indicesDims[0], indicesDims[1]
	default:
		return nil, arityf("SparseToDense: indices must be a scalar, a vector or a matrix, got rank %d", len(indicesDims))
	}
	if coordRank != len(outputDims) {
		return nil, arityf("SparseToDense: indices %v hold coordinates of rank %d, but output shape %v has rank %d",
			indicesDims, coordRank, outputDims, len(outputDims))
	}
	if len(indices) != numCoords*coordRank {
		return nil, arityf("SparseToDense: indices have %d values, expected %d for dimensions %v",
			len(indices), numCoords*coordRank, indicesDims)
	}
	broadcastValue := len(valuesDims) == 0
	if !broadcastValue {
		if len(valuesDims) != 1 {
			return nil, arityf("SparseToDense: values must be a scalar or a vector, got rank %d", len(valuesDims))
		}
		if valuesDims[0] != numCoords {
			return nil, arityf("SparseToDense: %d values given for %d coordinates", valuesDims[0], numCoords)
		}
	}

	entries := make([]SparseEntry, numCoords)
	for ii := range entries {
		coord := indices[ii*coordRank : (ii+1)*coordRank]
		for axis, c := range coord {
			if c < 0 || c >= outputDims[axis] {
				return nil, shapeMismatchf("SparseToDense: coordinate #%d %v is out of bounds for output shape %v",
					ii, coord, outputDims)
			}
		}
		entries[ii].Coordinate = coord
		if !broadcastValue {
			entries[ii].ValueIndex = ii
		}
	}
	return entries, nil
}
