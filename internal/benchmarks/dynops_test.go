package benchmarks

import (
	"context"
	"flag"
	"fmt"
	"runtime"
	"testing"

	"github.com/gomlx/dynshape/dynops"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/janpfeifer/go-benchmarks"
	"github.com/janpfeifer/must"
)

// Results with CPU can be obtained with:
//
//	go test ./internal/benchmarks -test.run=TestBench -bench_duration=10s
//	go test ./internal/benchmarks -test.run=NONE -test.bench=.

var flagBenchDuration = flag.Duration("bench_duration", 0, "Benchmark duration, typically use 10 seconds. If left as 0, benchmark tests are disabled")

// BenchShapes are the data shapes used by all benchmarks.
var BenchShapes = []shapes.Shape{
	shapes.Make(dtypes.Float32, 1, 1),
	shapes.Make(dtypes.Float32, 10, 10),
	shapes.Make(dtypes.Float32, 100, 100),
	shapes.Make(dtypes.Float32, 1000, 1000),
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// benchCase is one operator call benchmarked for one of BenchShapes.
type benchCase struct {
	op     dynops.Op
	inputs func(shape shapes.Shape) []*tensors.Tensor
}

var benchCases = map[string]benchCase{
	"Reshape": {
		op: dynops.Op{Kind: dynops.KindReshape},
		inputs: func(shape shapes.Shape) []*tensors.Tensor {
			return []*tensors.Tensor{tensors.FromShape(shape), tensors.FromValue([]int64{-1})}
		},
	},
	"Tile": {
		op: dynops.Op{Kind: dynops.KindTile},
		inputs: func(shape shapes.Shape) []*tensors.Tensor {
			return []*tensors.Tensor{tensors.FromShape(shape), tensors.FromValue([]float32{2, 2})}
		},
	},
	"Full": {
		op: dynops.Op{Kind: dynops.KindFull},
		inputs: func(shape shapes.Shape) []*tensors.Tensor {
			return []*tensors.Tensor{tensors.FromScalar(float32(4)), dynops.ShapeOf(tensors.FromShape(shape))}
		},
	},
	"SparseToDense": {
		op: dynops.Op{Kind: dynops.KindSparseToDense},
		inputs: func(shape shapes.Shape) []*tensors.Tensor {
			// One entry per row, on the diagonal.
			rows := shape.Dimensions[0]
			indices := make([]int32, 2*rows)
			for ii := range rows {
				indices[2*ii], indices[2*ii+1] = int32(ii), int32(ii)
			}
			return []*tensors.Tensor{
				tensors.FromFlatDataAndDimensions(indices, rows, 2),
				tensors.FromScalar(float32(1)),
				dynops.ShapeOf(tensors.FromShape(shape)),
			}
		},
	},
}

func benchmarkOp(b *testing.B, name string) {
	bc := benchCases[name]
	allInputs := sliceMap(BenchShapes, bc.inputs)
	for shapeIdx, shape := range BenchShapes {
		inputs := allInputs[shapeIdx]
		b.Run(shape.String(), func(b *testing.B) {
			for b.Loop() {
				_ = must.M1(dynops.Execute(bc.op, inputs...))
			}
		})
	}
}

func BenchmarkReshape(b *testing.B)       { benchmarkOp(b, "Reshape") }
func BenchmarkTile(b *testing.B)          { benchmarkOp(b, "Tile") }
func BenchmarkFull(b *testing.B)          { benchmarkOp(b, "Full") }
func BenchmarkSparseToDense(b *testing.B) { benchmarkOp(b, "SparseToDense") }

// TestBenchOps runs every benchmark case with go-benchmarks, which reports percentiles
// instead of only the mean.
func TestBenchOps(t *testing.T) {
	if testing.Short() || *flagBenchDuration == 0 {
		t.Skip("Skipping benchmark, set --bench_duration to run it")
	}
	withHeader := true
	for _, name := range []string{"Reshape", "Tile", "Full", "SparseToDense"} {
		bc := benchCases[name]
		for _, shape := range BenchShapes {
			inputs := bc.inputs(shape)
			benchFn := benchmarks.NamedFunction{
				Name: fmt.Sprintf("%s/%s", name, shape),
				Func: func() {
					_ = must.M1(dynops.Execute(bc.op, inputs...))
				},
			}
			runtime.LockOSThread()
			benchmarks.New(benchFn).
				WithWarmUps(128).
				WithDuration(*flagBenchDuration).
				WithHeader(withHeader).
				Done()
			runtime.UnlockOSThread()
			withHeader = false
		}
	}
}

// TestBenchExecuteAll measures the throughput of a batch of independent calls.
func TestBenchExecuteAll(t *testing.T) {
	if testing.Short() || *flagBenchDuration == 0 {
		t.Skip("Skipping benchmark, set --bench_duration to run it")
	}
	const batchSize = 64
	shape := BenchShapes[2]
	calls := make([]dynops.Call, batchSize)
	for ii := range calls {
		bc := benchCases["Tile"]
		calls[ii] = dynops.Call{Op: bc.op, Inputs: bc.inputs(shape)}
	}
	for parallelism := 1; parallelism <= runtime.NumCPU(); parallelism *= 2 {
		benchFn := benchmarks.NamedFunction{
			Name: fmt.Sprintf("ExecuteAll/batchSize=%d/parallelism=%02d", batchSize, parallelism),
			Func: func() {
				_ = must.M1(dynops.ExecuteAll(context.Background(), calls, parallelism))
			},
		}
		benchmarks.New(benchFn).
			WithWarmUps(16).
			WithDuration(*flagBenchDuration).
			WithHeader(parallelism == 1).
			Done()
	}
}
