package iterutil

import (
	"iter"
	"slices"

	"github.com/xeptore/ymdl/mathutil"
)

// Batch is one contiguous part of a slice split by Batches.
type Batch[S ~[]E, E any] struct {
	// Number is 1-based.
	Number int
	Count  int
	// Offset is the index of Items[0] in the split slice.
	Offset int
	Items  S
}

// Batches splits s into consecutive batches of at most size elements. It
// panics if size is less than 1.
func Batches[S ~[]E, E any](s S, size int) iter.Seq[Batch[S, E]] {
	count := mathutil.CeilInts(len(s), size)
	return func(yield func(Batch[S, E]) bool) {
		b := Batch[S, E]{Number: 0, Count: count, Offset: 0, Items: nil}
		for chunk := range slices.Chunk(s, size) {
			b.Number++
			b.Items = chunk
			if !yield(b) {
				return
			}
			b.Offset += len(chunk)
		}
	}
}
