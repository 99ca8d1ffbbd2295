package crawler

// Range is a half-open index interval [Start, End) of one level
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices covered
func (r Range) Len() int {
	return r.End - r.Start
}

// Partition splits n items into at most k contiguous ranges of near-equal
// size. The first n%k ranges get one extra item; empty ranges are omitted,
// so fewer than k ranges come back when n < k.
func Partition(n, k int) []Range {
	if n <= 0 || k <= 0 {
		return nil
	}

	base := n / k
	remainder := n % k

	ranges := make([]Range, 0, min(n, k))
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < remainder {
			size++
		}
		if size == 0 {
			break
		}
		ranges = append(ranges, Range{Start: start, End: start + size})
		start += size
	}

	return ranges
}
