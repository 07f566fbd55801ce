package huffman

import "container/heap"

// buildCodeLengths builds a canonical Huffman code-length assignment for
// every symbol in [iMin, iMax] with non-zero frequency, using a min-heap
// over symbol frequencies merged via an intrusive "next" list (hlink),
// mirroring the historical PIZ encoder's tree-construction sweep: each pop
// of two lowest-frequency nodes is merged into one, incrementing every
// linked node's code length, until one node remains.
func buildCodeLengths(freq []uint64, iMin, iMax int) ([]uint8, error) {
	n := iMax - iMin + 1
	lengths := make([]uint8, n)

	// hlink[i] chains symbol i to the next symbol sharing its current
	// merged tree node; freq[i] accumulates into the root of each chain
	// as nodes are merged.
	hlink := make([]int, n)
	for i := range hlink {
		hlink[i] = i
	}

	h := &symbolHeap{}
	for i := 0; i < n; i++ {
		if freq[iMin+i] > 0 {
			heap.Push(h, heapNode{freq: freq[iMin+i], index: i})
		}
	}

	if h.Len() == 0 {
		return lengths, nil
	}
	if h.Len() == 1 {
		// A single-symbol alphabet still needs a 1-bit code.
		only := (*h)[0].index
		lengths[only] = 1
		return lengths, nil
	}

	for h.Len() > 1 {
		a := heap.Pop(h).(heapNode)
		b := heap.Pop(h).(heapNode)

		// Every symbol chained under a or b just grew one bit deeper.
		for i := a.index; ; i = hlink[i] {
			lengths[i]++
			if hlink[i] == a.index {
				break
			}
		}
		for i := b.index; ; i = hlink[i] {
			lengths[i]++
			if hlink[i] == b.index {
				break
			}
		}

		// Splice b's chain onto a's chain and push the merged node back.
		hlink[a.index], hlink[b.index] = hlink[b.index], hlink[a.index]

		heap.Push(h, heapNode{freq: a.freq + b.freq, index: a.index})
	}

	for _, l := range lengths {
		if int(l) > MaxCodeLength {
			return nil, ErrCodeTooLong
		}
	}
	return lengths, nil
}

// heapNode is one entry in the encoder's frequency min-heap: a merged
// tree's accumulated frequency plus the index of one symbol in its chain.
type heapNode struct {
	freq  uint64
	index int
}

// symbolHeap orders nodes by ascending frequency, then by ascending index
// for deterministic tie-breaking (so encoding the same histogram always
// produces the same code lengths).
type symbolHeap []heapNode

func (h symbolHeap) Len() int { return len(h) }
func (h symbolHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].index < h[j].index
}
func (h symbolHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *symbolHeap) Push(x interface{}) { *h = append(*h, x.(heapNode)) }

func (h *symbolHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
