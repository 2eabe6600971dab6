// Package msbst implements an order-statistics tree over a multiset.
//
// A Tree is an AVL tree keyed by symbol whose nodes carry the multiplicity of their symbol
// and the total multiplicity of their subtree.
// This lets Rank and Select run in O(log D) where D is the number of distinct symbols,
// with "order statistic" meaning cumulative multiplicity rather than node count.
//
// Nodes live in an arena and refer to each other by index, including a parent index,
// so rebalancing only rewrites indices.
package msbst

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

var (
	// ErrSymbolExhausted is returned when decrementing a symbol whose count is zero.
	ErrSymbolExhausted = fmt.Errorf("symbol exhausted")

	// ErrInvalidCount is returned for non-positive counts and duplicate symbols in Build and Insert.
	ErrInvalidCount = fmt.Errorf("invalid count")

	// ErrOutOfRange is returned by Select for positions outside [0, Total()).
	ErrOutOfRange = fmt.Errorf("position out of range")
)

// nilNode marks an absent child or parent.
const nilNode = -1

type node[S constraints.Ordered] struct {
	symbol S
	count  int64 // own multiplicity, at least 1
	total  int64 // count plus the totals of both subtrees
	height int32

	left, right, parent int32
}

// An Entry is a symbol together with its multiplicity.
type Entry[S constraints.Ordered] struct {
	Symbol S
	Count  int64
}

// A Tree is a multiset with logarithmic rank and select.
// The zero value is an empty tree ready to use.
// A Tree is not safe for concurrent use.
type Tree[S constraints.Ordered] struct {
	nodes []node[S]
	free  []int32
	root  int32
	size  int

	rootSet bool
}

// Build returns a balanced tree holding the given entries, which need not be sorted.
// It fails with ErrInvalidCount if a count is not positive or a symbol repeats.
func Build[S constraints.Ordered](entries []Entry[S]) (*Tree[S], error) {
	sorted := make([]Entry[S], len(entries))
	copy(sorted, entries)
	slices.SortFunc(sorted, func(a, b Entry[S]) bool { return a.Symbol < b.Symbol })
	for i, e := range sorted {
		if e.Count <= 0 {
			return nil, errors.Wrapf(ErrInvalidCount, "symbol %v has count %d", e.Symbol, e.Count)
		}
		if i > 0 && sorted[i-1].Symbol == e.Symbol {
			return nil, errors.Wrapf(ErrInvalidCount, "symbol %v repeated", e.Symbol)
		}
	}

	t := &Tree[S]{nodes: make([]node[S], 0, len(sorted))}
	t.setRoot(t.buildRange(sorted, nilNode))
	t.size = len(sorted)
	return t, nil
}

// buildRange builds a perfectly balanced subtree out of sorted entries.
func (t *Tree[S]) buildRange(sorted []Entry[S], parent int32) int32 {
	if len(sorted) == 0 {
		return nilNode
	}
	mid := len(sorted) / 2
	i := int32(len(t.nodes))
	t.nodes = append(t.nodes, node[S]{
		symbol: sorted[mid].Symbol,
		count:  sorted[mid].Count,
		left:   nilNode,
		right:  nilNode,
		parent: parent,
	})
	l := t.buildRange(sorted[:mid], i)
	r := t.buildRange(sorted[mid+1:], i)
	t.nodes[i].left = l
	t.nodes[i].right = r
	t.update(i)
	return i
}

func (t *Tree[S]) getRoot() int32 {
	if !t.rootSet {
		return nilNode
	}
	return t.root
}

func (t *Tree[S]) setRoot(i int32) {
	t.root = i
	t.rootSet = true
}

func (t *Tree[S]) height(i int32) int32 {
	if i == nilNode {
		return 0
	}
	return t.nodes[i].height
}

func (t *Tree[S]) sum(i int32) int64 {
	if i == nilNode {
		return 0
	}
	return t.nodes[i].total
}

// update recomputes the height and total of i from its children.
func (t *Tree[S]) update(i int32) {
	n := &t.nodes[i]
	lh, rh := t.height(n.left), t.height(n.right)
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
	n.total = n.count + t.sum(n.left) + t.sum(n.right)
}

// replaceChild points the parent of old, or the root, at nu.
func (t *Tree[S]) replaceChild(parent, old, nu int32) {
	if parent == nilNode {
		t.setRoot(nu)
	} else if t.nodes[parent].left == old {
		t.nodes[parent].left = nu
	} else {
		t.nodes[parent].right = nu
	}
	if nu != nilNode {
		t.nodes[nu].parent = parent
	}
}

func (t *Tree[S]) rotateLeft(x int32) int32 {
	y := t.nodes[x].right
	t.nodes[x].right = t.nodes[y].left
	if t.nodes[y].left != nilNode {
		t.nodes[t.nodes[y].left].parent = x
	}
	t.replaceChild(t.nodes[x].parent, x, y)
	t.nodes[y].left = x
	t.nodes[x].parent = y
	t.update(x)
	t.update(y)
	return y
}

func (t *Tree[S]) rotateRight(x int32) int32 {
	y := t.nodes[x].left
	t.nodes[x].left = t.nodes[y].right
	if t.nodes[y].right != nilNode {
		t.nodes[t.nodes[y].right].parent = x
	}
	t.replaceChild(t.nodes[x].parent, x, y)
	t.nodes[y].right = x
	t.nodes[x].parent = y
	t.update(x)
	t.update(y)
	return y
}

// rebalance restores the AVL property at i and returns the root of the resulting subtree.
func (t *Tree[S]) rebalance(i int32) int32 {
	n := t.nodes[i]
	bf := t.height(n.left) - t.height(n.right)
	switch {
	case bf > 1:
		l := t.nodes[n.left]
		if t.height(l.left) < t.height(l.right) {
			t.rotateLeft(n.left)
		}
		return t.rotateRight(i)
	case bf < -1:
		r := t.nodes[n.right]
		if t.height(r.right) < t.height(r.left) {
			t.rotateRight(n.right)
		}
		return t.rotateLeft(i)
	default:
		t.update(i)
		return i
	}
}

// retrace rebalances and re-augments every node from i up to the root.
func (t *Tree[S]) retrace(i int32) {
	for i != nilNode {
		i = t.rebalance(i)
		i = t.nodes[i].parent
	}
}

func (t *Tree[S]) find(symbol S) int32 {
	i := t.getRoot()
	for i != nilNode {
		n := &t.nodes[i]
		switch {
		case symbol < n.symbol:
			i = n.left
		case symbol > n.symbol:
			i = n.right
		default:
			return i
		}
	}
	return nilNode
}

// Total returns the sum of all live counts.
func (t *Tree[S]) Total() int64 {
	return t.sum(t.getRoot())
}

// Len returns the number of distinct live symbols.
func (t *Tree[S]) Len() int {
	return t.size
}

// Count returns the multiplicity of symbol, 0 if it is absent.
func (t *Tree[S]) Count(symbol S) int64 {
	i := t.find(symbol)
	if i == nilNode {
		return 0
	}
	return t.nodes[i].count
}

// Rank returns the sum of the counts of all symbols strictly less than symbol.
// Symbol need not be present.
func (t *Tree[S]) Rank(symbol S) int64 {
	var acc int64
	i := t.getRoot()
	for i != nilNode {
		n := &t.nodes[i]
		switch {
		case symbol < n.symbol:
			i = n.left
		case symbol > n.symbol:
			acc += t.sum(n.left) + n.count
			i = n.right
		default:
			return acc + t.sum(n.left)
		}
	}
	return acc
}

// Interval returns [Rank(symbol), Rank(symbol)+Count(symbol)).
func (t *Tree[S]) Interval(symbol S) (low, high int64) {
	var acc int64
	i := t.getRoot()
	for i != nilNode {
		n := &t.nodes[i]
		switch {
		case symbol < n.symbol:
			i = n.left
		case symbol > n.symbol:
			acc += t.sum(n.left) + n.count
			i = n.right
		default:
			low = acc + t.sum(n.left)
			return low, low + n.count
		}
	}
	return acc, acc
}

// Select returns the symbol whose interval contains position.
func (t *Tree[S]) Select(position int64) (S, error) {
	symbol, _, _, err := t.Locate(position)
	return symbol, err
}

// Locate is Select that also reports the interval [low, low+count) of the selected symbol.
func (t *Tree[S]) Locate(position int64) (symbol S, low, count int64, err error) {
	if position < 0 || position >= t.Total() {
		return symbol, 0, 0, errors.Wrapf(ErrOutOfRange, "position %d, total %d", position, t.Total())
	}
	var acc int64
	i := t.getRoot()
	for i != nilNode {
		n := &t.nodes[i]
		l := t.sum(n.left)
		switch {
		case position < l:
			i = n.left
		case position < l+n.count:
			return n.symbol, acc + l, n.count, nil
		default:
			acc += l + n.count
			position -= l + n.count
			i = n.right
		}
	}
	panic(fmt.Sprintf("msbst: subtree totals inconsistent at position %d", position))
}

// Decrement removes one occurrence of symbol.
// When its count reaches zero the symbol is removed from the tree.
func (t *Tree[S]) Decrement(symbol S) error {
	i := t.find(symbol)
	if i == nilNode {
		return errors.Wrapf(ErrSymbolExhausted, "%v", symbol)
	}
	t.nodes[i].count--
	if t.nodes[i].count > 0 {
		for j := i; j != nilNode; j = t.nodes[j].parent {
			t.nodes[j].total--
		}
		return nil
	}
	t.remove(i)
	return nil
}

// Insert adds n occurrences of symbol.
func (t *Tree[S]) Insert(symbol S, n int64) error {
	if n <= 0 {
		return errors.Wrapf(ErrInvalidCount, "insert %d of %v", n, symbol)
	}

	var parent int32 = nilNode
	i := t.getRoot()
	for i != nilNode {
		parent = i
		nd := &t.nodes[i]
		switch {
		case symbol < nd.symbol:
			i = nd.left
		case symbol > nd.symbol:
			i = nd.right
		default:
			nd.count += n
			for j := i; j != nilNode; j = t.nodes[j].parent {
				t.nodes[j].total += n
			}
			return nil
		}
	}

	i = t.alloc(node[S]{symbol: symbol, count: n, total: n, height: 1, left: nilNode, right: nilNode, parent: parent})
	if parent == nilNode {
		t.setRoot(i)
	} else if symbol < t.nodes[parent].symbol {
		t.nodes[parent].left = i
	} else {
		t.nodes[parent].right = i
	}
	t.size++
	t.retrace(parent)
	return nil
}

func (t *Tree[S]) alloc(n node[S]) int32 {
	if k := len(t.free); k > 0 {
		i := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[i] = n
		return i
	}
	t.nodes = append(t.nodes, n)
	return int32(len(t.nodes) - 1)
}

// remove unlinks node i, whose count has dropped to zero.
func (t *Tree[S]) remove(i int32) {
	n := t.nodes[i]
	if n.left != nilNode && n.right != nilNode {
		// Move the in-order successor's payload into i and unlink the successor instead.
		s := n.right
		for t.nodes[s].left != nilNode {
			s = t.nodes[s].left
		}
		t.nodes[i].symbol = t.nodes[s].symbol
		t.nodes[i].count = t.nodes[s].count
		i = s
		n = t.nodes[i]
	}

	child := n.left
	if child == nilNode {
		child = n.right
	}
	t.replaceChild(n.parent, i, child)
	t.free = append(t.free, i)
	t.size--
	if t.size == 0 {
		t.nodes = t.nodes[:0]
		t.free = t.free[:0]
		t.rootSet = false
		return
	}
	t.retrace(n.parent)
}

// Ascend calls fn for every live symbol in increasing order until fn returns false.
func (t *Tree[S]) Ascend(fn func(symbol S, count int64) bool) {
	t.ascend(t.getRoot(), fn)
}

func (t *Tree[S]) ascend(i int32, fn func(S, int64) bool) bool {
	if i == nilNode {
		return true
	}
	n := &t.nodes[i]
	if !t.ascend(n.left, fn) {
		return false
	}
	if !fn(n.symbol, n.count) {
		return false
	}
	return t.ascend(n.right, fn)
}

// Entries returns the live symbols and their counts in increasing order.
func (t *Tree[S]) Entries() []Entry[S] {
	entries := make([]Entry[S], 0, t.size)
	t.Ascend(func(symbol S, count int64) bool {
		entries = append(entries, Entry[S]{Symbol: symbol, Count: count})
		return true
	})
	return entries
}
