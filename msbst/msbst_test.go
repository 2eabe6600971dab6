package msbst

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// verify checks the ordering, balance, augmentation and parent links of every node.
func (t *Tree[S]) verify() error {
	root := t.getRoot()
	if root != nilNode && t.nodes[root].parent != nilNode {
		return fmt.Errorf("root %d has parent %d", root, t.nodes[root].parent)
	}
	seen := 0
	var walk func(i int32) (int32, int64, error)
	walk = func(i int32) (int32, int64, error) {
		if i == nilNode {
			return 0, 0, nil
		}
		seen++
		n := t.nodes[i]
		if n.count < 1 {
			return 0, 0, fmt.Errorf("%v has count %d", n.symbol, n.count)
		}
		for _, c := range []int32{n.left, n.right} {
			if c != nilNode && t.nodes[c].parent != i {
				return 0, 0, fmt.Errorf("%v: child %v has parent %d", n.symbol, t.nodes[c].symbol, t.nodes[c].parent)
			}
		}
		if n.left != nilNode && !(t.nodes[n.left].symbol < n.symbol) {
			return 0, 0, fmt.Errorf("%v: left child %v out of order", n.symbol, t.nodes[n.left].symbol)
		}
		if n.right != nilNode && !(t.nodes[n.right].symbol > n.symbol) {
			return 0, 0, fmt.Errorf("%v: right child %v out of order", n.symbol, t.nodes[n.right].symbol)
		}
		lh, lt, err := walk(n.left)
		if err != nil {
			return 0, 0, err
		}
		rh, rt, err := walk(n.right)
		if err != nil {
			return 0, 0, err
		}
		if lh-rh > 1 || rh-lh > 1 {
			return 0, 0, fmt.Errorf("%v unbalanced: %d %d", n.symbol, lh, rh)
		}
		h := lh + 1
		if rh > lh {
			h = rh + 1
		}
		if h != n.height {
			return 0, 0, fmt.Errorf("%v height %d, want %d", n.symbol, n.height, h)
		}
		if total := n.count + lt + rt; total != n.total {
			return 0, 0, fmt.Errorf("%v total %d, want %d", n.symbol, n.total, total)
		}
		return h, n.total, nil
	}
	if _, _, err := walk(root); err != nil {
		return err
	}
	if seen != t.size {
		return fmt.Errorf("reached %d nodes, size %d", seen, t.size)
	}
	return nil
}

func TestScenario(t *testing.T) {
	tree, err := Build([]Entry[string]{{"C", 1}, {"A", 2}, {"B", 1}})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if tree.Total() != 4 {
		t.Errorf("%d", tree.Total())
	}
	ranks := map[string]int64{"A": 0, "B": 2, "C": 3}
	for s, r := range ranks {
		if got := tree.Rank(s); got != r {
			t.Errorf("rank %s: %d != %d", s, got, r)
		}
	}
	selects := []string{"A", "A", "B", "C"}
	for p, s := range selects {
		got, err := tree.Select(int64(p))
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if got != s {
			t.Errorf("select %d: %s != %s", p, got, s)
		}
	}

	// Rank of absent symbols counts everything below them.
	if got := tree.Rank("AA"); got != 2 {
		t.Errorf("%d", got)
	}
	if got := tree.Rank("Z"); got != 4 {
		t.Errorf("%d", got)
	}
	if low, high := tree.Interval("A"); low != 0 || high != 2 {
		t.Errorf("[%d, %d)", low, high)
	}
}

func TestBuildInvalid(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry[int]
	}{
		{name: "zero", entries: []Entry[int]{{1, 3}, {2, 0}}},
		{name: "negative", entries: []Entry[int]{{1, -1}}},
		{name: "duplicate", entries: []Entry[int]{{1, 1}, {2, 1}, {1, 4}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(tt *testing.T) {
			if _, err := Build(test.entries); !errors.Is(err, ErrInvalidCount) {
				tt.Errorf("%+v", err)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	var tree Tree[int]
	if tree.Total() != 0 || tree.Len() != 0 || tree.Count(3) != 0 || tree.Rank(3) != 0 {
		t.Fatalf("non-empty zero tree")
	}
	if _, err := tree.Select(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("%+v", err)
	}
	if err := tree.Decrement(3); !errors.Is(err, ErrSymbolExhausted) {
		t.Errorf("%+v", err)
	}

	built, err := Build[int](nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if built.Total() != 0 {
		t.Errorf("%d", built.Total())
	}
	if err := built.verify(); err != nil {
		t.Errorf("%v", err)
	}
}

func TestExhaustion(t *testing.T) {
	tree, err := Build([]Entry[int]{{7, 2}, {9, 1}})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, s := range []int{7, 9, 7} {
		if err := tree.Decrement(s); err != nil {
			t.Fatalf("%d: %+v", s, err)
		}
	}
	if tree.Total() != 0 || tree.Len() != 0 {
		t.Fatalf("%d %d", tree.Total(), tree.Len())
	}
	if err := tree.Decrement(7); !errors.Is(err, ErrSymbolExhausted) {
		t.Errorf("%+v", err)
	}
	if _, err := tree.Select(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("%+v", err)
	}
	if err := tree.verify(); err != nil {
		t.Errorf("%v", err)
	}

	// The emptied tree accepts new symbols.
	if err := tree.Insert(3, 2); err != nil {
		t.Fatalf("%+v", err)
	}
	if tree.Total() != 2 || tree.Count(3) != 2 {
		t.Errorf("%d %d", tree.Total(), tree.Count(3))
	}
}

func TestSelectOutOfRange(t *testing.T) {
	tree, err := Build([]Entry[int]{{1, 2}})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, p := range []int64{-1, 2, 100} {
		if _, err := tree.Select(p); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("%d: %+v", p, err)
		}
	}
}

// naive is a reference multiset against which Tree is checked.
type naive map[int]int64

func (m naive) entries() []Entry[int] {
	entries := make([]Entry[int], 0, len(m))
	for s, c := range m {
		entries = append(entries, Entry[int]{Symbol: s, Count: c})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })
	return entries
}

func checkAgainst(t *testing.T, tree *Tree[int], ref naive) {
	t.Helper()
	if err := tree.verify(); err != nil {
		t.Fatalf("%v", err)
	}
	want := ref.entries()
	if diff := cmp.Diff(want, tree.Entries()); diff != "" {
		t.Fatalf("%s", diff)
	}

	var cum int64
	for _, e := range want {
		if r := tree.Rank(e.Symbol); r != cum {
			t.Fatalf("rank %d: %d != %d", e.Symbol, r, cum)
		}
		for p := cum; p < cum+e.Count; p++ {
			s, low, count, err := tree.Locate(p)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if s != e.Symbol || low != cum || count != e.Count {
				t.Fatalf("locate %d: %d [%d,+%d), want %d [%d,+%d)", p, s, low, count, e.Symbol, cum, e.Count)
			}
		}
		cum += e.Count
	}
	if tree.Total() != cum {
		t.Fatalf("total %d != %d", tree.Total(), cum)
	}
}

func TestRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		ref := naive{}
		entries := []Entry[int]{}
		distinct := 1 + rng.Intn(60)
		for s := 0; s < distinct; s++ {
			sym := rng.Intn(1000)
			if _, ok := ref[sym]; ok {
				continue
			}
			c := int64(1 + rng.Intn(5))
			ref[sym] = c
			entries = append(entries, Entry[int]{Symbol: sym, Count: c})
		}
		tree, err := Build(entries)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		checkAgainst(t, tree, ref)

		for step := 0; step < 300; step++ {
			if rng.Intn(4) == 0 {
				sym := rng.Intn(1000)
				c := int64(1 + rng.Intn(3))
				if err := tree.Insert(sym, c); err != nil {
					t.Fatalf("%+v", err)
				}
				ref[sym] += c
			} else if tree.Total() > 0 {
				p := rng.Int63n(tree.Total())
				sym, err := tree.Select(p)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				before := tree.Total()
				if err := tree.Decrement(sym); err != nil {
					t.Fatalf("%+v", err)
				}
				if tree.Total() != before-1 {
					t.Fatalf("total %d after decrementing from %d", tree.Total(), before)
				}
				ref[sym]--
				if ref[sym] == 0 {
					delete(ref, sym)
				}
			}
			checkAgainst(t, tree, ref)
		}
	}
}

func TestRankSelectInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	entries := []Entry[int]{}
	for s := 0; s < 200; s++ {
		entries = append(entries, Entry[int]{Symbol: s * 3, Count: int64(1 + rng.Intn(10))})
	}
	tree, err := Build(entries)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for tree.Total() > 0 {
		for i := 0; i < 20; i++ {
			p := rng.Int63n(tree.Total())
			s, err := tree.Select(p)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			r := tree.Rank(s)
			if !(r <= p && p < r+tree.Count(s)) {
				t.Fatalf("p %d, symbol %d, [%d, %d)", p, s, r, r+tree.Count(s))
			}
		}

		s, err := tree.Select(rng.Int63n(tree.Total()))
		if err != nil {
			t.Fatalf("%+v", err)
		}
		others := tree.Entries()
		if err := tree.Decrement(s); err != nil {
			t.Fatalf("%+v", err)
		}
		for _, e := range others {
			want := e.Count
			if e.Symbol == s {
				want--
			}
			if got := tree.Count(e.Symbol); got != want {
				t.Fatalf("count %d: %d != %d", e.Symbol, got, want)
			}
		}
	}
	if err := tree.verify(); err != nil {
		t.Errorf("%v", err)
	}
}

func TestInsertReusesFreedSlots(t *testing.T) {
	tree, err := Build([]Entry[int]{{1, 1}, {2, 1}, {3, 1}, {4, 1}})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if err := tree.Decrement(2); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := tree.Insert(10, 1); err != nil {
		t.Fatalf("%+v", err)
	}
	if len(tree.nodes) != 4 {
		t.Errorf("arena grew to %d", len(tree.nodes))
	}
	if err := tree.Insert(5, 0); !errors.Is(err, ErrInvalidCount) {
		t.Errorf("%+v", err)
	}
	if err := tree.verify(); err != nil {
		t.Errorf("%v", err)
	}
}

func TestBalancedHeight(t *testing.T) {
	var tree Tree[int]
	const n = 1 << 12
	for i := 0; i < n; i++ {
		if err := tree.Insert(i, 1); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	// An AVL tree of n nodes is no taller than 1.44 log2(n+2).
	if h := tree.height(tree.getRoot()); h > 18 {
		t.Errorf("height %d for %d sequential inserts", h, n)
	}
	if err := tree.verify(); err != nil {
		t.Errorf("%v", err)
	}
}
