// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import (
	"container/heap"
	"sort"
)

// closeCircuit is a pair of edge-disjoint paths between the
// same two vertices.
type closeCircuit struct {
	a, b    int
	branch1 []int // a, ..., b (exclusive of a and b at the ends is not required; includes both)
	branch2 []int
}

// reachCache memoizes reachability queries over the Relation
// Graph, per the Design Notes ("reachability is cached per
// (u,v) pair rather than materializing the full transitive
// closure").
type reachCache struct {
	rag   *RAG
	cache map[[2]int]bool
}

func newReachCache(rag *RAG) *reachCache {
	return &reachCache{rag: rag, cache: make(map[[2]int]bool)}
}

func (c *reachCache) reachable(u, v int) bool {
	if u == v {
		return true
	}
	key := [2]int{u, v}
	if b, ok := c.cache[key]; ok {
		return b
	}
	visited := make(map[int]bool)
	var stk []int
	stk = append(stk, c.rag.rel[u].out...)
	for len(stk) > 0 {
		x := stk[len(stk)-1]
		stk = stk[:len(stk)-1]
		if x == v {
			c.cache[key] = true
			return true
		}
		if visited[x] {
			continue
		}
		visited[x] = true
		stk = append(stk, c.rag.rel[x].out...)
	}
	c.cache[key] = false
	return false
}

// Reorder finds close circuits in the Relation Graph and
// reduces up to a (1 - ParallelExecWeight) fraction of them,
// serializing the branch chosen by the heaviness score, then
// recomputes the topological order.
func Reorder(rag *RAG, cfg DispatchConfig) error {
	if !cfg.EnablePassReorder {
		return nil
	}
	cfg = cfg.clamped()
	circuits := findCloseCircuits(rag)
	if len(circuits) == 0 {
		return nil
	}
	n := int(float32(len(circuits)) * (1 - cfg.ParallelExecWeight))
	if n > len(circuits) {
		n = len(circuits)
	}
	sort.Slice(circuits, func(i, j int) bool {
		if circuits[i].a != circuits[j].a {
			return circuits[i].a < circuits[j].a
		}
		return circuits[i].b < circuits[j].b
	})
	for i := 0; i < n; i++ {
		reduceCircuit(rag, circuits[i])
	}
	order, err := weightedTopoSort(rag)
	if err != nil {
		return err
	}
	rag.order = order
	return nil
}

// findCloseCircuits scans every vertex with out-degree >= 2
// for pairs of children whose reachable sets meet at a common
// descendant, recording the two disjoint branches.
func findCloseCircuits(rag *RAG) []closeCircuit {
	var circuits []closeCircuit
	for a := range rag.verts {
		if rag.verts[a].culled || len(rag.verts[a].out) < 2 {
			continue
		}
		children := append([]int{}, rag.verts[a].out...)
		sort.Ints(children)
		for i := 0; i < len(children); i++ {
			for j := i + 1; j < len(children); j++ {
				if b, p1, p2, ok := meetingPoint(rag, children[i], children[j]); ok {
					circuits = append(circuits, closeCircuit{
						a: a, b: b,
						branch1: append([]int{a}, p1...),
						branch2: append([]int{a}, p2...),
					})
				}
			}
		}
	}
	return circuits
}

// meetingPoint runs a BFS from each of c1 and c2 and picks b,
// the lowest-index vertex reachable from both, returning the
// path from each start vertex to b (inclusive of both the start
// and b; the caller prepends the circuit's source vertex).
func meetingPoint(rag *RAG, c1, c2 int) (b int, path1, path2 []int, ok bool) {
	parent1 := bfsParents(rag, c1)
	parent2 := bfsParents(rag, c2)
	var candidates []int
	for v := range parent1 {
		if _, ok := parent2[v]; ok {
			candidates = append(candidates, v)
		}
	}
	if c2 == c1 {
		return 0, nil, nil, false
	}
	if _, ok := parent2[c1]; ok {
		candidates = append(candidates, c1)
	}
	if _, ok := parent1[c2]; ok {
		candidates = append(candidates, c2)
	}
	if len(candidates) == 0 {
		return 0, nil, nil, false
	}
	sort.Ints(candidates)
	b = candidates[0]
	path1 = reconstructPath(parent1, c1, b)
	path2 = reconstructPath(parent2, c2, b)
	return b, path1, path2, true
}

// bfsParents returns a parent map over every vertex reachable
// from start (start included, mapped to -1).
func bfsParents(rag *RAG, start int) map[int]int {
	parent := map[int]int{start: -1}
	queue := []int{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range rag.verts[u].out {
			if _, ok := parent[v]; !ok {
				parent[v] = u
				queue = append(queue, v)
			}
		}
	}
	return parent
}

// reconstructPath walks parent pointers from b back to start,
// returning the path from start through b, inclusive of both
// endpoints.
func reconstructPath(parent map[int]int, start, b int) []int {
	var rev []int
	for v := b; ; v = parent[v] {
		rev = append(rev, v)
		if v == start {
			break
		}
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// branchWeight approximates the byte traffic of a branch's
// internal vertices (excluding the shared endpoints a and b),
// splitting it into forward (bytes written) and backward
// (bytes read) totals. It also reports whether any
// vertex touches a Memoryless resource, which forces adjacent
// placement regardless of the weight comparison.
func branchWeight(rag *RAG, branch []int) (forward, backward int64, memoryless bool) {
	// branch includes a as its first element and b as its
	// last; only the interior is weighed.
	if len(branch) <= 2 {
		return 0, 0, false
	}
	for _, idx := range branch[1 : len(branch)-1] {
		for _, st := range rag.verts[idx].views {
			res := rag.rg.RG.At(st.resource)
			size := int64(st.status.Range.Width) * int64(max(1, st.status.Range.Height))
			if size == 0 {
				size = int64(max(1, res.Width)) * int64(max(1, res.Height))
			}
			if res.Residency == Memoryless {
				memoryless = true
			}
			if isReadOnly(st.status.Access) {
				backward += size
			} else {
				forward += size
			}
		}
	}
	return
}

// reduceCircuit serializes a close circuit by ordering its two
// branches by heaviness score and inserting a dependency edge
// from the end of the first branch to the start of the second,
// removing the now-redundant parallel entry edge from a into
// the second branch.
func reduceCircuit(rag *RAG, c closeCircuit) {
	f1, b1, m1 := branchWeight(rag, c.branch1)
	f2, b2, m2 := branchWeight(rag, c.branch2)
	score1 := b1 - f1
	score2 := b2 - f2

	first, second := c.branch1, c.branch2
	if (m2 && !m1) || (!(m1 && !m2) && score2 > score1) {
		first, second = c.branch2, c.branch1
	}

	var firstEnd int
	if len(first) > 2 {
		firstEnd = first[len(first)-2]
	} else {
		firstEnd = c.a
	}
	secondStart := second[1]

	removeEdge(rag, c.a, secondStart)
	addEdge(rag, firstEnd, secondStart)
}

// vertexScore computes backward-forward (heavier readers
// first) for a single vertex's own views.
func vertexScore(rag *RAG, idx int) int64 {
	var forward, backward int64
	for _, st := range rag.verts[idx].views {
		res := rag.rg.RG.At(st.resource)
		size := int64(st.status.Range.Width) * int64(max(1, st.status.Range.Height))
		if size == 0 {
			size = int64(max(1, res.Width)) * int64(max(1, res.Height))
		}
		if isReadOnly(st.status.Access) {
			backward += size
		} else {
			forward += size
		}
	}
	return backward - forward
}

// readyQueue is a priority queue of ready-to-schedule vertex
// indices, ordered by descending vertexScore with a stable
// ascending-id tie-break.
type readyQueue struct {
	items []int
	score []int64
}

func (q *readyQueue) Len() int { return len(q.items) }
func (q *readyQueue) Less(i, j int) bool {
	if q.score[i] != q.score[j] {
		return q.score[i] > q.score[j]
	}
	return q.items[i] < q.items[j]
}
func (q *readyQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.score[i], q.score[j] = q.score[j], q.score[i]
}
func (q *readyQueue) Push(x any) {
	e := x.(readyEntry)
	q.items = append(q.items, e.idx)
	q.score = append(q.score, e.score)
}
func (q *readyQueue) Pop() any {
	n := len(q.items)
	idx, score := q.items[n-1], q.score[n-1]
	q.items = q.items[:n-1]
	q.score = q.score[:n-1]
	return readyEntry{idx, score}
}

type readyEntry struct {
	idx   int
	score int64
}

// weightedTopoSort performs Kahn's algorithm over the
// Relation Graph's current edge set using a heaviness-ordered
// priority queue instead of plain vertex-id order.
func weightedTopoSort(rag *RAG) ([]int, error) {
	n := len(rag.verts)
	indeg := make([]int, n)
	for i := range rag.verts {
		if rag.verts[i].culled {
			continue
		}
		for _, o := range rag.verts[i].out {
			indeg[o]++
		}
	}
	q := &readyQueue{}
	heap.Init(q)
	for i := 0; i < n; i++ {
		if !rag.verts[i].culled && indeg[i] == 0 {
			heap.Push(q, readyEntry{i, vertexScore(rag, i)})
		}
	}
	var order []int
	for q.Len() > 0 {
		e := heap.Pop(q).(readyEntry)
		order = append(order, e.idx)
		for _, v := range rag.verts[e.idx].out {
			indeg[v]--
			if indeg[v] == 0 {
				heap.Push(q, readyEntry{v, vertexScore(rag, v)})
			}
		}
	}
	cnt := 0
	for i := range rag.verts {
		if !rag.verts[i].culled {
			cnt++
		}
	}
	if len(order) != cnt {
		return nil, newRGErr("cycle detected in render graph")
	}
	return order, nil
}
