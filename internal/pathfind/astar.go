package pathfind

import (
	"container/heap"
	"math"

	"github.com/samdwyer/stealthgrid/internal/grid"
)

// searchState holds per-tile scratch arrays reused across searches.
// A tile's gScore and parent are only meaningful when stamp[idx] == gen.
type searchState struct {
	gScore []float64
	parent []int32
	closed []uint32
	stamp  []uint32
	gen    uint32
	open   nodeQueue
	steps  []grid.Step
}

func (s *searchState) reset(n int) {
	if len(s.stamp) != n {
		s.gScore = make([]float64, n)
		s.parent = make([]int32, n)
		s.closed = make([]uint32, n)
		s.stamp = make([]uint32, n)
		s.gen = 0
	}
	s.gen++
	if s.gen == 0 {
		clear(s.stamp)
		clear(s.closed)
		s.gen = 1
	}
	s.open = s.open[:0]
}

type pathNode struct {
	idx   int
	g     float64
	f     float64
	index int
}

type nodeQueue []*pathNode

func (pq nodeQueue) Len() int { return len(pq) }

func (pq nodeQueue) Less(i, j int) bool {
	if pq[i].f == pq[j].f {
		return pq[i].g > pq[j].g
	}
	return pq[i].f < pq[j].f
}

func (pq nodeQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *nodeQueue) Push(x any) {
	item := x.(*pathNode)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *nodeQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// astar searches from start to goal. Edge cost is the step cost times the
// destination tile's move cost; tiles with infinite cost are never expanded.
func (p *Pathfinder) astar(start, goal grid.Point, class grid.ActorClass) ([]grid.Point, bool) {
	if start == goal {
		return []grid.Point{start}, true
	}
	w := p.nav.Width()
	s := &p.search
	s.reset(w * p.nav.Height())

	startIdx := p.index(start)
	goalIdx := p.index(goal)
	s.gScore[startIdx] = 0
	s.parent[startIdx] = -1
	s.stamp[startIdx] = s.gen
	heap.Push(&s.open, &pathNode{idx: startIdx, g: 0, f: start.Octile(goal)})

	for iterations := 0; s.open.Len() > 0; iterations++ {
		if iterations >= p.cfg.MaxIterations {
			p.log.V(2).Info("search budget exhausted", "start", start, "goal", goal, "iterations", iterations)
			return nil, false
		}
		current := heap.Pop(&s.open).(*pathNode)
		if s.closed[current.idx] == s.gen {
			continue
		}
		s.closed[current.idx] = s.gen
		if current.idx == goalIdx {
			return s.reconstruct(goalIdx, w), true
		}

		cp := grid.Point{X: current.idx % w, Y: current.idx / w}
		s.steps = grid.Neighbors(p.nav, cp, class, p.cfg.Diagonal, s.steps[:0])
		for _, step := range s.steps {
			cost := p.nav.MoveCost(step.To)
			if math.IsInf(cost, 1) {
				continue
			}
			idx := step.To.Y*w + step.To.X
			if s.closed[idx] == s.gen {
				continue
			}
			tentative := current.g + step.Cost*cost
			if s.stamp[idx] == s.gen && tentative >= s.gScore[idx] {
				continue
			}
			s.stamp[idx] = s.gen
			s.gScore[idx] = tentative
			s.parent[idx] = int32(current.idx)
			heap.Push(&s.open, &pathNode{
				idx: idx,
				g:   tentative,
				f:   tentative + p.heuristic(step.To, goal),
			})
		}
	}
	return nil, false
}

func (p *Pathfinder) heuristic(a, b grid.Point) float64 {
	if p.cfg.Diagonal {
		return a.Octile(b)
	}
	return float64(a.Manhattan(b))
}

func (s *searchState) reconstruct(goalIdx, w int) []grid.Point {
	var path []grid.Point
	for idx := goalIdx; idx >= 0; idx = int(s.parent[idx]) {
		path = append(path, grid.Point{X: idx % w, Y: idx / w})
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
