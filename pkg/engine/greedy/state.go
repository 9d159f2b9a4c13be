package greedy

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/community"

	"github.com/crespin/nsbm-clustering-service/pkg/engine"
)

// state is a nested hierarchy of partitions. levels[0] assigns every node
// its own group; levels[l] maps the group ids of level l-1 onto the groups
// of level l, so a node's assignment at any level is the composition of the
// maps below it. Within each level the id space is dense, and levels[l+1]
// always has one entry per level-l group id.
type state struct {
	h      *graphHandle
	levels [][]int
}

func (s *state) NumLevels() int { return len(s.levels) }

func (s *state) Project(level int) ([]int, error) {
	if level < 0 || level >= len(s.levels) {
		return nil, fmt.Errorf("level %d out of range for %d-level hierarchy", level, len(s.levels))
	}
	out := make([]int, len(s.levels[0]))
	copy(out, s.levels[0])
	for l := 1; l <= level; l++ {
		for i := range out {
			out[i] = s.levels[l][out[i]]
		}
	}
	return out, nil
}

// Entropy reports a description-length proxy: the negated modularity of the
// level's partition scaled by the total edge weight, so that better
// partitions have lower entropy.
func (s *state) Entropy(level int) float64 {
	partition, err := s.Project(level)
	if err != nil {
		return 0
	}
	q, err := s.h.Modularity(partition)
	if err != nil {
		return 0
	}
	return -q * s.h.totalWeight
}

func (s *state) Resize(levels int) error {
	if levels < 1 {
		return fmt.Errorf("hierarchy depth must be positive, got %d", levels)
	}
	for len(s.levels) < levels {
		top := s.levels[len(s.levels)-1]
		groups := 0
		for _, gid := range top {
			if gid+1 > groups {
				groups = gid + 1
			}
		}
		s.levels = append(s.levels, make([]int, groups))
	}
	return nil
}

// Sweep runs up to niter passes of greedy single-node moves over the first
// agglomerated level and stops early once a pass makes no move. With
// multiflip, a trivial single-group level is first reseeded by one
// agglomerative pass, standing in for the merge-split proposals of a
// multi-move kernel; single-node moves alone cannot leave that state.
func (s *state) Sweep(niter int, multiflip bool) (engine.MoveStats, error) {
	var ms engine.MoveStats
	if len(s.levels) < 2 || niter <= 0 {
		return ms, nil
	}
	if multiflip && s.groupBound(1) == 1 && s.h.n > 1 {
		s.splitSeed()
	}
	before := s.Entropy(1)
	for it := 0; it < niter; it++ {
		attempts, moves := s.movePass()
		ms.Attempts += attempts
		ms.Moves += moves
		if moves == 0 {
			break
		}
	}
	ms.EntropyDelta = s.Entropy(1) - before
	return ms, nil
}

// Equilibrate sweeps until no record-breaking entropy improvement occurs for
// Wait*Breaks consecutive outer iterations, bounded by MaxIter and extended
// to at least ForceIter iterations.
func (s *state) Equilibrate(opts engine.EquilibrateOptions) (engine.MoveStats, error) {
	inner := opts.SweepsPerIter
	if inner <= 0 {
		inner = 10
	}
	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = 1000000
	}
	wait := opts.Wait
	if wait <= 0 {
		wait = 1
	}
	breaks := opts.Breaks
	if breaks <= 0 {
		breaks = 1
	}

	var total engine.MoveStats
	best := s.Entropy(1)
	noImprove := 0
	for iter := 1; iter <= maxIter; iter++ {
		ms, err := s.Sweep(inner, opts.Multiflip)
		if err != nil {
			return total, err
		}
		total.Attempts += ms.Attempts
		total.Moves += ms.Moves
		total.EntropyDelta += ms.EntropyDelta

		cur := s.Entropy(1)
		if best-cur > opts.Epsilon*math.Abs(best) {
			best = cur
			noImprove = 0
		} else {
			noImprove++
		}
		if opts.OnIteration != nil {
			opts.OnIteration(s)
		}
		if iter >= opts.ForceIter && noImprove >= wait*breaks {
			break
		}
	}
	return total, nil
}

// movePass tries, for every node in index order, reassigning its level-1
// group to a neighboring group or a fresh one, keeping the best modularity
// improvement. A move to a fresh group extends the level above so the dense
// id invariant holds; the fresh group inherits the coarse assignment of the
// group the node left.
func (s *state) movePass() (attempts, moves int) {
	b := s.levels[1]
	q, err := s.h.Modularity(b)
	if err != nil {
		return 0, 0
	}
	for i := 0; i < s.h.n; i++ {
		attempts++
		current := b[i]
		fresh := s.groupBound(1)

		cands := make(map[int]bool)
		neighbors := s.h.g.From(int64(i))
		for neighbors.Next() {
			cands[b[int(neighbors.Node().ID())]] = true
		}
		cands[fresh] = true
		delete(cands, current)

		best, bestQ := current, q
		for cand := range cands {
			b[i] = cand
			if q2, err := s.h.Modularity(b); err == nil && q2 > bestQ+1e-12 {
				best, bestQ = cand, q2
			}
		}
		b[i] = best
		if best != current {
			moves++
			q = bestQ
			if best == fresh && len(s.levels) > 2 {
				s.levels[2] = append(s.levels[2], s.levels[2][current])
			}
		}
	}
	return attempts, moves
}

// splitSeed replaces a single-group level 1 with the communities of one
// agglomerative pass over the full graph. The level above is regrown to one
// entry per new group, all inheriting the old group's coarse assignment, so
// the dense id invariant holds.
func (s *state) splitSeed() {
	src := rand.NewPCG(1, 1)
	red := community.Modularize(s.h.g, 1.0, src)
	comms := red.Communities()
	if len(comms) <= 1 {
		return
	}
	b := make([]int, s.h.n)
	for ci, nodes := range comms {
		for _, nd := range nodes {
			b[int(nd.ID())] = ci
		}
	}
	old := s.levels[1]
	s.levels[1] = b
	if len(s.levels) > 2 {
		coarse := 0
		if len(s.levels[2]) > 0 {
			coarse = s.levels[2][old[0]]
		}
		next := make([]int, len(comms))
		for i := range next {
			next[i] = coarse
		}
		s.levels[2] = next
	}
}

// groupBound returns the size of the dense group id space at the level.
func (s *state) groupBound(level int) int {
	if level+1 < len(s.levels) {
		return len(s.levels[level+1])
	}
	bound := 0
	for _, gid := range s.levels[level] {
		if gid+1 > bound {
			bound = gid + 1
		}
	}
	return bound
}
