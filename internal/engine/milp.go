package engine

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sort"

	"eve-industry/internal/logger"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	integralityTol = 1e-6
	// relativeGap is how close to the best open bound a plan must be to
	// stop searching.
	relativeGap    = 1e-4
	maxBranchNodes = 5000
	maxCutRounds   = 10
)

// coverProblem is: minimise c·x subject to cover·x >= need, lo <= x <= hi,
// x integer. Every need is positive and every cover coefficient is
// non-negative.
type coverProblem struct {
	c     []float64
	cover [][]float64 // one row per requirement
	need  []float64
	lo    []float64
	hi    []float64
}

// coverable reports whether x = hi meets every requirement. Coefficients
// are non-negative, so no point within the bounds does better.
func (p *coverProblem) coverable(hi []float64) bool {
	return p.covers(hi)
}

func (p *coverProblem) covers(x []float64) bool {
	for i, got := range p.coverage(x) {
		if got < p.need[i]-integralityTol {
			return false
		}
	}
	return true
}

func (p *coverProblem) coverage(x []float64) []float64 {
	got := make([]float64, len(p.cover))
	for i, row := range p.cover {
		for j, v := range row {
			got[i] += v * x[j]
		}
	}
	return got
}

func (p *coverProblem) objective(x []float64) float64 {
	f := 0.0
	for j, v := range x {
		f += p.c[j] * v
	}
	return f
}

// relax solves the LP relaxation with the given bounds through gonum's
// simplex. Variables with a negative cost sit at their upper bound and
// variables no unmet requirement needs sit at their lower bound; only the
// rest enter the LP, shifted by lo and scaled by how much of them could
// still help. An upper bound row is added only where it cuts that range.
func (p *coverProblem) relax(lo, hi []float64) ([]float64, float64, error) {
	n := len(p.c)
	x := make([]float64, n)
	var free []int
	for j := range x {
		if lo[j] == hi[j] || p.c[j] < 0 {
			x[j] = hi[j]
			continue
		}
		x[j] = lo[j]
		free = append(free, j)
	}

	var rows []int
	residual := p.coverage(x)
	for i := range residual {
		residual[i] = p.need[i] - residual[i]
		if residual[i] > integralityTol {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return x, p.objective(x), nil
	}

	var (
		cols    []int
		scale   = make(map[int]float64)
		bounded []int
	)
	for _, j := range free {
		useful := 0.0
		for _, i := range rows {
			if a := p.cover[i][j]; a > 0 {
				useful = math.Max(useful, residual[i]/a)
			}
		}
		if useful <= 0 {
			continue
		}
		cols = append(cols, j)
		scale[j] = useful
		if hi[j]-lo[j] < useful {
			bounded = append(bounded, j)
		}
	}
	if len(cols) == 0 {
		return nil, 0, lp.ErrInfeasible
	}

	// Standard form over [w; surplus; slack]: each requirement row is
	// normalised by its residual, so every right hand side is 1 or a
	// fraction of a variable's useful range.
	m := len(rows) + len(bounded)
	width := len(cols) + len(rows) + len(bounded)
	a := mat.NewDense(m, width, nil)
	b := make([]float64, m)
	for r, i := range rows {
		for k, j := range cols {
			a.Set(r, k, p.cover[i][j]*scale[j]/residual[i])
		}
		a.Set(r, len(cols)+r, -1)
		b[r] = 1
	}
	for q, j := range bounded {
		r := len(rows) + q
		a.Set(r, indexOf(cols, j), 1)
		a.Set(r, len(cols)+len(rows)+q, 1)
		b[r] = (hi[j] - lo[j]) / scale[j]
	}

	norm := 0.0
	for _, j := range cols {
		norm = math.Max(norm, math.Abs(p.c[j]*scale[j]))
	}
	if norm == 0 {
		norm = 1
	}
	c := make([]float64, width)
	for k, j := range cols {
		c[k] = p.c[j] * scale[j] / norm
	}

	_, w, err := lp.Simplex(c, a, b, 1e-10, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, j := range cols {
		x[j] = lo[j] + math.Min(math.Max(w[k], 0)*scale[j], hi[j]-lo[j])
	}
	return x, p.objective(x), nil
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

type cut struct {
	row []float64
	rhs float64
}

// strengthen returns a copy of p with rounding cuts appended until the
// root relaxation violates none, along with that relaxation.
func (p *coverProblem) strengthen() (*coverProblem, []float64, float64, error) {
	q := &coverProblem{
		c:     p.c,
		cover: append([][]float64(nil), p.cover...),
		need:  append([]float64(nil), p.need...),
		lo:    p.lo,
		hi:    p.hi,
	}
	x, f, err := q.relax(q.lo, q.hi)
	if err != nil {
		return nil, nil, 0, err
	}
	for round := 0; round < maxCutRounds; round++ {
		cuts := q.roundingCuts(x, len(p.cover))
		if len(cuts) == 0 {
			break
		}
		rows := len(q.cover)
		for _, c := range cuts {
			q.cover = append(q.cover, c.row)
			q.need = append(q.need, c.rhs)
		}
		nx, nf, err := q.relax(q.lo, q.hi)
		if err != nil {
			logger.Debug("REFINE", "relaxation with cuts failed: "+err.Error())
			q.cover, q.need = q.cover[:rows], q.need[:rows]
			break
		}
		x, f = nx, nf
	}
	if extra := len(q.cover) - len(p.cover); extra > 0 {
		logger.Debug("REFINE", fmt.Sprintf("%d rounding cuts lift the root bound to %.2f", extra, f))
	}
	return q, x, f, nil
}

// roundingCuts derives at most one mixed integer rounding cut per original
// requirement row, the one x violates most. For a row a·x >= b over
// integers shifted by lo and a divisor d with f0 = frac(b/d) > 0,
//
//	sum (floor(a/d) + min(frac(a/d), f0)/f0) x >= ceil(b/d)
//
// holds at every integer point. Its coefficients are non-negative, so the
// cut is itself a requirement row. Divisors are the coefficients of the
// variables x uses.
func (p *coverProblem) roundingCuts(x []float64, rows int) []cut {
	var cuts []cut
	for i := 0; i < rows; i++ {
		row := p.cover[i]
		b := p.need[i]
		for j, a := range row {
			b -= a * p.lo[j]
		}
		if b <= integralityTol {
			continue
		}
		var (
			best     *cut
			bestViol = 1e-6
			tried    = make(map[float64]bool)
		)
		for j, d := range row {
			if d <= 0 || x[j]-p.lo[j] <= integralityTol || tried[d] {
				continue
			}
			tried[d] = true
			beta := b / d
			f0 := beta - math.Floor(beta)
			if f0 < 1e-6 || f0 > 1-1e-6 {
				continue
			}
			g := make([]float64, len(row))
			act, shift := 0.0, 0.0
			for k, a := range row {
				q := a / d
				fl := math.Floor(q + 1e-9)
				g[k] = fl + math.Min(math.Max(q-fl, 0), f0)/f0
				act += g[k] * (x[k] - p.lo[k])
				shift += g[k] * p.lo[k]
			}
			rhs := math.Floor(beta) + 1
			if viol := (rhs - act) / rhs; viol > bestViol {
				best, bestViol = &cut{row: g, rhs: rhs + shift}, viol
			}
		}
		if best != nil {
			cuts = append(cuts, *best)
		}
	}
	return cuts
}

// roundUp rounds x up and hands back what the rounding made redundant.
func (p *coverProblem) roundUp(x, lo, hi []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = math.Min(hi[j], math.Ceil(v-integralityTol))
	}
	p.trim(out, lo)
	return out
}

// roundDown rounds x down and buys back each shortfall at the cheapest
// rate per unit covered.
func (p *coverProblem) roundDown(x, lo, hi []float64) ([]float64, bool) {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = math.Max(lo[j], math.Floor(v+integralityTol))
	}
	if !p.repair(out, hi, -1) {
		return nil, false
	}
	p.trim(out, lo)
	return out, true
}

// repair raises variables other than skip until every requirement is met.
func (p *coverProblem) repair(x, hi []float64, skip int) bool {
	got := p.coverage(x)
	for i, row := range p.cover {
		var cands []int
		for j, a := range row {
			if a > 0 && j != skip {
				cands = append(cands, j)
			}
		}
		sort.SliceStable(cands, func(u, v int) bool {
			return p.c[cands[u]]/row[cands[u]] < p.c[cands[v]]/row[cands[v]]
		})
		for _, j := range cands {
			short := p.need[i] - got[i]
			if short <= integralityTol {
				break
			}
			k := math.Min(hi[j]-x[j], math.Ceil(short/row[j]-integralityTol))
			if k <= 0 {
				continue
			}
			x[j] += k
			for r := range p.cover {
				got[r] += p.cover[r][j] * k
			}
		}
		if p.need[i]-got[i] > integralityTol {
			return false
		}
	}
	return true
}

// trim lowers costly variables, most expensive first, as far as every
// requirement stays met.
func (p *coverProblem) trim(x, lo []float64) {
	var order []int
	for j, c := range p.c {
		if c > 0 {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(u, v int) bool { return p.c[order[u]] > p.c[order[v]] })
	got := p.coverage(x)
	for _, j := range order {
		d := x[j] - lo[j]
		for i, row := range p.cover {
			if row[j] > 0 {
				d = math.Min(d, math.Floor((got[i]-p.need[i])/row[j]+integralityTol))
			}
		}
		if d <= 0 {
			continue
		}
		x[j] -= d
		for i, row := range p.cover {
			got[i] -= row[j] * d
		}
	}
}

// improve tries dropping each costly variable to its lower bound and
// covering the gap with the others.
func (p *coverProblem) improve(x, lo, hi []float64) []float64 {
	best, bestF := x, p.objective(x)
	for j := range x {
		if best[j] <= lo[j] || p.c[j] <= 0 {
			continue
		}
		t := clone(best)
		t[j] = lo[j]
		if !p.repair(t, hi, j) {
			continue
		}
		p.trim(t, lo)
		if f := p.objective(t); f < bestF-integralityTol {
			best, bestF = t, f
		}
	}
	return best
}

type bbNode struct {
	lo, hi, x []float64
	bound     float64
	seq       int
}

// nodeQueue orders open nodes by bound, then by creation.
type nodeQueue []*bbNode

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].bound != q[j].bound {
		return q[i].bound < q[j].bound
	}
	return q[i].seq < q[j].seq
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(v any)   { *q = append(*q, v.(*bbNode)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

type branchAndBound struct {
	p      *coverProblem
	nodes  int
	capped bool
	bound  float64 // best open bound when the search stopped
	best   float64
	bestX  []float64

	open nodeQueue
	seq  int
}

// solve runs best-first branch and bound over the problem strengthened
// with rounding cuts. Every relaxation seeds the incumbent through
// rounding, and the search stops once no open node can beat the incumbent
// by more than the relative gap.
func (p *coverProblem) solve() ([]int, float64, error) {
	bb, err := p.branch()
	if err != nil {
		return nil, 0, err
	}
	x := make([]int, len(bb.bestX))
	for j, v := range bb.bestX {
		x[j] = int(math.Round(v))
	}
	return x, bb.best, nil
}

func (p *coverProblem) branch() (*branchAndBound, error) {
	for j := range p.lo {
		if p.lo[j] > p.hi[j] {
			return nil, ErrInfeasible
		}
	}
	if !p.coverable(p.hi) {
		return nil, ErrInfeasible
	}
	q, x, f, err := p.strengthen()
	if err != nil {
		return nil, fmt.Errorf("lp relaxation: %w", err)
	}
	bb := &branchAndBound{p: q, nodes: 1, best: math.Inf(1)}
	// x = hi always covers; it backs the rounding heuristics.
	bb.offer(clone(p.hi))
	bb.visit(p.lo, p.hi, x, f)

	bb.bound = f
	for bb.open.Len() > 0 {
		n := heap.Pop(&bb.open).(*bbNode)
		bb.bound = n.bound
		if n.bound >= bb.cutoff() {
			break
		}
		if bb.nodes >= maxBranchNodes {
			bb.capped = true
			break
		}
		bb.split(n)
	}
	if bb.open.Len() == 0 && !bb.capped {
		bb.bound = math.Max(bb.bound, bb.cutoff())
	}
	bb.bound = math.Min(bb.bound, bb.best)
	if bb.capped {
		logger.Warn("REFINE", fmt.Sprintf("branch and bound stopped at %d nodes, plan within %.4f%% of the bound", bb.nodes, 100*bb.gap()))
	}
	logger.Debug("REFINE", fmt.Sprintf("branch and bound explored %d nodes, plan %.2f bound %.2f", bb.nodes, bb.best, bb.bound))
	return bb, nil
}

// cutoff is the bound an open node must beat to be worth exploring.
func (bb *branchAndBound) cutoff() float64 {
	return bb.best - math.Max(integralityTol, relativeGap*math.Abs(bb.best))
}

// gap is the relative distance between the plan and the best open bound.
func (bb *branchAndBound) gap() float64 {
	if bb.best == 0 {
		return 0
	}
	return (bb.best - bb.bound) / math.Abs(bb.best)
}

func (bb *branchAndBound) offer(x []float64) {
	if !bb.p.covers(x) {
		return
	}
	if f := bb.p.objective(x); f < bb.best {
		bb.best, bb.bestX = f, x
	}
}

// visit rounds a solved relaxation into candidate plans and queues the
// node if its bound still leaves room.
func (bb *branchAndBound) visit(lo, hi, x []float64, f float64) {
	j := bb.p.branchVar(x)
	if j < 0 {
		xi := make([]float64, len(x))
		for i, v := range x {
			xi[i] = math.Round(v)
		}
		bb.offer(xi)
	}
	bb.offer(bb.p.improve(bb.p.roundUp(x, lo, hi), lo, hi))
	if down, ok := bb.p.roundDown(x, lo, hi); ok {
		bb.offer(bb.p.improve(down, lo, hi))
	}
	if j < 0 || f >= bb.cutoff() {
		return
	}
	bb.seq++
	heap.Push(&bb.open, &bbNode{lo: lo, hi: hi, x: x, bound: f, seq: bb.seq})
}

// split branches a node in two on one fractional variable.
func (bb *branchAndBound) split(n *bbNode) {
	j := bb.p.branchVar(n.x)
	down := math.Floor(n.x[j])

	downHi := clone(n.hi)
	downHi[j] = down
	upLo := clone(n.lo)
	upLo[j] = down + 1

	for _, child := range [][2][]float64{{n.lo, downHi}, {upLo, n.hi}} {
		lo, hi := child[0], child[1]
		if lo[j] > hi[j] || !bb.p.coverable(hi) {
			continue
		}
		bb.nodes++
		x, f, err := bb.p.relax(lo, hi)
		if err != nil {
			if !errors.Is(err, lp.ErrInfeasible) {
				logger.Debug("REFINE", "relaxation failed: "+err.Error())
			}
			continue
		}
		bb.visit(lo, hi, x, f)
	}
}

// branchVar picks the most fractional variable, each weighted by its unit
// cost so a batch of ore outranks a single unit of mineral. Ties go to the
// lowest index; -1 means x is integral.
func (p *coverProblem) branchVar(x []float64) int {
	j, best := -1, 0.0
	for i, v := range x {
		frac := math.Abs(v - math.Round(v))
		if frac <= integralityTol {
			continue
		}
		score := frac * math.Max(math.Abs(p.c[i]), integralityTol)
		if j < 0 || score > best {
			j, best = i, score
		}
	}
	return j
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
