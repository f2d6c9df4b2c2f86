package boost

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/agriml/core/parallel"
)

// histogram accumulates gradient sums per (leaf, bin, class) for one feature.
type histogram struct {
	g, h []float64
	cnt  []int
}

func (hb *histogram) reset(cells, k int) {
	if cap(hb.cnt) < cells {
		hb.g = make([]float64, cells*k)
		hb.h = make([]float64, cells*k)
		hb.cnt = make([]int, cells)
		return
	}
	hb.g = hb.g[:cells*k]
	hb.h = hb.h[:cells*k]
	hb.cnt = hb.cnt[:cells]
	clear(hb.g)
	clear(hb.h)
	clear(hb.cnt)
}

// growTree builds one oblivious tree level by level. At each level every
// candidate (feature, threshold) is scored by sum G^2/(H+l2) over the leaves
// it would produce; a leaf split that leaves either side with fewer than
// min_data_in_leaf rows scores as unsplit. Gaussian noise scaled by
// random_strength and fading over training perturbs the choice.
func (c *Classifier) growTree(b *binned, grad, hess, weights []float64, feats []int, rng *rand.Rand, s settings, progress float64) ObliviousTree {
	n, k := b.rows, c.NumClass

	active := make([]int, 0, n)
	for i, w := range weights {
		if w > 0 {
			active = append(active, i)
		}
	}

	leafOf := make([]int, n)
	nLeaves := 1
	var splits []Split
	noiseSD := s.randomStrength * (1 - progress) * rms(grad)

	for d := 0; d < s.depth && len(active) > 0; d++ {
		base := unsplitScore(active, leafOf, nLeaves, grad, hess, k, s.l2LeafReg)

		scores := make([][]float64, len(feats))
		parallel.ParallelizeWithThreshold(len(feats), 1, func(start, end int) {
			var hb histogram
			for fi := start; fi < end; fi++ {
				scores[fi] = candidateScores(b, feats[fi], active, leafOf, nLeaves, grad, hess, k, s, &hb)
			}
		})

		bestF, bestCand := -1, 0
		bestNoisy, bestRaw := math.Inf(-1), 0.0
		for fi, cands := range scores {
			for ci, sc := range cands {
				noisy := sc
				if noiseSD > 0 {
					noisy += rng.NormFloat64() * noiseSD
				}
				if noisy > bestNoisy {
					bestF, bestCand, bestNoisy, bestRaw = fi, ci, noisy, sc
				}
			}
		}
		if bestF < 0 || bestRaw-base <= minRelativeSplitGain*math.Max(1, math.Abs(base)) {
			break
		}

		split := c.makeSplit(feats[bestF], bestCand)
		col := b.bins[split.Feature]
		for i := range leafOf {
			if split.test(col[i]) {
				leafOf[i] |= 1 << d
			}
		}
		splits = append(splits, split)
		nLeaves <<= 1
	}

	g := make([]float64, nLeaves*k)
	h := make([]float64, nLeaves*k)
	for _, i := range active {
		off := leafOf[i] * k
		for cls := 0; cls < k; cls++ {
			g[off+cls] += grad[i*k+cls]
			h[off+cls] += hess[i*k+cls]
		}
	}
	leaves := make([]float64, nLeaves*k)
	for j := range leaves {
		leaves[j] = -s.learningRate * g[j] / (h[j] + s.l2LeafReg)
	}
	return ObliviousTree{Splits: splits, Leaves: leaves}
}

// makeSplit turns candidate index ci of feature j into a Split. Numeric
// candidate ci is "bin > ci"; categorical candidate ci is "bin == ci+1".
func (c *Classifier) makeSplit(j, ci int) Split {
	if c.isCategorical(j) {
		return Split{Feature: j, Categorical: true, Bin: int32(ci + 1), Category: c.Vocab[j][ci]}
	}
	return Split{Feature: j, Bin: int32(ci), Border: c.Borders[j][ci]}
}

func candidateScores(b *binned, j int, active, leafOf []int, nLeaves int, grad, hess []float64, k int, s settings, hb *histogram) []float64 {
	nb := b.nBins[j]
	if nb < 2 {
		return nil
	}
	hb.reset(nLeaves*nb, k)
	col := b.bins[j]
	for _, i := range active {
		cell := leafOf[i]*nb + int(col[i])
		hb.cnt[cell]++
		for cls := 0; cls < k; cls++ {
			hb.g[cell*k+cls] += grad[i*k+cls]
			hb.h[cell*k+cls] += hess[i*k+cls]
		}
	}

	out := make([]float64, nb-1)
	tg, th := make([]float64, k), make([]float64, k)
	rg, rh := make([]float64, k), make([]float64, k)
	categorical := b.categorical(j)

	for l := 0; l < nLeaves; l++ {
		clear(tg)
		clear(th)
		tc := 0
		for bin := 0; bin < nb; bin++ {
			cell := l*nb + bin
			tc += hb.cnt[cell]
			for cls := 0; cls < k; cls++ {
				tg[cls] += hb.g[cell*k+cls]
				th[cls] += hb.h[cell*k+cls]
			}
		}

		if categorical {
			for bin := 1; bin < nb; bin++ {
				cell := l*nb + bin
				out[bin-1] += splitScore(tg, th, hb.g[cell*k:(cell+1)*k], hb.h[cell*k:(cell+1)*k], tc, hb.cnt[cell], s)
			}
			continue
		}

		clear(rg)
		clear(rh)
		rc := 0
		for cand := nb - 2; cand >= 0; cand-- {
			cell := l*nb + cand + 1
			rc += hb.cnt[cell]
			for cls := 0; cls < k; cls++ {
				rg[cls] += hb.g[cell*k+cls]
				rh[cls] += hb.h[cell*k+cls]
			}
			out[cand] += splitScore(tg, th, rg, rh, tc, rc, s)
		}
	}
	return out
}

// splitScore scores one leaf split into a right side (rg, rh, rc) and the rest.
func splitScore(tg, th, rg, rh []float64, tc, rc int, s settings) float64 {
	lc := tc - rc
	score := 0.0
	if lc >= s.minDataInLeaf && rc >= s.minDataInLeaf {
		for cls := range tg {
			lg, lh := tg[cls]-rg[cls], th[cls]-rh[cls]
			score += lg*lg/(lh+s.l2LeafReg) + rg[cls]*rg[cls]/(rh[cls]+s.l2LeafReg)
		}
		return score
	}
	for cls := range tg {
		score += tg[cls] * tg[cls] / (th[cls] + s.l2LeafReg)
	}
	return score
}

func unsplitScore(active, leafOf []int, nLeaves int, grad, hess []float64, k int, l2 float64) float64 {
	g := make([]float64, nLeaves*k)
	h := make([]float64, nLeaves*k)
	for _, i := range active {
		off := leafOf[i] * k
		for cls := 0; cls < k; cls++ {
			g[off+cls] += grad[i*k+cls]
			h[off+cls] += hess[i*k+cls]
		}
	}
	score := 0.0
	for j := range g {
		score += g[j] * g[j] / (h[j] + l2)
	}
	return score
}

func rms(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(v)))
}
