package stats

import (
	"math"
	"sort"
)

// GPD threshold search bounds. The search starts at the default loss
// threshold and halves until a valid fat-tail fit is found or the threshold
// collapses below the minimum.
const (
	gpdDefaultThreshold = 0.2
	gpdMinimumThreshold = 1e-9
)

// DefaultVaRProbability is the tail probability used for GPD value-at-risk
// estimates when the caller does not supply one.
const DefaultVaRProbability = 0.01

// GPDRisk holds a Generalized Pareto Distribution fit of the loss tail and
// the value-at-risk / expected-shortfall estimates derived from it. The zero
// value means no acceptable fit was found.
type GPDRisk struct {
	Threshold float64
	Scale     float64
	Shape     float64
	VaR       float64
	ES        float64
}

// Available reports whether the fit produced usable tail estimates. A fat
// tail requires a positive shape parameter, and a loss of some kind requires
// a positive VaR.
func (g GPDRisk) Available() bool {
	return g.Shape > 0 && g.VaR > 0
}

// GPDRiskEstimates fits a Generalized Pareto Distribution to the losses in a
// return series by maximum likelihood and derives VaR and expected shortfall
// at tail probability varP (default 0.01 when varP is not positive).
//
// Losses are the negated negative returns. The loss threshold starts at 0.2
// and halves until the Nelder-Mead fit converges with a positive shape
// parameter and a positive VaR estimate. Fewer than 3 observations, or no
// acceptable fit, yields the zero GPDRisk.
func GPDRiskEstimates(returns []float64, varP float64) GPDRisk {
	if len(returns) < 3 {
		return GPDRisk{}
	}
	if varP <= 0 {
		varP = DefaultVaRProbability
	}
	losses := make([]float64, 0, len(returns))
	for _, r := range returns {
		if -r > 0 {
			losses = append(losses, -r)
		}
	}

	threshold := gpdDefaultThreshold
	for threshold > gpdMinimumThreshold {
		exceedances := make([]float64, 0, len(losses))
		for _, l := range losses {
			if l >= threshold {
				exceedances = append(exceedances, l)
			}
		}
		scale, shape, ok := fitGPD(exceedances)
		if ok {
			varEstimate := gpdVaR(threshold, scale, shape, varP, len(losses), len(exceedances))
			if shape > 0 && varEstimate > 0 {
				return GPDRisk{
					Threshold: threshold,
					Scale:     scale,
					Shape:     shape,
					VaR:       varEstimate,
					ES:        gpdES(varEstimate, threshold, scale, shape),
				}
			}
		}
		threshold /= 2
	}
	return GPDRisk{}
}

// fitGPD maximizes the GPD log-likelihood of the exceedances over
// (scale, shape), seeded at (1, 1).
func fitGPD(exceedances []float64) (scale, shape float64, ok bool) {
	if len(exceedances) == 0 {
		return 0, 0, false
	}
	params, converged := nelderMead(func(p []float64) float64 {
		return gpdNegLogLikelihood(p[0], p[1], exceedances)
	}, []float64{1, 1})
	if !converged {
		return 0, 0, false
	}
	return params[0], params[1], true
}

func gpdNegLogLikelihood(scale, shape float64, losses []float64) float64 {
	if shape != 0 {
		return -gpdLogLikelihoodScaleShape(scale, shape, losses)
	}
	return -gpdLogLikelihoodScaleOnly(scale, losses)
}

// gpdLogLikelihoodScaleShape is valid only on scale > 0, shape > 0; outside
// that domain it returns the largest negative float so the minimizer treats
// it as a wall.
func gpdLogLikelihoodScaleShape(scale, shape float64, losses []float64) float64 {
	if scale <= 0 || shape <= 0 {
		return -math.MaxFloat64
	}
	n := float64(len(losses))
	sum := 0.0
	for _, x := range losses {
		sum += math.Log(shape/scale*x + 1)
	}
	return -n*math.Log(scale) - (1/shape+1)*sum
}

func gpdLogLikelihoodScaleOnly(scale float64, losses []float64) float64 {
	if scale < 0 {
		return -math.MaxFloat64
	}
	n := float64(len(losses))
	sum := 0.0
	for _, x := range losses {
		sum += x
	}
	return -n*math.Log(scale) - sum/scale
}

// gpdVaR inverts the fitted tail: threshold + (scale/shape)×(((n/Nu)p)^(−shape) − 1).
func gpdVaR(threshold, scale, shape, probability float64, totalN, exceedanceN int) float64 {
	if exceedanceN <= 0 || shape <= 0 {
		return 0
	}
	probRatio := float64(totalN) / float64(exceedanceN) * probability
	return threshold + scale/shape*(math.Pow(probRatio, -shape)-1)
}

// gpdES is the expected shortfall beyond the VaR estimate.
func gpdES(varEstimate, threshold, scale, shape float64) float64 {
	if 1-shape == 0 {
		return 0
	}
	return varEstimate/(1-shape) + (scale-shape*threshold)/(1-shape)
}

// Nelder-Mead coefficients: reflection, expansion, contraction, shrink.
const (
	nmReflect  = 1.0
	nmExpand   = 2.0
	nmContract = 0.5
	nmShrink   = 0.5
	nmXatol    = 1e-4
	nmFatol    = 1e-4
)

// nelderMead minimizes fn from x0 with the downhill simplex method. The
// initial simplex perturbs each coordinate by 5% (0.00025 absolute for zero
// coordinates); convergence requires the simplex spread to fall within
// xatol/fatol before 200×dim iterations. The boolean reports convergence.
func nelderMead(fn func([]float64) float64, x0 []float64) ([]float64, bool) {
	n := len(x0)
	maxIter := 200 * n

	simplex := make([][]float64, n+1)
	fvals := make([]float64, n+1)
	simplex[0] = append([]float64(nil), x0...)
	for k := 0; k < n; k++ {
		v := append([]float64(nil), x0...)
		if v[k] != 0 {
			v[k] *= 1 + 0.05
		} else {
			v[k] = 0.00025
		}
		simplex[k+1] = v
	}
	for i := range simplex {
		fvals[i] = fn(simplex[i])
	}
	sortSimplex(simplex, fvals)

	for iter := 0; iter < maxIter; iter++ {
		if simplexConverged(simplex, fvals) {
			return simplex[0], true
		}

		// Centroid of every vertex but the worst.
		centroid := make([]float64, n)
		for _, v := range simplex[:n] {
			for j := range centroid {
				centroid[j] += v[j] / float64(n)
			}
		}
		worst := simplex[n]

		reflected := affine(centroid, worst, nmReflect)
		fReflected := fn(reflected)

		switch {
		case nmLess(fReflected, fvals[0]):
			expanded := affine(centroid, worst, nmReflect*nmExpand)
			if fExpanded := fn(expanded); nmLess(fExpanded, fReflected) {
				simplex[n], fvals[n] = expanded, fExpanded
			} else {
				simplex[n], fvals[n] = reflected, fReflected
			}
		case nmLess(fReflected, fvals[n-1]):
			simplex[n], fvals[n] = reflected, fReflected
		case nmLess(fReflected, fvals[n]):
			// Outside contraction.
			contracted := affine(centroid, worst, nmReflect*nmContract)
			if fContracted := fn(contracted); !nmLess(fReflected, fContracted) {
				simplex[n], fvals[n] = contracted, fContracted
			} else {
				shrinkSimplex(simplex, fvals, fn)
			}
		default:
			// Inside contraction.
			contracted := affine(centroid, worst, -nmContract)
			if fContracted := fn(contracted); nmLess(fContracted, fvals[n]) {
				simplex[n], fvals[n] = contracted, fContracted
			} else {
				shrinkSimplex(simplex, fvals, fn)
			}
		}
		sortSimplex(simplex, fvals)
	}
	return simplex[0], false
}

// affine computes centroid + coeff×(centroid − worst).
func affine(centroid, worst []float64, coeff float64) []float64 {
	out := make([]float64, len(centroid))
	for i := range out {
		out[i] = centroid[i] + coeff*(centroid[i]-worst[i])
	}
	return out
}

func shrinkSimplex(simplex [][]float64, fvals []float64, fn func([]float64) float64) {
	best := simplex[0]
	for i := 1; i < len(simplex); i++ {
		for j := range simplex[i] {
			simplex[i][j] = best[j] + nmShrink*(simplex[i][j]-best[j])
		}
		fvals[i] = fn(simplex[i])
	}
}

// sortSimplex orders vertices by ascending objective value, NaN last.
func sortSimplex(simplex [][]float64, fvals []float64) {
	idx := make([]int, len(fvals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return nmLess(fvals[idx[a]], fvals[idx[b]])
	})
	vertices := make([][]float64, len(simplex))
	values := make([]float64, len(fvals))
	for i, j := range idx {
		vertices[i], values[i] = simplex[j], fvals[j]
	}
	copy(simplex, vertices)
	copy(fvals, values)
}

// nmLess orders objective values with NaN treated as worst.
func nmLess(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

func simplexConverged(simplex [][]float64, fvals []float64) bool {
	for i := 1; i < len(simplex); i++ {
		for j := range simplex[i] {
			if math.Abs(simplex[i][j]-simplex[0][j]) > nmXatol {
				return false
			}
		}
		if math.Abs(fvals[i]-fvals[0]) > nmFatol {
			return false
		}
	}
	return true
}
