package classifier

import "github.com/magajico/oddsfeed/pkg/feed"

// Neutral priors for a match with no known stats. Real team statistics live
// behind upstream APIs; the estimator only nudges the priors with what a
// scoreboard record carries.
var neutralFeatures = [NumFeatures]float64{0.65, 0.55, 0.65, 0.6, 0.58, 0.5, 0.9}

// EstimateFeatures builds the standard feature vector for a record. A live
// score shifts the strength and form estimates toward the leading side.
func EstimateFeatures(r feed.Record) []float64 {
	f := make([]float64, NumFeatures)
	copy(f, neutralFeatures[:])

	if r.Status != "live" {
		return f
	}

	diff := r.HomeScore - r.AwayScore
	shift := clamp(float64(diff)*0.05, -0.2, 0.2)
	f[0] = clamp(f[0]+shift, 0.3, 1.0) // home strength
	f[1] = clamp(f[1]-shift, 0.3, 1.0) // away strength
	f[3] = clamp(f[3]+shift, 0.2, 1.0) // recent form home
	f[4] = clamp(f[4]-shift, 0.2, 1.0) // recent form away
	return f
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
