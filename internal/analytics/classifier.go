package analytics

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Archetype is a financial-personality label.
type Archetype string

const (
	ConservativeSaver Archetype = "Conservative Saver"
	BalancedPlanner   Archetype = "Balanced Planner"
	AggressiveSpender Archetype = "Aggressive Spender"
)

// archetypeByCluster maps a cluster index to its label. Clusters are
// indexed by descending centroid savings ratio.
var archetypeByCluster = [...]Archetype{ConservativeSaver, BalancedPlanner, AggressiveSpender}

const (
	// ReferenceVersion identifies the reference population below. Bump it
	// whenever the prototypes, sizes or seed change.
	ReferenceVersion = "v1"
	// ReferenceSeed seeds the synthetic reference population.
	ReferenceSeed int64 = 42

	referencePerProfile = 60
	clusterCount        = 3
	maxKMeansIterations = 50
)

// referenceProfile is the center of one synthetic sub-population, in raw
// feature units.
type referenceProfile struct {
	ratio, mean, stddev float64
}

var referenceProfiles = []referenceProfile{
	{ratio: 0.45, mean: 80, stddev: 60},
	{ratio: 0.15, mean: 250, stddev: 220},
	{ratio: -0.10, mean: 600, stddev: 700},
}

type point [3]float64

// featureWeights scale each standardized dimension before distances are
// taken. The savings ratio decides the archetype; the amount dimensions only
// separate users whose ratios are close.
var featureWeights = point{1, 0.25, 0.25}

// Classifier assigns feature vectors to the nearest centroid of a fixed
// reference clustering. It is immutable after construction and safe for
// concurrent use.
type Classifier struct {
	centroids [clusterCount]point // standardized space, index = archetype
	center    point
	scale     point
}

// NewClassifier builds the reference clustering. Identical inputs always
// produce identical classifiers.
func NewClassifier() *Classifier {
	raw := referencePopulation(ReferenceSeed)

	transformed := make([]point, len(raw))
	for i, p := range raw {
		transformed[i] = transform(p)
	}
	center, scale := standardization(transformed)

	zs := make([]point, len(transformed))
	for i, p := range transformed {
		zs[i] = standardize(p, center, scale)
	}

	centroids := kmeans(zs, clusterCount)
	// Highest savings ratio first, so index 0 is the most conservative.
	sort.SliceStable(centroids, func(i, j int) bool {
		return centroids[i][0] > centroids[j][0]
	})

	c := &Classifier{center: center, scale: scale}
	copy(c.centroids[:], centroids)
	return c
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
)

// DefaultClassifier returns the process-wide classifier, building it on
// first use.
func DefaultClassifier() *Classifier {
	defaultOnce.Do(func() {
		defaultClassifier = NewClassifier()
	})
	return defaultClassifier
}

// Classify returns the archetype whose centroid is nearest to fv.
// Non-finite components are treated as zero.
func (c *Classifier) Classify(fv FeatureVector) Archetype {
	return archetypeByCluster[c.nearest(fv)]
}

func (c *Classifier) nearest(fv FeatureVector) int {
	p := point{finite(fv.SavingsRatio), finite(fv.MeanAmount), finite(fv.AmountStdDev)}
	z := standardize(transform(p), c.center, c.scale)

	best := 0
	bestDist := math.Inf(1)
	for i, centroid := range c.centroids {
		if d := squaredDistance(z, centroid); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Centroid is a cluster center in raw feature units.
type Centroid struct {
	Archetype Archetype
	Features  FeatureVector
}

// Centroids returns the calibrated cluster centers, most conservative first.
func (c *Classifier) Centroids() []Centroid {
	out := make([]Centroid, 0, clusterCount)
	for i, z := range c.centroids {
		t := unstandardize(z, c.center, c.scale)
		out = append(out, Centroid{
			Archetype: archetypeByCluster[i],
			Features: FeatureVector{
				SavingsRatio: t[0],
				MeanAmount:   math.Expm1(t[1]),
				AmountStdDev: math.Expm1(t[2]),
			},
		})
	}
	return out
}

// referencePopulation draws the synthetic reference set. Amounts are
// log-normally spread around each profile.
func referencePopulation(seed int64) []point {
	rng := rand.New(rand.NewSource(seed))
	out := make([]point, 0, len(referenceProfiles)*referencePerProfile)
	for _, prof := range referenceProfiles {
		for i := 0; i < referencePerProfile; i++ {
			out = append(out, point{
				prof.ratio + rng.NormFloat64()*0.06,
				prof.mean * math.Exp(rng.NormFloat64()*0.2),
				prof.stddev * math.Exp(rng.NormFloat64()*0.2),
			})
		}
	}
	return out
}

// transform compresses the amount dimensions onto a log scale.
func transform(p point) point {
	return point{p[0], math.Log1p(math.Max(p[1], 0)), math.Log1p(math.Max(p[2], 0))}
}

func standardization(ps []point) (center, scale point) {
	n := float64(len(ps))
	for _, p := range ps {
		for d := range p {
			center[d] += p[d]
		}
	}
	for d := range center {
		center[d] /= n
	}
	for _, p := range ps {
		for d := range p {
			diff := p[d] - center[d]
			scale[d] += diff * diff
		}
	}
	for d := range scale {
		scale[d] = math.Sqrt(scale[d] / n)
		if scale[d] == 0 {
			scale[d] = 1
		}
	}
	return center, scale
}

func standardize(p, center, scale point) point {
	var z point
	for d := range p {
		z[d] = (p[d] - center[d]) / scale[d] * featureWeights[d]
	}
	return z
}

func unstandardize(z, center, scale point) point {
	var p point
	for d := range z {
		p[d] = z[d]/featureWeights[d]*scale[d] + center[d]
	}
	return p
}

// kmeans partitions ps into k clusters and returns the centroids.
// Initialization is deterministic: start with the first point, then pick
// the point farthest from the chosen centroids each time.
func kmeans(ps []point, k int) []point {
	if k > len(ps) {
		k = len(ps)
	}
	centroids := make([]point, 0, k)
	centroids = append(centroids, ps[0])
	for len(centroids) < k {
		bestIdx := 0
		bestDist := -1.0
		for i, p := range ps {
			d := math.Inf(1)
			for _, c := range centroids {
				if dist := squaredDistance(p, c); dist < d {
					d = dist
				}
			}
			if d > bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		centroids = append(centroids, ps[bestIdx])
	}

	assign := make([]int, len(ps))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for i, p := range ps {
			best := 0
			bestDist := math.Inf(1)
			for c := range centroids {
				if d := squaredDistance(p, centroids[c]); d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]point, k)
		counts := make([]int, k)
		for i, p := range ps {
			for d := range p {
				sums[assign[i]][d] += p[d]
			}
			counts[assign[i]]++
		}
		for c := range centroids {
			// Empty clusters keep their previous centroid
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	return centroids
}

func squaredDistance(a, b point) float64 {
	var sum float64
	for d := range a {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return sum
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
