// forest.go implements the decision tree ensemble classifier. Trees are
// exported at training time as flattened node arrays, the artifact is
// read-only and traversal is stateless, so a Forest is safe for concurrent
// use across pipelines.
package screamdet

import (
	"encoding/json"
	"os"

	"github.com/soundsentry/screamdet-go/internal/errors"
)

// Tree is one decision tree in flattened array form. Node i is a leaf when
// ChildrenLeft[i] < 0, in which case Value[i] holds the positive class
// fraction at that leaf. Internal nodes route left when
// x[Feature[i]] <= Threshold[i].
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

// Forest is an ensemble of decision trees with a fixed input shape.
type Forest struct {
	Version     string `json:"version"`
	NumFeatures int    `json:"num_features"`
	Trees       []Tree `json:"trees"`
}

// LoadForest reads a classifier artifact from disk and validates its node
// arrays so traversal can never index out of range.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("screamdet").
			Category(errors.CategoryModelLoad).
			Context("artifact", "forest").
			Build()
	}

	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.New(err).
			Component("screamdet").
			Category(errors.CategoryModelLoad).
			Context("artifact", "forest").
			Build()
	}

	if f.NumFeatures <= 0 || len(f.Trees) == 0 {
		return nil, errors.Newf("forest artifact is malformed: %d features, %d trees", f.NumFeatures, len(f.Trees)).
			Component("screamdet").
			Category(errors.CategoryModelLoad).
			Context("artifact", "forest").
			Build()
	}

	for ti := range f.Trees {
		if err := f.Trees[ti].validate(ti, f.NumFeatures); err != nil {
			return nil, err
		}
	}

	return &f, nil
}

func (t *Tree) validate(index, numFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 || len(t.ChildrenRight) != n || len(t.Feature) != n ||
		len(t.Threshold) != n || len(t.Value) != n {
		return errors.Newf("tree %d has inconsistent node arrays", index).
			Component("screamdet").
			Category(errors.CategoryModelLoad).
			Build()
	}
	for i := 0; i < n; i++ {
		if t.ChildrenLeft[i] >= n || t.ChildrenRight[i] >= n {
			return errors.Newf("tree %d node %d references child out of range", index, i).
				Component("screamdet").
				Category(errors.CategoryModelLoad).
				Build()
		}
		if t.ChildrenLeft[i] >= 0 && (t.Feature[i] < 0 || t.Feature[i] >= numFeatures) {
			return errors.Newf("tree %d node %d splits on feature %d outside model shape %d", index, i, t.Feature[i], numFeatures).
				Component("screamdet").
				Category(errors.CategoryModelLoad).
				Build()
		}
	}
	return nil
}

// predict walks the tree for one normalized vector and returns the leaf's
// positive class fraction.
func (t *Tree) predict(x []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] >= 0 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Probability returns the scream probability in [0,1] for a normalized
// feature vector, the average of per-tree leaf fractions. A wrong-shape
// vector always fails with a model-shape error, never a silent wrong
// prediction.
func (f *Forest) Probability(values []float64) (float64, error) {
	if len(values) != f.NumFeatures {
		return 0, errors.Newf("feature vector has %d dimensions, forest expects %d", len(values), f.NumFeatures).
			Component("screamdet").
			Category(errors.CategoryModelShape).
			Priority(errors.PriorityCritical).
			Build()
	}

	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].predict(values)
	}
	p := sum / float64(len(f.Trees))

	// leaf values are fractions, clamp against artifact rounding noise
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	return p, nil
}
