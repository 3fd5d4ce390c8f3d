package artifacts

import (
	"encoding/json"
	"fmt"
)

// Regressor maps a scaled, aligned feature vector to a raw grade estimate.
// Implementations are immutable after decoding and safe for concurrent use.
type Regressor interface {
	Predict(x []float64) (float64, error)
	NumFeatures() int
	Kind() string
}

const (
	KindLinear       = "linear"
	KindRandomForest = "random_forest"
)

// modelDocument is the on-disk envelope of model.json
type modelDocument struct {
	Type         string    `json:"type"`
	NFeatures    int       `json:"n_features,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	Trees        []Tree    `json:"trees,omitempty"`
}

func decodeRegressor(data []byte) (Regressor, error) {
	var doc modelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	switch doc.Type {
	case KindLinear:
		if len(doc.Coefficients) == 0 {
			return nil, fmt.Errorf("linear model has no coefficients")
		}
		if doc.NFeatures != 0 && doc.NFeatures != len(doc.Coefficients) {
			return nil, fmt.Errorf("linear model declares %d features but has %d coefficients", doc.NFeatures, len(doc.Coefficients))
		}
		return &LinearModel{Coefficients: doc.Coefficients, Intercept: doc.Intercept}, nil
	case KindRandomForest:
		return NewForest(doc.NFeatures, doc.Trees)
	case "":
		return nil, fmt.Errorf("model type is missing")
	default:
		return nil, fmt.Errorf("unsupported model type %q", doc.Type)
	}
}

// LinearModel is an ordinary least squares style regressor: intercept + w·x.
type LinearModel struct {
	Coefficients []float64
	Intercept    float64
}

func (m *LinearModel) Kind() string     { return KindLinear }
func (m *LinearModel) NumFeatures() int { return len(m.Coefficients) }

func (m *LinearModel) Predict(x []float64) (float64, error) {
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", len(x), len(m.Coefficients))
	}
	y := m.Intercept
	for i, w := range m.Coefficients {
		y += w * x[i]
	}
	return y, nil
}

// Tree is one fitted regression tree in the flat array layout scikit-learn
// exposes through tree_. A node is a leaf when ChildrenLeft[i] == -1.
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

const leaf = -1

func (t *Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("tree arrays differ in length")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf {
			continue
		}
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has out of range children (%d, %d)", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d, model has %d", i, f, nFeatures)
		}
	}
	return nil
}

// predict walks from the root. Children always have a larger index than their
// parent (checked in validate), so the walk terminates.
func (t *Tree) predict(x []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Forest averages the output of its trees, like RandomForestRegressor.
type Forest struct {
	nFeatures int
	trees     []Tree
}

// NewForest validates the trees against the declared feature count.
func NewForest(nFeatures int, trees []Tree) (*Forest, error) {
	if nFeatures <= 0 {
		return nil, fmt.Errorf("random forest must declare n_features")
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("random forest has no trees")
	}
	for i := range trees {
		if err := trees[i].validate(nFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &Forest{nFeatures: nFeatures, trees: trees}, nil
}

func (f *Forest) Kind() string     { return KindRandomForest }
func (f *Forest) NumFeatures() int { return f.nFeatures }

func (f *Forest) Predict(x []float64) (float64, error) {
	if len(x) != f.nFeatures {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", len(x), f.nFeatures)
	}
	var sum float64
	for i := range f.trees {
		sum += f.trees[i].predict(x)
	}
	return sum / float64(len(f.trees)), nil
}
