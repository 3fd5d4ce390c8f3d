package artifacts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

// File names inside the artifact directory.
const (
	ModelFile          = "model.json"
	ScalerFile         = "scaler.json"
	EncodersFile       = "label_encoders.json"
	FeatureColumnsFile = "feature_columns.json"
	MetadataFile       = "model_metadata.json"
)

// LoadError reports an artifact that could not be read, decoded, or
// reconciled with the others. The server must not start after one.
type LoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("artifact %s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("artifact %s (%s): %v", e.Artifact, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Components are the decoded artifacts before consistency checks.
type Components struct {
	Regressor      Regressor
	Scaler         *Scaler
	Encoders       map[string]*LabelEncoder
	FeatureColumns []string
	Metadata       Metadata
}

// Store holds the mutually consistent, read-only artifacts. There is no
// mutation API: refreshing a model means building a new Store.
type Store struct {
	regressor   Regressor
	scaler      *Scaler
	encoders    map[string]*LabelEncoder
	columns     []string
	categorical map[string]bool
	metadata    Metadata
}

// NewStore checks that the components describe the same feature space.
func NewStore(c Components) (*Store, error) {
	fail := func(format string, args ...any) (*Store, error) {
		return nil, &LoadError{Artifact: "bundle", Err: fmt.Errorf(format, args...)}
	}

	if c.Regressor == nil || c.Scaler == nil {
		return fail("regressor and scaler are required")
	}
	if len(c.FeatureColumns) == 0 {
		return fail("feature column list is empty")
	}
	seen := make(map[string]bool, len(c.FeatureColumns))
	for _, col := range c.FeatureColumns {
		if col == "" {
			return fail("feature column list contains an empty name")
		}
		if seen[col] {
			return fail("feature column %q listed twice", col)
		}
		seen[col] = true
	}
	if w := c.Scaler.Width(); w != len(c.FeatureColumns) {
		return fail("scaler was fitted on %d columns, feature list has %d", w, len(c.FeatureColumns))
	}
	if n := c.Regressor.NumFeatures(); n != len(c.FeatureColumns) {
		return fail("%s model expects %d features, feature list has %d", c.Regressor.Kind(), n, len(c.FeatureColumns))
	}

	meta := c.Metadata.clone()
	if len(meta.FeatureNames) == 0 {
		meta.FeatureNames = slices.Clone(c.FeatureColumns)
	} else if !slices.Equal(meta.FeatureNames, c.FeatureColumns) {
		return fail("metadata feature_names do not match feature column order")
	}

	categorical := make(map[string]bool, len(meta.CategoricalFeatures))
	for _, col := range meta.CategoricalFeatures {
		categorical[col] = true
		if !seen[col] {
			continue
		}
		if _, ok := c.Encoders[col]; !ok {
			return fail("categorical feature %q has no label encoder", col)
		}
	}
	encoders := make(map[string]*LabelEncoder, len(c.Encoders))
	for col, enc := range c.Encoders {
		if !seen[col] {
			return fail("label encoder for %q which is not a feature column", col)
		}
		if enc == nil {
			return fail("label encoder for %q is nil", col)
		}
		categorical[col] = true
		encoders[col] = enc
	}

	return &Store{
		regressor:   c.Regressor,
		scaler:      c.Scaler,
		encoders:    encoders,
		columns:     slices.Clone(c.FeatureColumns),
		categorical: categorical,
		metadata:    meta,
	}, nil
}

// Load reads the five artifact files from dir.
func Load(dir string) (*Store, error) {
	read := func(artifact, name string) ([]byte, string, error) {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, path, &LoadError{Artifact: artifact, Path: path, Err: err}
		}
		return data, path, nil
	}

	data, path, err := read("model", ModelFile)
	if err != nil {
		return nil, err
	}
	regressor, err := decodeRegressor(data)
	if err != nil {
		return nil, &LoadError{Artifact: "model", Path: path, Err: err}
	}

	if data, path, err = read("scaler", ScalerFile); err != nil {
		return nil, err
	}
	scaler, err := decodeScaler(data)
	if err != nil {
		return nil, &LoadError{Artifact: "scaler", Path: path, Err: err}
	}

	if data, path, err = read("label_encoders", EncodersFile); err != nil {
		return nil, err
	}
	encoders, err := decodeEncoders(data)
	if err != nil {
		return nil, &LoadError{Artifact: "label_encoders", Path: path, Err: err}
	}

	if data, path, err = read("feature_columns", FeatureColumnsFile); err != nil {
		return nil, err
	}
	var columns []string
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, &LoadError{Artifact: "feature_columns", Path: path, Err: err}
	}

	if data, path, err = read("metadata", MetadataFile); err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(data)
	if err != nil {
		return nil, &LoadError{Artifact: "metadata", Path: path, Err: err}
	}

	store, err := NewStore(Components{
		Regressor:      regressor,
		Scaler:         scaler,
		Encoders:       encoders,
		FeatureColumns: columns,
		Metadata:       meta,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Artifacts loaded",
		"dir", dir,
		"model", regressor.Kind(),
		"features", len(columns),
		"encoders", len(encoders),
		"r2_score", meta.R2Score,
		"mae", meta.MAE)
	return store, nil
}

func (s *Store) Regressor() Regressor { return s.regressor }
func (s *Store) Scaler() *Scaler      { return s.scaler }

// FeatureColumns returns the training-time column order.
func (s *Store) FeatureColumns() []string { return slices.Clone(s.columns) }

// Encoder returns the fitted encoder for a column, if it has one.
func (s *Store) Encoder(column string) (*LabelEncoder, bool) {
	enc, ok := s.encoders[column]
	return enc, ok
}

// IsCategorical reports whether the column was label encoded at training time.
func (s *Store) IsCategorical(column string) bool { return s.categorical[column] }

func (s *Store) Metadata() Metadata { return s.metadata.clone() }
