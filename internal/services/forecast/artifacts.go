package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/services/features"
	"StockCast/pkg/logger"
)

// Metadata is the persisted descriptor of a trained model. Together with
// the weights and both scalers it forms one artifact; all four files must
// exist for the artifact to count.
type Metadata struct {
	Symbol         string                   `json:"symbol"`
	ModelVersion   string                   `json:"model_version"`
	TrainedAt      time.Time                `json:"trained_at"`
	SequenceLength int                      `json:"sequence_length"`
	Horizon        int                      `json:"prediction_horizon"`
	Features       []string                 `json:"features"`
	Metrics        models.ValidationMetrics `json:"validation_metrics"`
}

// Artifact bundles everything needed to run inference for one symbol.
type Artifact struct {
	Net           *Network
	FeatureScaler *RobustScaler
	TargetScaler  *MinMaxScaler
	Meta          Metadata
}

// FeatureConfig snapshots the feature set and definitions a model was
// trained against, enabling the inference-time mismatch check.
type FeatureConfig struct {
	Symbol      string                         `json:"symbol"`
	Features    []string                       `json:"feature_list"`
	Definitions map[string]features.Definition `json:"feature_definitions_snapshot"`
	CreatedAt   time.Time                      `json:"created_at"`
}

// ArtifactStore persists artifacts on the filesystem, one file set per
// symbol. Every write goes to a temp file in the same directory and is
// then renamed into place, so readers never observe a partial file. A
// per-symbol mutex serializes Save against Load: the four-file set is
// superseded as one unit and a reader can never see a new model paired
// with old scalers.
type ArtifactStore struct {
	dir string
	log *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewArtifactStore creates the store rooted at dir.
func NewArtifactStore(dir string, log *logger.Logger) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &ArtifactStore{dir: dir, log: log, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *ArtifactStore) symbolLock(symbol string) *sync.Mutex {
	key := strings.ToUpper(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *ArtifactStore) path(symbol, kind string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", strings.ToUpper(symbol), kind))
}

func (s *ArtifactStore) writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func (s *ArtifactStore) readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Save persists all artifact files for the symbol. Weights and scalers
// land before metadata; Load treats the set as present only when every
// file exists, so a crash mid-save reads as "no artifact".
func (s *ArtifactStore) Save(a *Artifact) error {
	symbol := a.Meta.Symbol
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	steps := []struct {
		kind string
		v    interface{}
	}{
		{"model", a.Net},
		{"feature_scaler", a.FeatureScaler},
		{"target_scaler", a.TargetScaler},
		{"metadata", a.Meta},
	}
	for _, st := range steps {
		if err := s.writeJSON(s.path(symbol, st.kind), st.v); err != nil {
			return &ArtifactIOError{Symbol: symbol, Op: "save " + st.kind, Err: err}
		}
	}
	s.log.Info("artifact saved",
		logger.String("symbol", symbol),
		logger.Int("features", len(a.Meta.Features)),
	)
	return nil
}

// Load reads the full artifact for symbol. Missing or partially present
// file sets return ErrArtifactMissing; corrupt files surface as
// ArtifactIOError.
func (s *ArtifactStore) Load(symbol string) (*Artifact, error) {
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	kinds := []string{"model", "feature_scaler", "target_scaler", "metadata"}
	for _, kind := range kinds {
		if _, err := os.Stat(s.path(symbol, kind)); err != nil {
			if os.IsNotExist(err) {
				return nil, ErrArtifactMissing
			}
			return nil, &ArtifactIOError{Symbol: symbol, Op: "stat " + kind, Err: err}
		}
	}

	a := &Artifact{
		Net:           &Network{},
		FeatureScaler: &RobustScaler{},
		TargetScaler:  &MinMaxScaler{},
	}
	if err := s.readJSON(s.path(symbol, "model"), a.Net); err != nil {
		return nil, &ArtifactIOError{Symbol: symbol, Op: "load model", Err: err}
	}
	if !a.Net.ShapeValid() {
		return nil, &ArtifactIOError{Symbol: symbol, Op: "load model", Err: fmt.Errorf("weight shape invalid")}
	}
	if err := s.readJSON(s.path(symbol, "feature_scaler"), a.FeatureScaler); err != nil {
		return nil, &ArtifactIOError{Symbol: symbol, Op: "load feature scaler", Err: err}
	}
	if err := s.readJSON(s.path(symbol, "target_scaler"), a.TargetScaler); err != nil {
		return nil, &ArtifactIOError{Symbol: symbol, Op: "load target scaler", Err: err}
	}
	if err := s.readJSON(s.path(symbol, "metadata"), &a.Meta); err != nil {
		return nil, &ArtifactIOError{Symbol: symbol, Op: "load metadata", Err: err}
	}
	return a, nil
}

// LoadMetadata reads only the metadata record.
func (s *ArtifactStore) LoadMetadata(symbol string) (*Metadata, error) {
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	var m Metadata
	if err := s.readJSON(s.path(symbol, "metadata"), &m); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactMissing
		}
		return nil, &ArtifactIOError{Symbol: symbol, Op: "load metadata", Err: err}
	}
	return &m, nil
}

// SaveFeatureConfig persists the feature snapshot for a symbol.
func (s *ArtifactStore) SaveFeatureConfig(cfg *FeatureConfig) error {
	l := s.symbolLock(cfg.Symbol)
	l.Lock()
	defer l.Unlock()

	if err := s.writeJSON(s.path(cfg.Symbol, "features"), cfg); err != nil {
		return &ArtifactIOError{Symbol: cfg.Symbol, Op: "save feature config", Err: err}
	}
	return nil
}

// LoadFeatureConfig reads the feature snapshot for a symbol.
func (s *ArtifactStore) LoadFeatureConfig(symbol string) (*FeatureConfig, error) {
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	var cfg FeatureConfig
	if err := s.readJSON(s.path(symbol, "features"), &cfg); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactMissing
		}
		return nil, &ArtifactIOError{Symbol: symbol, Op: "load feature config", Err: err}
	}
	return &cfg, nil
}
