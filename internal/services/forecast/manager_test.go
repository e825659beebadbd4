package forecast

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"StockCast/internal/services/features"
	"StockCast/pkg/queue"
)

func testManager(t *testing.T, maxAge time.Duration) (*Manager, *stubMetrics) {
	t.Helper()
	log := testLogger(t)
	store, err := NewArtifactStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewArtifactStore: %v", err)
	}
	engine := features.NewEngine(features.NewRegistry(), log)
	metrics := newStubMetrics()
	pool := queue.NewPool(1, 2, log)
	t.Cleanup(pool.Stop)

	m := NewManager(
		NewTrainer(engine, store, log, 20, 3),
		NewPredictor(engine, metrics, log),
		NewFallback(log),
		store,
		pool,
		metrics,
		log,
		maxAge,
		20, 3,
	)
	return m, metrics
}

func TestPredictWithoutArtifact(t *testing.T) {
	m, metrics := testManager(t, 24*time.Hour)
	table := marketTable(t, 120)

	_, err := m.Predict(context.Background(), table, "AAPL", 3)
	var notTrained *ModelNotTrainedError
	if !errors.As(err, &notTrained) {
		t.Fatalf("err = %v, want ModelNotTrainedError", err)
	}
	if notTrained.Symbol != "AAPL" {
		t.Fatalf("symbol = %q", notTrained.Symbol)
	}
	// A missing model is an explicit condition; the fallback ladder must
	// not silently serve instead.
	if metrics.tierCount(TierTrend) != 0 || metrics.tierCount(TierWalk) != 0 {
		t.Fatalf("fallback served for an untrained symbol")
	}
}

func TestTrainThenPredict(t *testing.T) {
	m, metrics := testManager(t, 7*24*time.Hour)
	table := marketTable(t, 200)
	ctx := context.Background()

	summary, err := m.Train(ctx, table, "AAPL", fastConfig())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if summary.Epochs == 0 {
		t.Fatalf("empty training summary")
	}
	if got := m.State("AAPL"); got != "trained" {
		t.Fatalf("state = %q, want trained", got)
	}

	res, err := m.Predict(ctx, table, "AAPL", 5)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(res.Points) != 5 {
		t.Fatalf("points = %d, want 5", len(res.Points))
	}
	if res.OverallConfidence < 0.2 || res.OverallConfidence > 0.9 {
		t.Fatalf("overall confidence %v out of bounds", res.OverallConfidence)
	}
	lastTime := table.LastTime()
	for i, p := range res.Points {
		want := lastTime.Add(time.Duration(i+1) * 24 * time.Hour)
		if !p.Date.Equal(want) {
			t.Fatalf("point %d date = %v, want %v", i, p.Date, want)
		}
		if p.Price <= 0 || p.Lower <= 0 || p.Upper < p.Price {
			t.Fatalf("point %d bounds invalid: %+v", i, p)
		}
	}
	if metrics.tierCount(TierModel) != 1 {
		t.Fatalf("model tier count = %d, want 1", metrics.tierCount(TierModel))
	}
}

func TestPredictShortHistoryAfterTrain(t *testing.T) {
	m, _ := testManager(t, 7*24*time.Hour)
	ctx := context.Background()

	if _, err := m.Train(ctx, marketTable(t, 200), "AAPL", fastConfig()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	// Fewer rows than one input window.
	_, err := m.Predict(ctx, marketTable(t, 10), "AAPL", 3)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
}

func TestTrainRejectsConcurrentRun(t *testing.T) {
	m, _ := testManager(t, 24*time.Hour)
	e := m.entry("AAPL")
	e.mu.Lock()
	e.state = stateTraining
	e.mu.Unlock()

	_, err := m.Train(context.Background(), marketTable(t, 200), "AAPL", fastConfig())
	if !errors.Is(err, ErrTrainingInProgress) {
		t.Fatalf("err = %v, want ErrTrainingInProgress", err)
	}
}

func TestTrainFailureRestoresState(t *testing.T) {
	m, metrics := testManager(t, 24*time.Hour)

	_, err := m.Train(context.Background(), marketTable(t, 30), "AAPL", fastConfig())
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
	if got := m.State("AAPL"); got != "untrained" {
		t.Fatalf("state after failed train = %q, want untrained", got)
	}
	metrics.mu.Lock()
	failures := metrics.trainings["failure"]
	metrics.mu.Unlock()
	if failures != 1 {
		t.Fatalf("failure trainings = %d, want 1", failures)
	}
}

func TestRetrainIfNeeded(t *testing.T) {
	m, _ := testManager(t, time.Nanosecond)
	ctx := context.Background()

	if !m.RetrainIfNeeded("AAPL", 10) {
		t.Fatalf("missing artifact must request a retrain")
	}

	if _, err := m.Train(ctx, marketTable(t, 200), "AAPL", fastConfig()); err != nil {
		t.Fatalf("Train: %v", err)
	}

	// Stale by age, but history too short to retrain on.
	if m.RetrainIfNeeded("AAPL", 10) {
		t.Fatalf("short history must not request a retrain")
	}
	if !m.RetrainIfNeeded("AAPL", 200) {
		t.Fatalf("stale model with enough history must request a retrain")
	}
	if got := m.State("AAPL"); got != "stale" {
		t.Fatalf("state = %q, want stale", got)
	}
}

func TestRetrainNotNeededWhenFresh(t *testing.T) {
	m, _ := testManager(t, 7*24*time.Hour)
	if _, err := m.Train(context.Background(), marketTable(t, 200), "AAPL", fastConfig()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if m.RetrainIfNeeded("AAPL", 200) {
		t.Fatalf("fresh model must not request a retrain")
	}
}

func TestModelInfo(t *testing.T) {
	m, _ := testManager(t, 24*time.Hour)

	_, err := m.ModelInfo("AAPL")
	var notTrained *ModelNotTrainedError
	if !errors.As(err, &notTrained) {
		t.Fatalf("err = %v, want ModelNotTrainedError", err)
	}

	if _, err := m.Train(context.Background(), marketTable(t, 200), "AAPL", fastConfig()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	info, err := m.ModelInfo("AAPL")
	if err != nil {
		t.Fatalf("ModelInfo: %v", err)
	}
	if info.Symbol != "AAPL" || info.SequenceLength != 20 || info.Horizon != 3 {
		t.Fatalf("info = %+v", info)
	}
	if len(info.Features) == 0 || info.ModelVersion == "" {
		t.Fatalf("info incomplete: %+v", info)
	}
}

func TestPredictCorruptArtifact(t *testing.T) {
	m, metrics := testManager(t, 7*24*time.Hour)
	table := marketTable(t, 200)
	ctx := context.Background()

	if _, err := m.Train(ctx, table, "AAPL", fastConfig()); err != nil {
		t.Fatalf("Train: %v", err)
	}

	// Corrupt the persisted model and force a cold read through a fresh
	// manager, the way a restarted process would see it.
	if err := os.WriteFile(m.store.path("AAPL", "model"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt model file: %v", err)
	}
	cold := NewManager(m.trainer, m.predictor, m.fallback, m.store, m.pool,
		metrics, m.log, 7*24*time.Hour, 20, 3)

	_, err := cold.Predict(ctx, table, "AAPL", 3)
	var ioErr *ArtifactIOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("err = %v, want ArtifactIOError", err)
	}
	// A broken artifact surfaces to the caller; serving a fallback here
	// would hide the corruption until the next retrain.
	if metrics.tierCount(TierTrend) != 0 || metrics.tierCount(TierWalk) != 0 {
		t.Fatalf("fallback served for a corrupt artifact")
	}
}

func TestPredictSubstitutesFewMissingFeatures(t *testing.T) {
	m, metrics := testManager(t, 7*24*time.Hour)
	table := marketTable(t, 200)
	ctx := context.Background()

	if _, err := m.Train(ctx, table, "AAPL", fastConfig()); err != nil {
		t.Fatalf("Train: %v", err)
	}

	// Rewrite three of the trained columns to names the engine cannot
	// derive. Three of eighteen is inside the substitution budget, so
	// inference forward-fills them from the scaler center and still
	// serves from the model tier.
	e := m.entry("AAPL")
	e.mu.Lock()
	total := len(e.artifact.Meta.Features)
	e.artifact.Meta.Features[total-3] = "OBV"
	e.artifact.Meta.Features[total-2] = "CCI"
	e.artifact.Meta.Features[total-1] = "Williams_R"
	e.mu.Unlock()

	res, err := m.Predict(ctx, table, "AAPL", 3)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.ModelVersion == "fallback" {
		t.Fatalf("degraded result served despite in-budget substitution")
	}
	if metrics.tierCount(TierModel) != 1 {
		t.Fatalf("model tier count = %d, want 1", metrics.tierCount(TierModel))
	}
}

func TestPredictRejectsTooManyMissingFeatures(t *testing.T) {
	m, metrics := testManager(t, 7*24*time.Hour)
	table := marketTable(t, 200)
	ctx := context.Background()

	if _, err := m.Train(ctx, table, "AAPL", fastConfig()); err != nil {
		t.Fatalf("Train: %v", err)
	}

	e := m.entry("AAPL")
	e.mu.Lock()
	total := len(e.artifact.Meta.Features)
	for i := 0; i < 5; i++ {
		e.artifact.Meta.Features[total-1-i] = "Unknown_" + string(rune('A'+i))
	}
	e.mu.Unlock()

	_, err := m.Predict(ctx, table, "AAPL", 3)
	var mismatch *FeatureMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want FeatureMismatchError", err)
	}
	if len(mismatch.Missing) != 5 || mismatch.Total != total {
		t.Fatalf("mismatch = %d of %d, want 5 of %d", len(mismatch.Missing), mismatch.Total, total)
	}
	// Over-budget mismatch is a refusal, not a degradation.
	if metrics.tierCount(TierTrend) != 0 || metrics.tierCount(TierWalk) != 0 {
		t.Fatalf("fallback served for an over-budget feature mismatch")
	}
}

func TestPredictDegradesToTrendOnInternalFailure(t *testing.T) {
	m, metrics := testManager(t, 7*24*time.Hour)
	table := marketTable(t, 200)
	ctx := context.Background()

	if _, err := m.Train(ctx, table, "AAPL", fastConfig()); err != nil {
		t.Fatalf("Train: %v", err)
	}

	// Break the cached artifact's scaler. The transform failure is an
	// internal defect, so the ladder steps down to the trend tier.
	e := m.entry("AAPL")
	e.mu.Lock()
	e.artifact.FeatureScaler.Fitted = false
	e.mu.Unlock()

	res, err := m.Predict(ctx, table, "AAPL", 3)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.ModelVersion != "fallback" {
		t.Fatalf("version = %q, want fallback", res.ModelVersion)
	}
	if len(res.Points) != 3 {
		t.Fatalf("points = %d, want 3", len(res.Points))
	}
	if metrics.tierCount(TierTrend) != 1 || metrics.tierCount(TierModel) != 0 {
		t.Fatalf("tiers = model %d trend %d, want 0/1",
			metrics.tierCount(TierModel), metrics.tierCount(TierTrend))
	}
}

func TestDegradeReachesRandomWalk(t *testing.T) {
	m, metrics := testManager(t, 7*24*time.Hour)

	// One close is too short for the trend tier but enough for a walk.
	res, err := m.degrade("AAPL", marketTable(t, 1), 3, nil)
	if err != nil {
		t.Fatalf("degrade: %v", err)
	}
	if res.ModelVersion != "fallback" || len(res.Points) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if metrics.tierCount(TierWalk) != 1 {
		t.Fatalf("walk tier count = %d, want 1", metrics.tierCount(TierWalk))
	}
}

func TestDegradeWithoutHistory(t *testing.T) {
	m, _ := testManager(t, 7*24*time.Hour)

	_, err := m.degrade("AAPL", marketTable(t, 0), 3, nil)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
	if insufficient.Have != 0 || insufficient.Need != 1 {
		t.Fatalf("have/need = %d/%d, want 0/1", insufficient.Have, insufficient.Need)
	}
}
