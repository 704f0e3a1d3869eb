package tune

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/hypertune/internal/learn"
	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/resample"
)

// listControl drives the test-list strategy: evaluate a fixed candidate list,
// report the best trial.
type listControl struct {
	configs []param.Config
	opts    Opts
}

func (c *listControl) Kind() string { return "test-list" }
func (c *listControl) Opts() *Opts  { return &c.opts }

type listSearch struct{}

func (listSearch) Search(ctx context.Context, ev *Evaluator, space *param.Space, ctrl Control, path *optpath.Path) (*SearchOutcome, error) {
	c := ctrl.(*listControl)
	from := path.Len()
	for _, cfg := range c.configs {
		if _, _, err := ev.Evaluate(ctx, cfg); err != nil {
			return nil, err
		}
	}
	best, err := path.ArgBest(from, path.Len(), 0, ev.Primary().Minimize)
	if err != nil {
		return nil, err
	}
	return &SearchOutcome{BestIndex: best}, nil
}

// bogusControl drives a strategy that reports a best index it never evaluated.
type bogusControl struct{ opts Opts }

func (c *bogusControl) Kind() string { return "test-bogus" }
func (c *bogusControl) Opts() *Opts  { return &c.opts }

type bogusSearch struct{}

func (bogusSearch) Search(ctx context.Context, ev *Evaluator, space *param.Space, ctrl Control, path *optpath.Path) (*SearchOutcome, error) {
	return &SearchOutcome{BestIndex: 99}, nil
}

func init() {
	Register("test-list", listSearch{})
	Register("test-bogus", bogusSearch{})
}

func testTask(t *testing.T) *learn.Task {
	t.Helper()
	task := &learn.Task{
		Name: "synthetic", Type: learn.TaskRegr,
		Features: make([][]float64, 10),
		Targets:  make([]float64, 10),
	}
	for i := range task.Features {
		task.Features[i] = []float64{float64(i)}
		task.Targets[i] = float64(i)
	}
	return task
}

func testLearner() learn.Learner {
	return &learn.FuncLearner{
		ID: "test.stub",
		FitFn: func(task *learn.Task, train []int, params param.Config) (learn.Model, error) {
			return nil, fmt.Errorf("stub learner must not be trained")
		},
	}
}

func xSpace(t *testing.T, opts ...param.Option) *param.Space {
	t.Helper()
	space, err := param.NewSpace(param.Numeric("x", 0, 10, opts...))
	require.NoError(t, err)
	return space
}

// scoreFn builds a resample collaborator computing the score directly from
// the transformed configuration.
func scoreFn(f func(params param.Config) (float64, error)) resample.Fn {
	return func(ctx context.Context, lrn learn.Learner, task *learn.Task, plan *resample.Plan, measures []learn.Measure, params param.Config) (*resample.Result, error) {
		y, err := f(params)
		if err != nil {
			return nil, err
		}
		aggr := make([]float64, len(measures))
		for i := range aggr {
			aggr[i] = y
		}
		return &resample.Result{Aggr: aggr}, nil
	}
}

func xConfigs(xs ...float64) []param.Config {
	cfgs := make([]param.Config, len(xs))
	for i, x := range xs {
		cfgs[i] = param.Config{"x": x}
	}
	return cfgs
}

func TestResolveImputed(t *testing.T) {
	measures := []learn.Measure{learn.MMCE(), learn.Accuracy()}

	imputed, err := resolveImputed(measures, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, imputed)

	override := 0.25
	imputed, err = resolveImputed(measures, &override)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25}, imputed)

	_, err = resolveImputed([]learn.Measure{learn.MSE()}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imputation override")

	_, err = resolveImputed([]learn.Measure{learn.MSE()}, &override)
	assert.NoError(t, err)
}

func TestTuneInputValidation(t *testing.T) {
	ctx := context.Background()
	task := testTask(t)
	space := xSpace(t)
	measures := []learn.Measure{learn.MMCE()}
	ctrl := &listControl{configs: xConfigs(1)}

	tests := []struct {
		name string
		run  func() error
	}{
		{"nil learner", func() error {
			_, err := Tune(ctx, nil, task, resample.CV(2), measures, space, ctrl, nil)
			return err
		}},
		{"nil task", func() error {
			_, err := Tune(ctx, testLearner(), nil, resample.CV(2), measures, space, ctrl, nil)
			return err
		}},
		{"invalid task", func() error {
			_, err := Tune(ctx, testLearner(), &learn.Task{Name: "bad", Type: "cluster"}, resample.CV(2), measures, space, ctrl, nil)
			return err
		}},
		{"no measures", func() error {
			_, err := Tune(ctx, testLearner(), task, resample.CV(2), nil, space, ctrl, nil)
			return err
		}},
		{"nil space", func() error {
			_, err := Tune(ctx, testLearner(), task, resample.CV(2), measures, nil, ctrl, nil)
			return err
		}},
		{"nil control", func() error {
			_, err := Tune(ctx, testLearner(), task, resample.CV(2), measures, space, nil, nil)
			return err
		}},
		{"nil resampling", func() error {
			_, err := Tune(ctx, testLearner(), task, nil, measures, space, ctrl, nil)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.run())
		})
	}
}

type unknownControl struct{ opts Opts }

func (c *unknownControl) Kind() string { return "annealing" }
func (c *unknownControl) Opts() *Opts  { return &c.opts }

func TestTuneUnknownKind(t *testing.T) {
	_, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), &unknownControl{}, scoreFn(func(param.Config) (float64, error) { return 0, nil }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy kind")
	assert.Contains(t, err.Error(), "annealing")
}

func TestTunePicksBestTrial(t *testing.T) {
	ctrl := &listControl{configs: xConfigs(1, 2, 3, 4, 5)}
	fn := scoreFn(func(params param.Config) (float64, error) {
		return math.Abs(params["x"].(float64) - 3), nil
	})

	result, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Path.Len())
	assert.Equal(t, 2, result.BestIndex)
	assert.Equal(t, 3.0, result.Best["x"])
	assert.Equal(t, 0.0, result.BestY[0])
	assert.Equal(t, 0, result.FailedTrials)
	assert.NotEmpty(t, result.RunID)

	// The winner always corresponds to a recorded trial.
	rec, err := result.Path.Record(result.BestIndex)
	require.NoError(t, err)
	assert.Equal(t, param.Key(result.Best), param.Key(rec.Config))
}

func TestTransformsAppliedBeforeCollaborator(t *testing.T) {
	space := xSpace(t, param.WithTrafo(func(x float64) float64 { return math.Pow(2, x) }))
	ctrl := &listControl{configs: xConfigs(3)}

	var seen float64
	fn := scoreFn(func(params param.Config) (float64, error) {
		seen = params["x"].(float64)
		return 0, nil
	})

	result, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, space, ctrl, fn)
	require.NoError(t, err)

	// The collaborator sees the transformed value, the path the raw one.
	assert.Equal(t, 8.0, seen)
	assert.Equal(t, 3.0, result.Best["x"])
	assert.Equal(t, 8.0, result.BestTrafo["x"])
}

func TestInactiveDependentParameterOmitted(t *testing.T) {
	space, err := param.NewSpace(
		param.Discrete("kernel", []string{"rbf", "linear"}),
		param.Numeric("sigma", 0, 1, param.Requires(param.Eq("kernel", "rbf"))),
	)
	require.NoError(t, err)

	// The strategy proposes sigma even though kernel=linear deactivates it.
	ctrl := &listControl{configs: []param.Config{{"kernel": "linear", "sigma": 0.5}}}
	var seen param.Config
	fn := scoreFn(func(params param.Config) (float64, error) {
		seen = params
		return 0, nil
	})

	result, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, space, ctrl, fn)
	require.NoError(t, err)

	_, inFn := seen["sigma"]
	assert.False(t, inFn, "collaborator must not see inactive parameters")
	rec, err := result.Path.Record(0)
	require.NoError(t, err)
	_, inPath := rec.Config["sigma"]
	assert.False(t, inPath, "path must not record inactive parameters")
}

func TestFailedTrialsImputed(t *testing.T) {
	ctrl := &listControl{
		configs: xConfigs(1, 2, 3),
		opts:    Opts{DumpErrors: true},
	}
	fn := scoreFn(func(params param.Config) (float64, error) {
		x := params["x"].(float64)
		if x == 2 {
			return 0, fmt.Errorf("no convergence at x=%g", x)
		}
		return x / 10, nil
	})

	result, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Path.Len())
	assert.Equal(t, 1, result.FailedTrials)

	rec, err := result.Path.Record(1)
	require.NoError(t, err)
	assert.True(t, rec.Failed())
	assert.Equal(t, 1.0, rec.Y[0], "failed trial imputed with the measure's worst value")
	assert.Contains(t, rec.ErrMsg, "no convergence")
	assert.Contains(t, rec.ErrDump, "x=2")

	// Imputed scores never win under minimization.
	assert.Equal(t, 0, result.BestIndex)
}

func TestAllTrialsFailStillProducesResult(t *testing.T) {
	var calls int
	ctrl := &listControl{configs: xConfigs(1, 2, 3, 4)}
	fn := scoreFn(func(params param.Config) (float64, error) {
		calls++
		return 0, fmt.Errorf("broken learner")
	})

	result, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	require.NoError(t, err)

	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, result.Path.Len())
	assert.Equal(t, 4, result.FailedTrials)
	for _, rec := range result.Path.Records() {
		assert.True(t, rec.Failed())
		assert.NotEmpty(t, rec.ErrMsg)
		assert.Equal(t, 1.0, rec.Y[0])
	}
	// With every score imputed identically, the earliest trial wins.
	assert.Equal(t, 0, result.BestIndex)
}

func TestImputeOverride(t *testing.T) {
	override := 0.42
	ctrl := &listControl{configs: xConfigs(1), opts: Opts{ImputeVal: &override}}
	fn := scoreFn(func(param.Config) (float64, error) { return 0, fmt.Errorf("boom") })

	result, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	require.NoError(t, err)

	rec, err := result.Path.Record(0)
	require.NoError(t, err)
	assert.Equal(t, 0.42, rec.Y[0])
}

func TestUnboundedMeasureRequiresOverride(t *testing.T) {
	ctrl := &listControl{configs: xConfigs(1)}
	fn := scoreFn(func(param.Config) (float64, error) { return 1, nil })

	_, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MSE()}, xSpace(t), ctrl, fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imputation override")

	override := 1e6
	ctrl = &listControl{configs: xConfigs(1), opts: Opts{ImputeVal: &override}}
	_, err = Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MSE()}, xSpace(t), ctrl, fn)
	assert.NoError(t, err)
}

func TestOnTrialHook(t *testing.T) {
	var mu sync.Mutex
	var indices []int
	ctrl := &listControl{
		configs: xConfigs(1, 2, 3),
		opts: Opts{OnTrial: func(rec optpath.Record) {
			mu.Lock()
			indices = append(indices, rec.Index)
			mu.Unlock()
		}},
	}
	fn := scoreFn(func(params param.Config) (float64, error) { return params["x"].(float64), nil })

	_, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, indices)
}

func TestSameResamplingInstance(t *testing.T) {
	record := func(planIDs *[]string) resample.Fn {
		return func(ctx context.Context, lrn learn.Learner, task *learn.Task, plan *resample.Plan, measures []learn.Measure, params param.Config) (*resample.Result, error) {
			*planIDs = append(*planIDs, plan.ID)
			return &resample.Result{Aggr: []float64{0}}, nil
		}
	}

	var shared []string
	ctrl := &listControl{configs: xConfigs(1, 2, 3), opts: Opts{SameResamplingInstance: true}}
	_, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, record(&shared))
	require.NoError(t, err)
	require.Len(t, shared, 3)
	assert.Equal(t, shared[0], shared[1])
	assert.Equal(t, shared[0], shared[2])

	var fresh []string
	ctrl = &listControl{configs: xConfigs(1, 2, 3)}
	_, err = Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, record(&fresh))
	require.NoError(t, err)
	require.Len(t, fresh, 3)
	assert.NotEqual(t, fresh[0], fresh[1])
}

func TestPreinstantiatedPlanShared(t *testing.T) {
	task := testTask(t)
	plan, err := resample.CV(2).Instantiate(task, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	var planIDs []string
	fn := func(ctx context.Context, lrn learn.Learner, tk *learn.Task, p *resample.Plan, measures []learn.Measure, params param.Config) (*resample.Result, error) {
		planIDs = append(planIDs, p.ID)
		return &resample.Result{Aggr: []float64{0}}, nil
	}

	ctrl := &listControl{configs: xConfigs(1, 2)}
	_, err = Tune(context.Background(), testLearner(), task, plan,
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	require.NoError(t, err)
	require.Len(t, planIDs, 2)
	assert.Equal(t, plan.ID, planIDs[0])
	assert.Equal(t, plan.ID, planIDs[1])
}

func TestCancelledRunKeepsPartialPath(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	ctrl := &listControl{configs: xConfigs(5, 1, 2, 3)}
	fn := scoreFn(func(params param.Config) (float64, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return params["x"].(float64) / 10, nil
	})

	result, err := Tune(ctx, testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	require.NoError(t, err, "aborted run must still package its partial path")

	assert.Equal(t, 2, result.Path.Len())
	// Best over the completed trials only.
	assert.Equal(t, 1, result.BestIndex)
	assert.Equal(t, 1.0, result.Best["x"])
}

func TestCancelledBeforeAnyTrialFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl := &listControl{configs: xConfigs(1)}
	fn := scoreFn(func(param.Config) (float64, error) { return 0, nil })

	_, err := Tune(ctx, testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	assert.Error(t, err)
}

func TestThresholdTuning(t *testing.T) {
	// Perfectly separable probabilities: any threshold in (0.4, 0.6] scores 0.
	pred := &learn.Prediction{
		Truth:    []float64{0, 0, 1, 1},
		Response: []float64{0, 1, 1, 1},
		Prob:     []float64{0.1, 0.4, 0.6, 0.9},
	}
	fn := func(ctx context.Context, lrn learn.Learner, task *learn.Task, plan *resample.Plan, measures []learn.Measure, params param.Config) (*resample.Result, error) {
		return &resample.Result{Aggr: []float64{0.25}, Pred: pred}, nil
	}

	ctrl := &listControl{configs: xConfigs(1), opts: Opts{TuneThreshold: true}}
	result, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.ThresholdY)
	assert.Greater(t, result.Threshold, 0.4)
	assert.LessOrEqual(t, result.Threshold, 0.6)
}

func TestThresholdTuningRequiresProbabilities(t *testing.T) {
	// A collaborator that retains no probabilities fails the trial, it does
	// not crash the run.
	fn := func(ctx context.Context, lrn learn.Learner, task *learn.Task, plan *resample.Plan, measures []learn.Measure, params param.Config) (*resample.Result, error) {
		return &resample.Result{Aggr: []float64{0.25}}, nil
	}
	ctrl := &listControl{configs: xConfigs(1), opts: Opts{TuneThreshold: true}}

	_, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, fn)
	// The single trial failed and was imputed; threshold tuning on the winner
	// then has no predictions to work with.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no prediction")
}

func TestMalformedCollaboratorResultFailsTrial(t *testing.T) {
	tests := []struct {
		name string
		fn   resample.Fn
	}{
		{"nil result", func(ctx context.Context, lrn learn.Learner, task *learn.Task, plan *resample.Plan, measures []learn.Measure, params param.Config) (*resample.Result, error) {
			return nil, nil
		}},
		{"wrong score count", func(ctx context.Context, lrn learn.Learner, task *learn.Task, plan *resample.Plan, measures []learn.Measure, params param.Config) (*resample.Result, error) {
			return &resample.Result{Aggr: []float64{1, 2, 3}}, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &listControl{configs: xConfigs(1)}
			result, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
				[]learn.Measure{learn.MMCE()}, xSpace(t), ctrl, tt.fn)
			require.NoError(t, err)
			assert.Equal(t, 1, result.FailedTrials)
		})
	}
}

func TestStrategyReportingUnevaluatedBestFails(t *testing.T) {
	_, err := Tune(context.Background(), testLearner(), testTask(t), resample.CV(2),
		[]learn.Measure{learn.MMCE()}, xSpace(t), &bogusControl{},
		scoreFn(func(param.Config) (float64, error) { return 0, nil }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a matching trial")
}

func TestRegisterDuplicateKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("re-registering a kind should panic")
		}
	}()
	Register("test-list", listSearch{})
}

func TestPlanProviderRejectsUnknownTypes(t *testing.T) {
	task := testTask(t)

	_, err := planProvider(nil, task, &Opts{})
	assert.Error(t, err)

	_, err = planProvider((*resample.Plan)(nil), task, &Opts{})
	assert.Error(t, err)

	_, err = planProvider(resample.Desc{Method: "loo"}, task, &Opts{})
	assert.Error(t, err)
}

func TestKindsSorted(t *testing.T) {
	kinds := Kinds()
	require.NotEmpty(t, kinds)
	for i := 1; i < len(kinds); i++ {
		if strings.Compare(kinds[i-1], kinds[i]) >= 0 {
			t.Errorf("Kinds() not sorted: %v", kinds)
		}
	}
}
