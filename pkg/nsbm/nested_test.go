package nsbm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/crespin/nsbm-clustering-service/pkg/dataset"
	"github.com/crespin/nsbm-clustering-service/pkg/engine/enginetest"
)

func newTestDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("node-%d", i)
	}
	ds := dataset.New(names)
	adj, err := dataset.NewAdjacencyMatrix(n)
	if err != nil {
		t.Fatalf("adjacency: %v", err)
	}
	for i := 0; i < n-1; i++ {
		if err := adj.Set(i, i+1, 1); err != nil {
			t.Fatalf("adjacency: %v", err)
		}
		if err := adj.Set(i+1, i, 1); err != nil {
			t.Fatalf("adjacency: %v", err)
		}
	}
	if err := ds.SetAdjacency(adj); err != nil {
		t.Fatalf("set adjacency: %v", err)
	}
	return ds
}

func twoLevelConfig() Config {
	cfg := DefaultConfig()
	cfg.HierarchyLength = 2
	return cfg
}

func TestNestedModelValidatesBeforeEngine(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1, 1}}}

	cfg := twoLevelConfig()
	cfg.CollectMarginals = true
	cfg.Equilibrate = false

	_, err := NestedModel(ds, stub, cfg)
	if !errors.Is(err, ErrMarginalsNeedEquilibration) {
		t.Fatalf("err = %v, want ErrMarginalsNeedEquilibration", err)
	}
	if stub.BuildCalls != 0 {
		t.Errorf("engine was called %d times before validation failed", stub.BuildCalls)
	}
}

func TestNestedModelRequiresAdjacency(t *testing.T) {
	ds := dataset.New([]string{"a", "b", "c"})
	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1}}}

	_, err := NestedModel(ds, stub, twoLevelConfig())
	if !errors.Is(err, ErrNoAdjacency) {
		t.Fatalf("err = %v, want ErrNoAdjacency", err)
	}
	if stub.BuildCalls != 0 {
		t.Errorf("engine was called despite the missing adjacency")
	}
	if len(ds.ObsKeys()) != 0 || len(ds.Uns) != 0 {
		t.Errorf("failed run modified the dataset")
	}
}

func TestNestedModelAnnotates(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{
		Hierarchy:       [][]int{{0, 0, 1, 1}, {0, 0, 0, 0}},
		ModularityScore: 0.25,
	}

	out, err := NestedModel(ds, stub, twoLevelConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != ds {
		t.Errorf("without Copy the input dataset must be annotated in place")
	}

	if _, ok := out.Obs("nsbm_level_0"); ok {
		t.Errorf("level 0 attached without ReturnLow")
	}
	col, ok := out.Obs("nsbm_level_1")
	if !ok {
		t.Fatalf("level 1 column missing; obs keys: %v", out.ObsKeys())
	}
	if col.NumCategories() != 1 {
		t.Errorf("level 1 has %d categories, want 1", col.NumCategories())
	}

	ann, ok := out.Uns["nsbm"].(*Annotation)
	if !ok {
		t.Fatalf("Uns[nsbm] = %T, want *Annotation", out.Uns["nsbm"])
	}
	if len(ann.Stats.Modularity) != 2 || len(ann.Stats.LevelEntropy) != 2 {
		t.Errorf("stats cover %d/%d levels, want 2", len(ann.Stats.Modularity), len(ann.Stats.LevelEntropy))
	}
	if ann.Stats.Modularity[0] != 0.25 {
		t.Errorf("modularity = %v, want 0.25", ann.Stats.Modularity[0])
	}
	if ann.Stats.Equilibrate == nil {
		t.Errorf("equilibration stats missing")
	}
	if ann.HasMarginals() {
		t.Errorf("marginals present although collection was disabled")
	}
	if ann.CellMarginals != nil {
		t.Errorf("CellMarginals = %v, want nil when disabled", ann.CellMarginals)
	}
	if ann.State != nil {
		t.Errorf("engine state retained without SaveState")
	}
	if stub.SweepCalls != 1 || stub.EquilibrateCalls != 1 {
		t.Errorf("sweep/equilibrate calls = %d/%d, want 1/1", stub.SweepCalls, stub.EquilibrateCalls)
	}
}

func TestNestedModelReturnLow(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1, 1}, {0, 0, 0, 0}}}

	cfg := twoLevelConfig()
	cfg.ReturnLow = true
	if _, err := NestedModel(ds, stub, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	col, ok := ds.Obs("nsbm_level_0")
	if !ok {
		t.Fatalf("level 0 column missing despite ReturnLow")
	}
	if col.NumCategories() != 2 {
		t.Errorf("level 0 has %d categories, want 2", col.NumCategories())
	}
}

func TestNestedModelPrune(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{Hierarchy: [][]int{
		{0, 0, 1, 1},
		{5, 5, 2, 2}, // same grouping as below, renamed
		{0, 0, 0, 0},
	}}

	cfg := twoLevelConfig()
	cfg.HierarchyLength = 3
	cfg.Prune = true
	if _, err := NestedModel(ds, stub, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := ds.Obs("nsbm_level_1"); ok {
		t.Errorf("redundant level 1 survived pruning")
	}
	if _, ok := ds.Obs("nsbm_level_2"); !ok {
		t.Errorf("informative level 2 was pruned; obs keys: %v", ds.ObsKeys())
	}

	// Pruning drops columns only; the annotation keeps every level.
	ann := ds.Uns["nsbm"].(*Annotation)
	if len(ann.Stats.LevelEntropy) != 3 {
		t.Errorf("annotation covers %d levels, want 3", len(ann.Stats.LevelEntropy))
	}
}

func TestNestedModelCopy(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1, 1}, {0, 0, 0, 0}}}

	cfg := twoLevelConfig()
	cfg.Copy = true
	out, err := NestedModel(ds, stub, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == ds {
		t.Fatalf("Copy must return a distinct dataset")
	}
	if len(ds.ObsKeys()) != 0 || len(ds.Uns) != 0 {
		t.Errorf("input dataset was modified under Copy")
	}
	if _, ok := out.Obs("nsbm_level_1"); !ok {
		t.Errorf("copy is missing the label column")
	}
}

func TestNestedModelMarginals(t *testing.T) {
	ds := newTestDataset(t, 4)
	hierarchy := [][]int{{0, 0, 1, 1}, {0, 0, 0, 0}}
	stub := &enginetest.Stub{
		Hierarchy:            hierarchy,
		IterationHierarchies: [][][]int{hierarchy},
	}

	cfg := twoLevelConfig()
	cfg.CollectMarginals = true
	cfg.CollectIterations = 3
	if _, err := NestedModel(ds, stub, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.EquilibrateCalls != 2 {
		t.Errorf("equilibrate calls = %d, want 2 (convergence + collection)", stub.EquilibrateCalls)
	}

	ann := ds.Uns["nsbm"].(*Annotation)
	if !ann.HasMarginals() {
		t.Fatalf("marginals missing")
	}
	if len(ann.CellMarginals) != 2 {
		t.Fatalf("cell marginals cover %d levels, want 2", len(ann.CellMarginals))
	}
	rows, _ := ann.CellMarginals[0].Dims()
	if rows != 4 {
		t.Errorf("level 0 marginals have %d rows, want 4", rows)
	}
	// With a fixed scripted partition every node's counts concentrate on one
	// group across all forced iterations.
	for i := 0; i < rows; i++ {
		var total float64
		_, cols := ann.CellMarginals[0].Dims()
		for j := 0; j < cols; j++ {
			total += ann.CellMarginals[0].At(i, j)
		}
		if total != 3 {
			t.Errorf("node %d counts sum to %v, want 3", i, total)
		}
	}
	if len(ann.GroupMarginals) != 2 {
		t.Errorf("group marginals cover %d levels, want 2", len(ann.GroupMarginals))
	}
	if len(ann.Stats.MeanFieldEntropy) != 2 {
		t.Errorf("mean-field entropy covers %d levels, want 2", len(ann.Stats.MeanFieldEntropy))
	}
}

func TestNestedModelReplacesStaleColumns(t *testing.T) {
	ds := newTestDataset(t, 4)
	stale := dataset.CategoricalFromValues([]string{"x", "x", "y", "y"})
	if err := ds.SetObs("nsbm_level_7", stale); err != nil {
		t.Fatalf("set obs: %v", err)
	}
	keep := dataset.CategoricalFromValues([]string{"t", "t", "b", "b"})
	if err := ds.SetObs("cell_type", keep); err != nil {
		t.Fatalf("set obs: %v", err)
	}

	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1, 1}, {0, 0, 0, 0}}}
	if _, err := NestedModel(ds, stub, twoLevelConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ds.Obs("nsbm_level_7"); ok {
		t.Errorf("stale output column survived the rerun")
	}
	if _, ok := ds.Obs("cell_type"); !ok {
		t.Errorf("unrelated column was dropped")
	}
}

func TestNestedModelRerunIdempotent(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1, 1}, {0, 0, 0, 0}}}

	for run := 0; run < 2; run++ {
		if _, err := NestedModel(ds, stub, twoLevelConfig()); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}
	count := 0
	for _, key := range ds.ObsKeys() {
		if key == "nsbm_level_1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("level 1 column appears %d times after rerun, want 1", count)
	}
	if len(ds.ObsKeys()) != 1 {
		t.Errorf("obs keys after rerun = %v, want exactly the level 1 column", ds.ObsKeys())
	}
}

func TestNestedModelRestrict(t *testing.T) {
	ds := newTestDataset(t, 5)
	batch := dataset.CategoricalFromValues([]string{"a", "a", "a", "b", "b"})
	if err := ds.SetObs("batch", batch); err != nil {
		t.Fatalf("set obs: %v", err)
	}

	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1}, {0, 0, 0}}}
	cfg := twoLevelConfig()
	cfg.RestrictKey = "batch"
	cfg.RestrictCategories = []string{"a"}
	cfg.ReturnLow = true
	if _, err := NestedModel(ds, stub, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	col, ok := ds.Obs("nsbm_level_0")
	if !ok {
		t.Fatalf("level 0 column missing")
	}
	if col.Len() != 5 {
		t.Fatalf("restricted column has %d values, want 5", col.Len())
	}
	for i := 0; i < 3; i++ {
		if col.Code(i) == dataset.MissingCode {
			t.Errorf("selected node %d has no label", i)
		}
	}
	for i := 3; i < 5; i++ {
		if col.Code(i) != dataset.MissingCode {
			t.Errorf("unselected node %d got label %q", i, col.Value(i))
		}
	}

	ann := ds.Uns["nsbm"].(*Annotation)
	wantIdx := []int{0, 1, 2}
	if len(ann.RestrictIndices) != len(wantIdx) {
		t.Fatalf("restrict indices = %v, want %v", ann.RestrictIndices, wantIdx)
	}
	for i, idx := range wantIdx {
		if ann.RestrictIndices[i] != idx {
			t.Errorf("restrict indices = %v, want %v", ann.RestrictIndices, wantIdx)
		}
	}
}

func TestNestedModelRestrictUnknownColumn(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1, 1}}}

	cfg := twoLevelConfig()
	cfg.RestrictKey = "no_such_column"
	if _, err := NestedModel(ds, stub, cfg); err == nil {
		t.Fatal("expected error for unknown restriction column")
	}
	if stub.BuildCalls != 0 {
		t.Errorf("engine was called despite the failed restriction")
	}
}

func TestNestedModelSaveState(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1, 1}, {0, 0, 0, 0}}}

	cfg := twoLevelConfig()
	cfg.SaveState = true
	if _, err := NestedModel(ds, stub, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ann := ds.Uns["nsbm"].(*Annotation)
	if ann.State == nil {
		t.Errorf("engine state not retained despite SaveState")
	}
}

func TestNestedModelPadsShallowHierarchy(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1, 1}}}

	cfg := twoLevelConfig()
	cfg.HierarchyLength = 4
	if _, err := NestedModel(ds, stub, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ann := ds.Uns["nsbm"].(*Annotation)
	if len(ann.Stats.LevelEntropy) != 4 {
		t.Errorf("hierarchy has %d levels, want 4 after padding", len(ann.Stats.LevelEntropy))
	}
	for l := 1; l < 4; l++ {
		col, ok := ds.Obs(fmt.Sprintf("nsbm_level_%d", l))
		if !ok {
			t.Fatalf("padded level %d missing", l)
		}
		if col.NumCategories() != 1 {
			t.Errorf("padded level %d has %d categories, want 1", l, col.NumCategories())
		}
	}
}

func TestFastModel(t *testing.T) {
	ds := newTestDataset(t, 4)
	stub := &enginetest.Stub{Hierarchy: [][]int{{0, 0, 1, 1}, {0, 0, 0, 0}}}

	cfg := twoLevelConfig()
	cfg.Equilibrate = false // the fast path equilibrates regardless
	out, err := FastModel(ds, stub, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.NewStateCalls != 1 || stub.MinimizeCalls != 0 {
		t.Errorf("new-state/minimize calls = %d/%d, want 1/0", stub.NewStateCalls, stub.MinimizeCalls)
	}
	if stub.SweepCalls != 0 {
		t.Errorf("fast path ran %d sweeps, want 0", stub.SweepCalls)
	}
	if stub.EquilibrateCalls != 1 {
		t.Errorf("equilibrate calls = %d, want 1", stub.EquilibrateCalls)
	}
	if _, ok := out.Obs("nsbm_level_1"); !ok {
		t.Errorf("fast path did not attach the label column")
	}
	ann := out.Uns["nsbm"].(*Annotation)
	if ann.Stats.Equilibrate == nil {
		t.Errorf("fast path must always carry equilibration stats")
	}
}
