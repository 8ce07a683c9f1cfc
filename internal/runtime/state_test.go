package runtime

import (
	"testing"

	"genaid/internal/backend"
	"genaid/internal/backend/backendtest"
)

func testModel(t *testing.T, eng *backendtest.Engine) Model {
	t.Helper()
	dir, cfg := testModelDir(t, nil, nil)
	m, err := NewModel(eng, dir, cfg)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestStateStepProducesLogits(t *testing.T) {
	eng := &backendtest.Engine{VocabSize: 8}
	m := testModel(t, eng)

	st, err := m.CreateState()
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	logits, err := st.Step(3, []int32{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(logits) != 8 {
		t.Fatalf("got %d logits, want vocab size 8", len(logits))
	}
	// Fake favors last token + 1.
	if best := argmax(logits); best != 4 {
		t.Fatalf("argmax %d, want 4", best)
	}
}

func TestStateBindsDeclaredInputs(t *testing.T) {
	eng := &backendtest.Engine{}
	m := testModel(t, eng)

	st, _ := m.CreateState()
	if _, err := st.Step(2, []int32{5, 6}, nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	in, ok := st.Input("total_sequence_length")
	if !ok {
		t.Fatal("total_sequence_length not bound despite being declared")
	}
	if got := in.Data.([]int32)[0]; got != 2 {
		t.Fatalf("total_sequence_length = %d, want 2", got)
	}
	if _, ok := st.Input("next_indices"); ok {
		t.Fatal("next_indices bound although the graph does not declare it")
	}
	out, ok := st.Output("logits")
	if !ok {
		t.Fatal("logits output not recorded")
	}
	if out.Name != "logits" {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestStateTerminatesAfterFailedStep(t *testing.T) {
	eng := &backendtest.Engine{FailRunAfter: 1}
	m := testModel(t, eng)

	st, _ := m.CreateState()
	_, err := st.Step(1, []int32{1}, nil)
	if err == nil || !IsEvaluationError(err) {
		t.Fatalf("expected evaluation error, got %v", err)
	}
	if !st.Terminated() {
		t.Fatal("state not terminated after failed evaluation")
	}

	// Subsequent steps fail fast without touching the engine.
	_, err = st.Step(2, []int32{2}, nil)
	if err == nil || !IsStateTerminated(err) {
		t.Fatalf("expected terminated error, got %v", err)
	}
}

func TestStateClearIO(t *testing.T) {
	m := testModel(t, &backendtest.Engine{})
	st, _ := m.CreateState()

	st.SetInput(backend.NamedTensor{Name: "attention_mask", Shape: []int64{1, 4}, Data: []int32{1, 1, 1, 1}})
	if _, ok := st.Input("attention_mask"); !ok {
		t.Fatal("SetInput did not record the tensor")
	}
	if _, err := st.Step(1, []int32{1}, nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	st.ClearIO()
	if _, ok := st.Input("attention_mask"); ok {
		t.Fatal("ClearIO left inputs bound")
	}
	if _, ok := st.Output("logits"); ok {
		t.Fatal("ClearIO left outputs bound")
	}
}

func TestStateStepRequiresTokens(t *testing.T) {
	m := testModel(t, &backendtest.Engine{})
	st, _ := m.CreateState()
	if _, err := st.Step(0, nil, nil); err == nil || !IsConfigError(err) {
		t.Fatalf("expected config error for empty step, got %v", err)
	}
}

func TestCreateStateOnClosedModel(t *testing.T) {
	dir, cfg := testModelDir(t, nil, nil)
	m, err := NewModel(&backendtest.Engine{}, dir, cfg)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	m.Close()
	if _, err := m.CreateState(); err == nil {
		t.Fatal("CreateState succeeded on closed model")
	}
}
