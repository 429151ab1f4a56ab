package ingest

import "testing"

func TestEvaluate_CounterpartUnpaused(t *testing.T) {
	if got := Evaluate(false, false); got != ActionReply {
		t.Errorf("expected reply, got %s", got)
	}
}

func TestEvaluate_CounterpartPaused(t *testing.T) {
	if got := Evaluate(false, true); got != ActionIgnore {
		t.Errorf("expected ignore, got %s", got)
	}
}

func TestEvaluate_OperatorUnpaused(t *testing.T) {
	if got := Evaluate(true, false); got != ActionPause {
		t.Errorf("expected pause, got %s", got)
	}
}

func TestEvaluate_OperatorAlreadyPaused(t *testing.T) {
	// An operator message while paused still pauses, so the idle clock
	// restarts from the newest human activity.
	if got := Evaluate(true, true); got != ActionPause {
		t.Errorf("expected pause, got %s", got)
	}
}
