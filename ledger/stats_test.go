package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func act(stage Stage, kind Kind, action Action, qty ...float64) Activity {
	return Activity{
		Stage:        stage,
		Kind:         kind,
		Action:       action,
		QtyBreakdown: NewBreakdown(qty...),
	}
}

func TestAggregateGroupsByStage(t *testing.T) {
	stats := Aggregate([]Activity{
		act(StageCut, KindNormal, ActionRecorded, 10, 5),
		act(StageCut, KindNormal, ActionRecorded, 2, 1),
		act(StageSew, KindNormal, ActionRecorded, 8, 4),
	})

	if got, want := stats.Get(StageCut).Processed(), NewBreakdown(12, 6); !got.Equal(want) {
		t.Errorf("cut processed = %v, want %v", got.Floats(), want.Floats())
	}
	if got, want := stats.Get(StageSew).Processed(), NewBreakdown(8, 4); !got.Equal(want) {
		t.Errorf("sew processed = %v, want %v", got.Floats(), want.Floats())
	}
	// Usable mirrors processed.
	if got := stats.Get(StageCut).Usable(); !got.Equal(NewBreakdown(12, 6)) {
		t.Errorf("cut usable = %v, want [12 6]", got.Floats())
	}
}

func TestAggregateMismatchedLengths(t *testing.T) {
	stats := Aggregate([]Activity{
		act(StageCut, KindNormal, ActionRecorded, 10),
		act(StageCut, KindNormal, ActionRecorded, 2, 3, 4),
	})
	if got, want := stats.Get(StageCut).Processed(), NewBreakdown(12, 3, 4); !got.Equal(want) {
		t.Errorf("cut processed = %v, want %v", got.Floats(), want.Floats())
	}
}

func TestAggregateClassifiesReconciled(t *testing.T) {
	stats := Aggregate([]Activity{
		act(StageSew, KindNormal, ActionRecorded, 10),
		act(StageSew, KindDefect, ActionLossReconciled, 2),
		// Defect without reconcile action contributes to neither array.
		act(StageSew, KindDefect, ActionRecorded, 5),
	})

	s := stats.Get(StageSew)
	if !s.Processed().Equal(NewBreakdown(10)) {
		t.Errorf("processed = %v, want [10]", s.Processed().Floats())
	}
	if !s.Reconciled().Equal(NewBreakdown(2)) {
		t.Errorf("reconciled = %v, want [2]", s.Reconciled().Floats())
	}
}

func TestAggregateLegacyFlatQuantity(t *testing.T) {
	legacy := Activity{Stage: StageCut, Kind: KindNormal, Action: ActionRecorded,
		Quantity: decimal.NewFromInt(15)}
	stats := Aggregate([]Activity{legacy})
	if got := stats.Get(StageCut).Processed(); !got.Equal(NewBreakdown(15)) {
		t.Errorf("processed = %v, want [15]", got.Floats())
	}
}

func TestAggregateNoActivityYieldsEmpty(t *testing.T) {
	stats := Aggregate(nil)
	s := stats.Get(StageFinish)
	if s.HasActivity() {
		t.Error("expected no activity at finish")
	}
	if len(s.Usable()) != 0 {
		t.Errorf("usable = %v, want empty", s.Usable().Floats())
	}
}

func TestAggregateFallbackOnlyWhenSilent(t *testing.T) {
	fb := Fallback{Stage: StageCut, Processed: NewBreakdown(20, 20)}

	// Silent stage: fallback applies.
	stats := Aggregate(nil, fb)
	if got := stats.Get(StageCut).Processed(); !got.Equal(NewBreakdown(20, 20)) {
		t.Errorf("fallback processed = %v, want [20 20]", got.Floats())
	}

	// Stage with activity: the stream wins.
	stats = Aggregate([]Activity{act(StageCut, KindNormal, ActionRecorded, 3)}, fb)
	if got := stats.Get(StageCut).Processed(); !got.Equal(NewBreakdown(3)) {
		t.Errorf("processed = %v, want [3]", got.Floats())
	}
}

func TestAggregateFallbackUsableOverride(t *testing.T) {
	fb := Fallback{
		Stage:     StageSew,
		Processed: NewBreakdown(10),
		Usable:    NewBreakdown(8),
	}
	stats := Aggregate(nil, fb)
	if got := stats.Get(StageSew).Usable(); !got.Equal(NewBreakdown(8)) {
		t.Errorf("usable = %v, want [8]", got.Floats())
	}
}
