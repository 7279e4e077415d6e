package kosketus_test

import (
	"testing"

	"kosketus"
)

func TestAddMulDegenerateCases(t *testing.T) {
	if !kosketus.Add().IsSilence() {
		t.Errorf("empty Add should be silence")
	}
	if !kosketus.Mul().IsSilence() {
		t.Errorf("empty Mul should be silence")
	}
	c := kosketus.Const(3)
	if got := kosketus.Add(c); got.Type != kosketus.TypeConst || got.Value != 3 {
		t.Errorf("single-input Add should return the input, got %+v", got)
	}
	sum := kosketus.Add(c, c)
	if sum.Type != kosketus.TypeAdd || len(sum.Inputs) != 2 {
		t.Errorf("two-input Add should produce an add node, got %+v", sum)
	}
}

func TestIsSilence(t *testing.T) {
	if !kosketus.Silence().IsSilence() {
		t.Errorf("Silence should be silence")
	}
	if kosketus.Const(1).IsSilence() {
		t.Errorf("Const(1) should not be silence")
	}
	if kosketus.Train("t", 100).IsSilence() {
		t.Errorf("a train should not be silence")
	}
}

func TestSignalCopy(t *testing.T) {
	sig := kosketus.Seq("s", []kosketus.Step{{Tick: 0, Value: 1}}, kosketus.LoopWindow{Start: -1, End: 30},
		kosketus.Train("c", 100))
	c := sig.Copy()
	c.Steps[0].Value = 2
	c.Inputs[0].Props["rate"] = 50
	if sig.Steps[0].Value != 1 {
		t.Errorf("Copy should not share the step slice")
	}
	if sig.Inputs[0].Props["rate"] != 100 {
		t.Errorf("Copy should not share input props")
	}
}
