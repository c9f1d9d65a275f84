package regmach

import "testing"

func TestControlStackPushPopLIFO(t *testing.T) {
	var cs ControlStack
	cs.PushFrame(ControlFrame{Kind: FrameBlock})
	cs.PushFrame(ControlFrame{Kind: FrameLoop})
	cs.PushFrame(ControlFrame{Kind: FrameIf})

	if cs.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", cs.Len())
	}
	if cs.Last().Kind != FrameIf {
		t.Fatalf("Last().Kind = %v, want FrameIf", cs.Last().Kind)
	}
	if cs.At(1).Kind != FrameLoop {
		t.Fatalf("At(1).Kind = %v, want FrameLoop", cs.At(1).Kind)
	}
	if cs.At(2).Kind != FrameBlock {
		t.Fatalf("At(2).Kind = %v, want FrameBlock", cs.At(2).Kind)
	}

	popped := cs.PopFrame()
	if popped.Kind != FrameIf {
		t.Fatalf("PopFrame() = %v, want FrameIf", popped.Kind)
	}
	if cs.Len() != 2 {
		t.Fatalf("Len() after pop = %d, want 2", cs.Len())
	}
}

func TestControlFrameBranchDestination(t *testing.T) {
	block := ControlFrame{Kind: FrameBlock, EndLabel: Label(5)}
	if block.BranchDestination() != Label(5) {
		t.Fatal("a block branches to its end label")
	}

	loop := ControlFrame{Kind: FrameLoop, EndLabel: Label(5), HeaderLabel: Label(2)}
	if loop.BranchDestination() != Label(2) {
		t.Fatal("a loop branches to its header label, not its end label")
	}
}

func TestAcquireTargetReturnAtFunctionDepth(t *testing.T) {
	var cs ControlStack
	cs.PushFrame(ControlFrame{Kind: FrameBlock})

	target := cs.AcquireTarget(1) // depth == Len(): the function itself
	if !target.IsReturn {
		t.Fatal("depth equal to stack length should resolve to Return")
	}
}

func TestAcquireTargetCountsBranchesAgainstFrame(t *testing.T) {
	var cs ControlStack
	cs.PushFrame(ControlFrame{Kind: FrameBlock})
	cs.PushFrame(ControlFrame{Kind: FrameLoop})

	target := cs.AcquireTarget(0)
	if target.IsReturn {
		t.Fatal("depth 0 should resolve to the innermost frame, not Return")
	}
	if target.Frame.Kind != FrameLoop {
		t.Fatalf("resolved frame kind = %v, want FrameLoop", target.Frame.Kind)
	}
	if target.Frame.BranchCount != 1 {
		t.Fatalf("BranchCount = %d, want 1", target.Frame.BranchCount)
	}

	cs.AcquireTarget(0)
	if cs.Last().BranchCount != 2 {
		t.Fatalf("BranchCount after second branch = %d, want 2", cs.Last().BranchCount)
	}
}

func TestElseProvidersRoundTrip(t *testing.T) {
	var cs ControlStack
	providers := []Provider{RegProvider(3), ConstProvider(7)}

	cs.PushElseProviders(providers)
	got := cs.PopElseProviders()

	if len(got) != len(providers) {
		t.Fatalf("got %d providers, want %d", len(got), len(providers))
	}
	for i := range providers {
		if got[i] != providers[i] {
			t.Fatalf("provider %d = %+v, want %+v", i, got[i], providers[i])
		}
	}

	// mutating the slice passed to PushElseProviders must not affect the
	// saved copy.
	providers2 := []Provider{RegProvider(1)}
	cs.PushElseProviders(providers2)
	providers2[0] = RegProvider(99)
	got2 := cs.PopElseProviders()
	if got2[0] != RegProvider(1) {
		t.Fatal("PushElseProviders must copy, not alias, its input slice")
	}
}
