// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ink

import (
	"strings"
	"testing"
)

func TestProfiler_CollectsSamplesPerContinue(t *testing.T) {
	story, err := NewStory(`{"inkVersion":21,"root":[{"->":"knot"},"done",
		{"knot":["^one","\n","^two","\n","done",null]}]}`)
	if err != nil {
		t.Fatalf("failed to load story: %v", err)
	}

	profiler := story.StartProfiling()

	for story.CanContinue() {
		if _, err := story.Continue(); err != nil {
			t.Fatalf("continue failed: %v", err)
		}
	}

	report := profiler.Report()
	if !strings.Contains(report, "CONTINUES / LINES") {
		t.Errorf("expected report header, got:\n%s", report)
	}
	if !strings.Contains(report, "ROOT") {
		t.Errorf("expected sample hierarchy root, got:\n%s", report)
	}

	stepLog := profiler.StepLog()
	if !strings.Contains(stepLog, "Step type") {
		t.Errorf("expected step log header, got:\n%s", stepLog)
	}
	if want, got := 1, strings.Count(stepLog, "Step type"); want != got {
		t.Errorf("expected %d header line, got %d", want, got)
	}

	story.EndProfiling()
	if story.Profiler() != nil {
		t.Errorf("expected profiling to be over")
	}
}

func TestProfiler_SuspendExcludesSamples(t *testing.T) {
	story, err := NewStory(`{"inkVersion":21,"root":["^line","\n","done",null]}`)
	if err != nil {
		t.Fatalf("failed to load story: %v", err)
	}

	profiler := story.StartProfiling()
	profiler.Suspend()

	if _, err := story.Continue(); err != nil {
		t.Fatalf("continue failed: %v", err)
	}

	if want, got := 0, profiler.RootNode().totalSampleCount; want != got {
		t.Errorf("expected no samples while suspended, got %d", got)
	}

	profiler.Resume()
}
