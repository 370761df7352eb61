package cmd

import (
	"testing"

	"github.com/sitesignal/sitesignal/internal/progress"
)

func TestSummarizeTalliesProgressStream(t *testing.T) {
	events := []progress.Event{
		{Stage: progress.StageRunStart},
		{Stage: progress.StageFetchAttempt, Site: "a.example"},
		{Stage: progress.StageFetchAttempt, Site: "a.example"},
		{Stage: progress.StageEscalated, Site: "a.example"},
		{Stage: progress.StageSignalFound, Name: "emails"},
		{Stage: progress.StageStageDone, Name: "sitemap"},
		{Stage: progress.StageRunDone},
		{Stage: progress.StageRunStart},
		{Stage: progress.StageRunError},
	}

	sum := summarize(events)
	if sum.Runs != 2 {
		t.Fatalf("expected 2 runs, got %d", sum.Runs)
	}
	if sum.Failures != 1 {
		t.Fatalf("expected 1 failure, got %d", sum.Failures)
	}
	if sum.FetchAttempts != 2 {
		t.Fatalf("expected 2 fetch attempts, got %d", sum.FetchAttempts)
	}
	if sum.Escalations != 1 {
		t.Fatalf("expected 1 escalation, got %d", sum.Escalations)
	}
	if sum.Signals != 1 {
		t.Fatalf("expected 1 signal, got %d", sum.Signals)
	}
}

func TestSummarizeEmptyStream(t *testing.T) {
	if sum := summarize(nil); sum != (runSummary{}) {
		t.Fatalf("expected zero summary, got %+v", sum)
	}
}
