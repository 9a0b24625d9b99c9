package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to ProjectStatus
		want     bool
	}{
		{StatusDraft, StatusUploading, true},
		{StatusUploading, StatusIngested, true},
		{StatusIngested, StatusEmbedded, true},
		{StatusEmbedded, StatusGenerating, true},
		{StatusGenerating, StatusGenerated, true},
		{StatusGenerated, StatusExported, true},

		// Re-runs over a finished project are allowed.
		{StatusEmbedded, StatusIngested, true},
		{StatusGenerated, StatusGenerating, true},
		{StatusExported, StatusUploading, true},
		{StatusExported, StatusExported, true},

		// Error is recoverable through any pipeline stage.
		{StatusError, StatusUploading, true},
		{StatusError, StatusGenerating, true},

		// Stage skips are not.
		{StatusDraft, StatusEmbedded, false},
		{StatusDraft, StatusGenerating, false},
		{StatusUploading, StatusGenerated, false},
		{StatusIngested, StatusExported, false},

		// A run in flight blocks everything except its own completion.
		{StatusGenerating, StatusGenerating, false},
		{StatusGenerating, StatusUploading, false},
		{StatusGenerating, StatusExported, false},

		{ProjectStatus("bogus"), StatusUploading, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTransition(t *testing.T) {
	got, err := Transition(StatusEmbedded, StatusGenerating)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if got != StatusGenerating {
		t.Fatalf("expected generating, got %s", got)
	}

	got, err = Transition(StatusDraft, StatusGenerated)
	if !IsKind(err, ErrStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got != StatusDraft {
		t.Fatalf("failed transition must return the current status, got %s", got)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []ProjectStatus{
		StatusDraft, StatusUploading, StatusIngested, StatusEmbedded,
		StatusGenerating, StatusGenerated, StatusExported, StatusError,
	} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if ProjectStatus("archived").Valid() {
		t.Errorf("unknown status must be invalid")
	}
}

func TestRAGOptionsNormalize(t *testing.T) {
	def := DefaultRAGOptions()

	got := (RAGOptions{}).Normalize()
	if got.ChunkSize != def.ChunkSize || got.TopK != def.TopK || got.MinSimilarity != def.MinSimilarity {
		t.Fatalf("zero options must normalize to defaults, got %+v", got)
	}
	if got.ChunkOverlap != 0 {
		t.Fatalf("explicit zero overlap is legal, got %d", got.ChunkOverlap)
	}

	custom := RAGOptions{ChunkSize: 500, ChunkOverlap: 50, TopK: 3, MinSimilarity: 0.4}
	if got := custom.Normalize(); got != custom {
		t.Fatalf("valid options must pass through, got %+v", got)
	}

	// Overlap must stay below the chunk size.
	bad := RAGOptions{ChunkSize: 100, ChunkOverlap: 100, TopK: 3, MinSimilarity: 0.4}
	if got := bad.Normalize(); got.ChunkOverlap >= got.ChunkSize {
		t.Fatalf("overlap must normalize below chunk size, got %+v", got)
	}
}
