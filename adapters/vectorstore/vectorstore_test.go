package vectorstore

import "testing"

func TestBlendScores_AlphaExtremes(t *testing.T) {
	candidates := []ScoredChunk{
		{Chunk: Chunk{ID: "a"}, VectorScore: 1.0, LexicalScore: 0.0},
		{Chunk: Chunk{ID: "b"}, VectorScore: 0.0, LexicalScore: 1.0},
	}

	blendScores(candidates, 1.0)
	if candidates[0].Score != 1.0 || candidates[1].Score != 0.0 {
		t.Fatalf("alpha=1 should select purely on vector score, got %+v", candidates)
	}

	blendScores(candidates, 0.0)
	if candidates[0].Score != 0.0 || candidates[1].Score != 1.0 {
		t.Fatalf("alpha=0 should select purely on lexical score, got %+v", candidates)
	}
}

func TestBlendScores_Midpoint(t *testing.T) {
	candidates := []ScoredChunk{
		{Chunk: Chunk{ID: "a"}, VectorScore: 1.0, LexicalScore: 0.0},
		{Chunk: Chunk{ID: "b"}, VectorScore: 0.0, LexicalScore: 1.0},
	}
	blendScores(candidates, 0.5)
	if candidates[0].Score != 0.5 || candidates[1].Score != 0.5 {
		t.Fatalf("alpha=0.5 should tie both candidates, got %+v", candidates)
	}
}

func TestBlendScores_DegenerateRangeNormalizesToZero(t *testing.T) {
	candidates := []ScoredChunk{
		{Chunk: Chunk{ID: "a"}, VectorScore: 0.42, LexicalScore: 0.7},
		{Chunk: Chunk{ID: "b"}, VectorScore: 0.42, LexicalScore: 0.7},
	}
	blendScores(candidates, 0.5)
	for _, c := range candidates {
		if c.Score != 0 {
			t.Errorf("expected zero score when min==max for both signals, got %v", c.Score)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize(5, 0, 10); got != 0.5 {
		t.Errorf("normalize(5,0,10) = %v, want 0.5", got)
	}
	if got := normalize(3, 3, 3); got != 0 {
		t.Errorf("normalize with zero range should return 0, got %v", got)
	}
}
