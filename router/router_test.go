package router

import "testing"

func TestAnalyze_FactualDefault(t *testing.T) {
	a := Analyze("what is the rated voltage of the motor", Options{GraphEnabled: true})
	if a.QueryType != TypeFactual {
		t.Errorf("expected factual, got %v", a.QueryType)
	}
	if a.Strategy != StrategyHybrid {
		t.Errorf("expected hybrid strategy, got %v", a.Strategy)
	}
}

func TestAnalyze_RelationalRequiresGraph(t *testing.T) {
	a := Analyze("what is the relationship between Acme GmbH and Contoso AG", Options{GraphEnabled: true})
	if a.QueryType != TypeRelational {
		t.Errorf("expected relational, got %v", a.QueryType)
	}
	if !a.RequiresGraph {
		t.Error("expected requiresGraph=true for relational query with graph enabled")
	}
	if a.Strategy != StrategyHybridWithGraph {
		t.Errorf("expected hybrid_with_graph, got %v", a.Strategy)
	}
}

func TestAnalyze_GraphDisabledNeverRequiresGraph(t *testing.T) {
	a := Analyze("who leads Projekt Phoenix and who reports to them", Options{GraphEnabled: false})
	if a.RequiresGraph {
		t.Error("expected requiresGraph=false when graph disabled regardless of query shape")
	}
}

func TestAnalyze_AggregativeStrategy(t *testing.T) {
	a := Analyze("list all references to ISO 13849 in this document", Options{GraphEnabled: false})
	if a.QueryType != TypeAggregative {
		t.Errorf("expected aggregative, got %v", a.QueryType)
	}
	if a.Strategy != StrategyMultiIndex {
		t.Errorf("expected multi_index strategy, got %v", a.Strategy)
	}
	want := []int{0, 1, 2}
	if len(a.RecommendedLevelFilter) != len(want) {
		t.Errorf("expected level filter %v, got %v", want, a.RecommendedLevelFilter)
	}
}

func TestAnalyze_MultiHopIndicator(t *testing.T) {
	a := Analyze("Acme GmbH supplies the part, and the latter is used by Contoso", Options{GraphEnabled: true})
	if !a.IsMultiHop {
		t.Error("expected isMultiHop=true for 'and the latter' indicator")
	}
}

func TestAnalyze_TableFocusedStrategy(t *testing.T) {
	a := Analyze("what values are in the third column of the table", Options{GraphEnabled: false})
	if !a.RequiresTable {
		t.Error("expected requiresTable=true")
	}
	if a.Strategy != StrategyTableFocused {
		t.Errorf("expected table_focused strategy, got %v", a.Strategy)
	}
}

func TestAnalyze_ConfidenceClamped(t *testing.T) {
	a := Analyze("ISO", Options{})
	if a.Confidence < 0.3 || a.Confidence > 1.0 {
		t.Errorf("confidence out of range: %v", a.Confidence)
	}
}

func TestAnalyze_EntityExtraction(t *testing.T) {
	a := Analyze(`What is "Project Atlas" and how does Acme GmbH relate to it?`, Options{})
	found := map[string]bool{}
	for _, e := range a.Entities {
		found[e] = true
	}
	if !found["Project Atlas"] {
		t.Errorf("expected quoted entity 'Project Atlas' in %v", a.Entities)
	}
	if !found["Acme GmbH"] {
		t.Errorf("expected company-suffix entity 'Acme GmbH' in %v", a.Entities)
	}
}

func TestAnalyze_DeterministicPureFunction(t *testing.T) {
	query := "compare the safety requirements of ISO 13849 vs IEC 61508"
	a1 := Analyze(query, Options{GraphEnabled: true})
	a2 := Analyze(query, Options{GraphEnabled: true})
	if a1.QueryType != a2.QueryType || a1.Strategy != a2.Strategy || a1.Confidence != a2.Confidence {
		t.Error("Analyze should be a deterministic pure function")
	}
}
