package chat

import (
	"strconv"
	"testing"
	"time"
)

func TestBuildProviderTurns_AllEmpty(t *testing.T) {
	turns := BuildProviderTurns("", nil, "")
	if len(turns) != 0 {
		t.Fatalf("expected empty list, got %d turns", len(turns))
	}

	// Пробельный промпт и текст тоже считаются пустыми
	turns = BuildProviderTurns("   ", nil, "\n\t ")
	if len(turns) != 0 {
		t.Fatalf("expected empty list for whitespace input, got %d turns", len(turns))
	}
}

func TestBuildProviderTurns_SystemAndUser(t *testing.T) {
	turns := BuildProviderTurns("Sys", nil, "Hi")
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleSystem || turns[0].Text != "Sys" {
		t.Errorf("expected system turn 'Sys', got %+v", turns[0])
	}
	if turns[1].Role != RoleUser || turns[1].Text != "Hi" {
		t.Errorf("expected user turn 'Hi', got %+v", turns[1])
	}
}

func TestBuildProviderTurns_HistoryPreserved(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Text: "One"},
		{Role: RoleAssistant, Text: "Two"},
	}

	turns := BuildProviderTurns("Sys", history, "Three")
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	if turns[1].Text != "One" || turns[2].Text != "Two" {
		t.Errorf("history order broken: %+v", turns)
	}
	if turns[3].Role != RoleUser || turns[3].Text != "Three" {
		t.Errorf("expected new user turn last, got %+v", turns[3])
	}
}

func TestBuildProviderTurns_HistoryOnly(t *testing.T) {
	history := []Turn{{Role: RoleUser, Text: "One"}}
	turns := BuildProviderTurns("", history, "")
	if len(turns) != 1 || turns[0].Text != "One" {
		t.Fatalf("expected history passthrough, got %+v", turns)
	}
}

func TestTrim_UnderLimit(t *testing.T) {
	history := makeHistory(20)
	trimmed := Trim(history, 20)
	if len(trimmed) != 20 {
		t.Fatalf("expected 20 turns, got %d", len(trimmed))
	}
	for i := range history {
		if trimmed[i].Text != history[i].Text {
			t.Fatalf("turn %d changed: %+v", i, trimmed[i])
		}
	}
}

func TestTrim_OverLimit(t *testing.T) {
	history := makeHistory(27)
	trimmed := Trim(history, 20)
	if len(trimmed) != 20 {
		t.Fatalf("expected 20 turns, got %d", len(trimmed))
	}
	// Должны остаться последние 20 в исходном порядке
	for i := 0; i < 20; i++ {
		if trimmed[i].Text != history[7+i].Text {
			t.Fatalf("expected turn %q at index %d, got %q", history[7+i].Text, i, trimmed[i].Text)
		}
	}
}

func TestTrim_DoesNotMutateSource(t *testing.T) {
	history := makeHistory(25)
	_ = Trim(history, 20)
	if len(history) != 25 {
		t.Fatalf("source history changed length: %d", len(history))
	}
	if history[0].Text != "turn-0" {
		t.Fatalf("source history mutated: %+v", history[0])
	}
}

func makeHistory(n int) []Turn {
	now := time.Now()
	history := make([]Turn, 0, n)
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		history = append(history, Turn{Role: role, Text: "turn-" + strconv.Itoa(i), Timestamp: now})
	}
	return history
}
