package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedCatalogRenders(t *testing.T) {
	cat, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := cat.Render("battle.waiting_for_opponent", map[string]string{"Opponent": "bob"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out == "" {
		t.Fatalf("empty waiting message")
	}
	if _, err := cat.Render("battle.no_such_key", nil); err == nil {
		t.Fatalf("missing key did not error")
	}
}

func TestOverrideDirWins(t *testing.T) {
	dir := t.TempDir()
	override := "battle:\n  finished_draw: \"custom draw text\"\n"
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	cat, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := cat.Render("battle.finished_draw", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "custom draw text" {
		t.Fatalf("override not applied: %q", out)
	}
}

func TestBattleNoticesFallBackToEmpty(t *testing.T) {
	var n *BattleNotices
	if got := n.WaitingForOpponent("bob"); got != "" {
		t.Fatalf("nil notices rendered %q", got)
	}

	cat, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bn := NewBattleNotices(cat)
	if got := bn.BattleFinished("win", "alice"); got == "" {
		t.Fatalf("win notice empty")
	}
	if got := bn.BattleFinished("draw", ""); got == "" {
		t.Fatalf("draw notice empty")
	}
	if got := bn.WaitingForOpponent(""); got == "" {
		t.Fatalf("unknown-opponent notice empty")
	}
}
