package quest

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("quest", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.StoragePath != "jeeves-quest.db" {
		t.Fatalf("expected default db path, got %q", cfg.StoragePath)
	}
	if cfg.ConsoleUser != "adventurer" {
		t.Fatalf("expected default user, got %q", cfg.ConsoleUser)
	}
	if cfg.AnnounceChannel != "#quest" {
		t.Fatalf("expected default announce channel, got %q", cfg.AnnounceChannel)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("quest", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{
		"-db", "/tmp/state.db",
		"-xp-formula", "level * 150",
		"-user", "alice",
		"-channel", "#tavern",
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.StoragePath != "/tmp/state.db" {
		t.Fatalf("expected db override, got %q", cfg.StoragePath)
	}
	if cfg.XPFormula != "level * 150" {
		t.Fatalf("expected formula override, got %q", cfg.XPFormula)
	}
	if cfg.ConsoleUser != "alice" || cfg.ConsoleChannel != "#tavern" {
		t.Fatalf("expected identity overrides, got %q %q", cfg.ConsoleUser, cfg.ConsoleChannel)
	}
}
