package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	t.Run("parses a catalog document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		doc := `{
			"version": 7,
			"redeems": {
				"spawn_passive": {
					"id": "spawn_passive",
					"title": "Spawn a creature",
					"sku": "bits100",
					"announce": true
				}
			},
			"enums": {
				"creatures": ["Passive", "[DISABLED] Aggressive"]
			}
		}`
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}

		provider, err := LoadFile(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}

		snap := provider.Current()
		if snap.Version != 7 {
			t.Fatalf("expected version 7, got %d", snap.Version)
		}
		redeem, ok := snap.Redeems["spawn_passive"]
		if !ok {
			t.Fatalf("expected spawn_passive in catalog")
		}
		if redeem.SKU != "bits100" || !redeem.Announce {
			t.Fatalf("unexpected redeem: %+v", redeem)
		}
		if len(snap.Enums["creatures"]) != 2 {
			t.Fatalf("unexpected enums: %+v", snap.Enums)
		}
	})

	t.Run("missing maps become empty, not nil", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(path, []byte(`{"version": 1}`), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}

		provider, err := LoadFile(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		snap := provider.Current()
		if snap.Redeems == nil || snap.Enums == nil {
			t.Fatalf("expected non-nil maps, got %+v", snap)
		}
	})

	t.Run("rejects malformed documents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(path, []byte(`{nope`), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}

		if _, err := LoadFile(path); err == nil {
			t.Fatalf("expected parse error")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Fatalf("expected read error")
		}
	})
}

func TestStaticReplace(t *testing.T) {
	provider := NewStatic(Snapshot{Version: 1})
	if provider.Current().Version != 1 {
		t.Fatalf("expected version 1")
	}

	provider.Replace(Snapshot{Version: 2})
	if provider.Current().Version != 2 {
		t.Fatalf("expected version 2 after replace")
	}
}
