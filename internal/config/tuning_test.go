package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ryanbastic/go-placebot/internal/user"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadTuning_EmptyPathUsesDefaults(t *testing.T) {
	tu, err := LoadTuning("")
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if tu.DefaultCanvas != "default" || tu.Canvas.Rows != 14 || tu.Canvas.Cols != 20 {
		t.Errorf("canvas defaults: %+v", tu)
	}
	if tu.Cooldown() != 180*time.Second || tu.TilePoints != 1 {
		t.Errorf("placement defaults: %+v", tu)
	}
	if tu.CurrencyCounter() != user.CounterGems {
		t.Errorf("currency: got %q", tu.Currency)
	}
	if tu.Wager != (WagerTuning{Coins: 5, Multiplier: 30, Limit: 100}) {
		t.Errorf("wager: got %+v", tu.Wager)
	}
}

func TestLoadTuning_OverridesAndKeepsDefaults(t *testing.T) {
	path := writeTuning(t, `
cooldown_seconds: 60
currency: points
canvases:
  Maxi.csv: {rows: 30, cols: 40}
  friends: {rows: 5, cols: 5}
wager:
  limit: 500
emojis: ["🐶", "🐱"]
`)
	tu, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if tu.CooldownSeconds != 60 || tu.CurrencyCounter() != user.CounterPoints {
		t.Errorf("overrides: %+v", tu)
	}
	if tu.Canvas.Rows != 14 {
		t.Errorf("default shape lost: %+v", tu.Canvas)
	}
	if s, ok := tu.Canvases["maxi"]; !ok || s.Rows != 30 || s.Cols != 40 {
		t.Errorf("canvas names not normalised: %v", tu.Canvases)
	}
	if tu.Wager.Limit != 500 || tu.Wager.Coins != 5 || tu.Wager.Multiplier != 30 {
		t.Errorf("wager merge: %+v", tu.Wager)
	}
	if len(tu.Emojis) != 2 {
		t.Errorf("emojis: %v", tu.Emojis)
	}
}

func TestLoadTuning_EmptyFile(t *testing.T) {
	tu, err := LoadTuning(writeTuning(t, ""))
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if tu.Canvas.Rows != 14 {
		t.Errorf("defaults: %+v", tu)
	}
}

func TestLoadTuning_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "cooldown: 5\n", "field cooldown not found"},
		{"bad currency", "currency: coins\n", "currency"},
		{"zero rows", "canvas: {rows: 0, cols: 3}\n", "canvas"},
		{"huge canvas", "canvases: {big: {rows: 10000, cols: 3}}\n", "canvases.big"},
		{"bad name", "default_canvas: ../x\n", "default_canvas"},
		{"negative cooldown", "cooldown_seconds: -1\n", "cooldown_seconds"},
		{"no coins", "wager: {coins: 0}\n", "wager.coins"},
		{"no limit", "wager: {limit: 0}\n", "wager.limit"},
		{"not yaml", "canvas: [\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuning(writeTuning(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadTuning_MissingFile(t *testing.T) {
	if _, err := LoadTuning(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
