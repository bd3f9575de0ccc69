package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/user"
)

// Tuning holds the game rules, read from the YAML file at GAME_CONFIG_PATH.
// Fields missing from the file keep their defaults.
type Tuning struct {
	DefaultCanvas   string                  `yaml:"default_canvas"`
	Canvas          canvas.Shape            `yaml:"canvas"`
	Canvases        map[string]canvas.Shape `yaml:"canvases"`
	CooldownSeconds int                     `yaml:"cooldown_seconds"`
	TilePoints      int64                   `yaml:"tile_points"`
	Currency        string                  `yaml:"currency"`
	Wager           WagerTuning             `yaml:"wager"`
	Emojis          []string                `yaml:"emojis"`
}

type WagerTuning struct {
	Coins      int   `yaml:"coins"`
	Multiplier int64 `yaml:"multiplier"`
	Limit      int64 `yaml:"limit"`
}

// DefaultTuning is used when no file is configured.
func DefaultTuning() Tuning {
	return Tuning{
		DefaultCanvas:   "default",
		Canvas:          canvas.Shape{Rows: 14, Cols: 20},
		CooldownSeconds: 180,
		TilePoints:      1,
		Currency:        string(user.CounterGems),
		Wager:           WagerTuning{Coins: 5, Multiplier: 30, Limit: 100},
	}
}

// LoadTuning reads path over DefaultTuning. An empty path returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read game config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tuning{}, fmt.Errorf("parse game config: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("game config %s: %w", path, err)
	}
	return t, nil
}

// Validate checks every rule value and normalises canvas names.
func (t *Tuning) Validate() error {
	name, err := canvas.NormalizeName(t.DefaultCanvas)
	if err != nil {
		return fmt.Errorf("default_canvas: %w", err)
	}
	t.DefaultCanvas = name

	if err := validShape(t.Canvas); err != nil {
		return fmt.Errorf("canvas: %w", err)
	}
	shapes := make(map[string]canvas.Shape, len(t.Canvases))
	for raw, s := range t.Canvases {
		name, err := canvas.NormalizeName(raw)
		if err != nil {
			return fmt.Errorf("canvases: %w", err)
		}
		if err := validShape(s); err != nil {
			return fmt.Errorf("canvases.%s: %w", name, err)
		}
		if _, dup := shapes[name]; dup {
			return fmt.Errorf("canvases: %q declared twice", name)
		}
		shapes[name] = s
	}
	t.Canvases = shapes

	if t.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must not be negative, got %d", t.CooldownSeconds)
	}
	if t.TilePoints < 0 {
		return fmt.Errorf("tile_points must not be negative, got %d", t.TilePoints)
	}
	switch user.Counter(t.Currency) {
	case user.CounterGems, user.CounterPoints:
	default:
		return fmt.Errorf("currency must be gems or points, got %q", t.Currency)
	}
	if t.Wager.Coins < 1 {
		return fmt.Errorf("wager.coins must be at least 1, got %d", t.Wager.Coins)
	}
	if t.Wager.Multiplier < 1 {
		return fmt.Errorf("wager.multiplier must be at least 1, got %d", t.Wager.Multiplier)
	}
	if t.Wager.Limit < 1 {
		return fmt.Errorf("wager.limit must be at least 1, got %d", t.Wager.Limit)
	}
	return nil
}

func validShape(s canvas.Shape) error {
	if s.Rows < 1 || s.Cols < 1 || s.Rows > canvas.MaxSide || s.Cols > canvas.MaxSide {
		return fmt.Errorf("shape %dx%d outside 1..%d", s.Rows, s.Cols, canvas.MaxSide)
	}
	return nil
}

// Cooldown is the minimum interval between placements.
func (t Tuning) Cooldown() time.Duration {
	return time.Duration(t.CooldownSeconds) * time.Second
}

// CurrencyCounter is the counter placements are credited to.
func (t Tuning) CurrencyCounter() user.Counter {
	return user.Counter(t.Currency)
}
