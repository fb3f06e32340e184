// Package scenario describes one combat as a YAML document and plays it
// through an engine.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/mana"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

var (
	ErrInvalidScenario   = errors.New("invalid scenario")
	ErrDeclarationFailed = errors.New("declaration refused")
	ErrExpectationFailed = errors.New("expectation failed")
)

// Scenario is a single combat between players.
type Scenario struct {
	Name       string              `yaml:"name"`
	Players    []Player            `yaml:"players"`
	Active     ecs.PlayerID        `yaml:"active"`
	Permanents []Permanent         `yaml:"permanents"`
	Effects    []Effect            `yaml:"effects"`
	Attacks    []Attack            `yaml:"attacks"`
	Blocks     []Block             `yaml:"blocks"`
	Orders     map[string][]string `yaml:"orders"`
	Expect     Expect              `yaml:"expect"`
}

type Player struct {
	ID   ecs.PlayerID `yaml:"id"`
	Life int          `yaml:"life"`
}

// Permanent is an object on the battlefield when the scenario starts. ID is
// how the rest of the document refers to it; it defaults to Name.
type Permanent struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Controller ecs.PlayerID   `yaml:"controller"`
	Types      []string       `yaml:"types"`
	Subtypes   []string       `yaml:"subtypes"`
	Colors     string         `yaml:"colors"`
	Power      int            `yaml:"power"`
	Toughness  int            `yaml:"toughness"`
	Keywords   []string       `yaml:"keywords"`
	Counters   map[string]int `yaml:"counters"`
	Tapped     bool           `yaml:"tapped"`
	Sick       bool           `yaml:"summoning_sick"`
	Triggers   []Trigger      `yaml:"triggers"`
}

type Trigger struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Scope    string `yaml:"scope"`
}

// Effect is a floating effect created before combat. Kind selects the
// modification: boost, base_pt, grant, cant_block, must_attack, attack_tax or
// prevent_next.
type Effect struct {
	Kind       string       `yaml:"kind"`
	Source     string       `yaml:"source"`
	Controller ecs.PlayerID `yaml:"controller"`
	Targets    []string     `yaml:"targets"`
	Player     ecs.PlayerID `yaml:"player"`
	Power      int          `yaml:"power"`
	Toughness  int          `yaml:"toughness"`
	Amount     int          `yaml:"amount"`
	Keywords   []string     `yaml:"keywords"`
	Cost       string       `yaml:"cost"`
	Duration   string       `yaml:"duration"`
}

// Attack declares Attacker against a player or a permanent.
type Attack struct {
	Attacker  string       `yaml:"attacker"`
	Player    ecs.PlayerID `yaml:"player"`
	Permanent string       `yaml:"permanent"`
	Pay       string       `yaml:"pay"`
	// Refused names the reason the declaration is expected to be refused for.
	Refused string `yaml:"refused"`
}

type Block struct {
	Blocker  string `yaml:"blocker"`
	Attacker string `yaml:"attacker"`
	Pay      string `yaml:"pay"`
	Refused  string `yaml:"refused"`
}

// Expect holds the checks made once combat is over. Empty fields are not
// checked.
type Expect struct {
	Life     map[ecs.PlayerID]int `yaml:"life"`
	Died     []string             `yaml:"died"`
	Triggers []string             `yaml:"triggers"`
	Losers   []ecs.PlayerID       `yaml:"losers"`
	// Violation expects the blocks to break a combat requirement.
	Violation bool `yaml:"violation"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	for i := range s.Permanents {
		if s.Permanents[i].ID == "" {
			s.Permanents[i].ID = s.Permanents[i].Name
		}
	}
	for i := range s.Players {
		if s.Players[i].Life == 0 {
			s.Players[i].Life = 20
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every reference in the document resolves.
func (s *Scenario) Validate() error {
	if len(s.Players) < 2 {
		return fmt.Errorf("%w: need at least two players", ErrInvalidScenario)
	}
	players := make(map[ecs.PlayerID]bool, len(s.Players))
	for _, p := range s.Players {
		if p.ID == "" || players[p.ID] {
			return fmt.Errorf("%w: bad or duplicate player %q", ErrInvalidScenario, p.ID)
		}
		players[p.ID] = true
	}
	if s.Active != "" && !players[s.Active] {
		return fmt.Errorf("%w: unknown active player %q", ErrInvalidScenario, s.Active)
	}

	ids := make(map[string]bool, len(s.Permanents))
	for _, p := range s.Permanents {
		if p.ID == "" || ids[p.ID] {
			return fmt.Errorf("%w: bad or duplicate permanent %q", ErrInvalidScenario, p.ID)
		}
		ids[p.ID] = true
		if !players[p.Controller] {
			return fmt.Errorf("%w: %s: unknown controller %q", ErrInvalidScenario, p.ID, p.Controller)
		}
		if _, err := p.types(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidScenario, p.ID, err)
		}
		if _, err := parseKeywords(p.Keywords); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidScenario, p.ID, err)
		}
		if _, err := p.triggers(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidScenario, p.ID, err)
		}
	}
	ref := func(id string) error {
		if !ids[id] {
			return fmt.Errorf("%w: unknown permanent %q", ErrInvalidScenario, id)
		}
		return nil
	}

	for _, e := range s.Effects {
		if _, ok := effectKinds[e.Kind]; !ok {
			return fmt.Errorf("%w: unknown effect kind %q", ErrInvalidScenario, e.Kind)
		}
		if e.Source != "" {
			if err := ref(e.Source); err != nil {
				return err
			}
		}
		for _, t := range e.Targets {
			if err := ref(t); err != nil {
				return err
			}
		}
		if _, err := parseKeywords(e.Keywords); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
		if _, err := mana.ParseCost(e.Cost); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
		if _, ok := durations[e.Duration]; !ok {
			return fmt.Errorf("%w: unknown duration %q", ErrInvalidScenario, e.Duration)
		}
	}
	for _, a := range s.Attacks {
		if err := ref(a.Attacker); err != nil {
			return err
		}
		if a.Permanent != "" {
			if err := ref(a.Permanent); err != nil {
				return err
			}
		} else if !players[a.Player] {
			return fmt.Errorf("%w: %s attacks unknown player %q", ErrInvalidScenario, a.Attacker, a.Player)
		}
		if _, err := mana.ParseCost(a.Pay); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
	}
	for _, b := range s.Blocks {
		if err := ref(b.Blocker); err != nil {
			return err
		}
		if err := ref(b.Attacker); err != nil {
			return err
		}
		if _, err := mana.ParseCost(b.Pay); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
	}
	for attacker, order := range s.Orders {
		if err := ref(attacker); err != nil {
			return err
		}
		for _, b := range order {
			if err := ref(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// ActivePlayer is the attacking player: Active, or the first player.
func (s *Scenario) ActivePlayer() ecs.PlayerID {
	if s.Active != "" {
		return s.Active
	}
	return s.Players[0].ID
}

func (p Permanent) types() ([]ecs.CardType, error) {
	if len(p.Types) == 0 {
		return []ecs.CardType{ecs.TypeCreature}, nil
	}
	out := make([]ecs.CardType, 0, len(p.Types))
	for _, name := range p.Types {
		found := false
		for _, t := range ecs.AllCardTypes {
			if ecs.HasType([]ecs.CardType{t}, ecs.CardType(name)) {
				out = append(out, t)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown card type %q", name)
		}
	}
	return out, nil
}

func (p Permanent) triggers() ([]rules.TriggerDeclaration, error) {
	out := make([]rules.TriggerDeclaration, 0, len(p.Triggers))
	for _, t := range p.Triggers {
		category, ok := rules.ParseCategory(t.Category)
		if !ok {
			return nil, fmt.Errorf("unknown trigger category %q", t.Category)
		}
		scope := rules.TriggerSelf
		if t.Scope != "" {
			if scope, ok = rules.ParseScope(t.Scope); !ok {
				return nil, fmt.Errorf("unknown trigger scope %q", t.Scope)
			}
		}
		name := t.Name
		if name == "" {
			name = string(category)
		}
		out = append(out, rules.TriggerDeclaration{Name: name, Category: category, Scope: scope})
	}
	return out, nil
}

func parseKeywords(names []string) (ecs.KeywordSet, error) {
	var set ecs.KeywordSet
	for _, name := range names {
		k, ok := ecs.ParseKeyword(name)
		if !ok {
			return 0, fmt.Errorf("unknown keyword %q", name)
		}
		set |= ecs.Keywords(k)
	}
	return set, nil
}
