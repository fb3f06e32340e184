package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/combat"
	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/engine"
	"github.com/magefree/mage-rules-go/internal/game/mana"
	"github.com/magefree/mage-rules-go/internal/game/replay"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/targeting"
)

type effectFunc func(b *effects.EffectBuilder, e Effect) (effects.FloatingEffect, error)

var effectKinds = map[string]effectFunc{
	"boost": func(b *effects.EffectBuilder, e Effect) (effects.FloatingEffect, error) {
		return b.Boost(e.Power, e.Toughness), nil
	},
	"base_pt": func(b *effects.EffectBuilder, e Effect) (effects.FloatingEffect, error) {
		return b.BasePT(e.Power, e.Toughness), nil
	},
	"grant": func(b *effects.EffectBuilder, e Effect) (effects.FloatingEffect, error) {
		set, err := parseKeywords(e.Keywords)
		if err != nil {
			return effects.FloatingEffect{}, err
		}
		return b.Build(effects.GrantKeywords{Keywords: set}), nil
	},
	"cant_block": func(b *effects.EffectBuilder, _ Effect) (effects.FloatingEffect, error) {
		return b.CantBlock(), nil
	},
	"must_attack": func(b *effects.EffectBuilder, _ Effect) (effects.FloatingEffect, error) {
		return b.MustAttack(), nil
	},
	"attack_tax": func(b *effects.EffectBuilder, e Effect) (effects.FloatingEffect, error) {
		cost, err := mana.ParseCost(e.Cost)
		if err != nil {
			return effects.FloatingEffect{}, err
		}
		return b.AttackTax(cost), nil
	},
	"prevent_next": func(b *effects.EffectBuilder, e Effect) (effects.FloatingEffect, error) {
		return b.PreventNext(e.Amount, effects.Recipient{Player: e.Player}), nil
	},
}

var durations = map[string]func(*effects.EffectBuilder) *effects.EffectBuilder{
	"":                     func(b *effects.EffectBuilder) *effects.EffectBuilder { return b },
	"end_of_turn":          (*effects.EffectBuilder).UntilEndOfTurn,
	"end_of_combat":        (*effects.EffectBuilder).UntilEndOfCombat,
	"until_your_next_turn": (*effects.EffectBuilder).UntilYourNextTurn,
	"while_on_battlefield": (*effects.EffectBuilder).WhileOnBattlefield,
	"permanent":            (*effects.EffectBuilder).Permanent,
}

// Outcome is what happened in a scenario.
type Outcome struct {
	Name      string
	Steps     []engine.StepResult
	Report    combat.Report
	Life      map[ecs.PlayerID]int
	Died      []string
	Triggers  []string
	Losers    []ecs.PlayerID
	Dealt     int
	Prevented int
	Journal   *replay.Journal
}

// Run plays s on a new engine. Expectation mismatches are returned as an
// error wrapping ErrExpectationFailed together with the outcome.
func Run(ctx context.Context, s *Scenario, logger *zap.Logger, opts engine.Options) (*Outcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &runner{
		s:      s,
		logger: logger,
		engine: engine.New(logger.With(zap.String("scenario", s.Name)), opts),
		ids:    make(map[string]ecs.Entity, len(s.Permanents)),
		out:    &Outcome{Name: s.Name, Life: make(map[ecs.PlayerID]int), Journal: replay.NewJournal(s.Name)},
	}
	r.out.Journal.Attach(r.engine.Events())
	for _, stage := range []func() error{r.setup, r.attack, r.block, r.damage} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stage(); err != nil {
			if errors.Is(err, errStop) {
				break
			}
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	r.collect()
	if err := r.check(); err != nil {
		return r.out, fmt.Errorf("%s: %w", s.Name, err)
	}
	return r.out, nil
}

// errStop ends a scenario early without failing it.
var errStop = errors.New("stop")

type runner struct {
	s      *Scenario
	logger *zap.Logger
	engine *engine.Engine
	ids    map[string]ecs.Entity
	out    *Outcome
}

func (r *runner) setup() error {
	for _, p := range r.s.Players {
		if err := r.engine.AddPlayer(p.ID, p.Life); err != nil {
			return err
		}
	}
	if active := r.s.ActivePlayer(); active != r.s.Players[0].ID {
		if err := r.engine.BeginTurn(active); err != nil {
			return err
		}
	}
	for _, p := range r.s.Permanents {
		types, _ := p.types()
		keywords, _ := parseKeywords(p.Keywords)
		triggers, _ := p.triggers()
		var cs counters.Counters
		if len(p.Counters) > 0 {
			cs = counters.New()
			for name, n := range p.Counters {
				cs[name] = n
			}
		}
		e, err := r.engine.CreatePermanent(engine.PermanentSpec{
			Name:  p.Name,
			Owner: p.Controller,
			Zone:  ecs.ZoneBattlefield,
			Characteristics: ecs.Characteristics{
				Types:     types,
				Subtypes:  p.Subtypes,
				Colors:    ecs.ParseColors(p.Colors),
				Power:     p.Power,
				Toughness: p.Toughness,
				HasPT:     ecs.HasType(types, ecs.TypeCreature),
				Keywords:  keywords,
			},
			Tapped:        p.Tapped,
			SummoningSick: p.Sick,
			Counters:      cs,
			Triggers:      triggers,
		})
		if err != nil {
			return err
		}
		r.ids[p.ID] = e
	}
	for _, fx := range r.s.Effects {
		if err := r.addEffect(fx); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) addEffect(fx Effect) error {
	source := ecs.NoEntity
	name := fx.Kind
	if fx.Source != "" {
		source = r.ids[fx.Source]
		name = fx.Source
	}
	b := effects.NewEffectBuilder(source, name, fx.Controller)
	if len(fx.Targets) > 0 {
		targets := make([]ecs.Entity, 0, len(fx.Targets))
		for _, t := range fx.Targets {
			targets = append(targets, r.ids[t])
		}
		b = b.Targeting(targets...)
	} else if fx.Kind != "prevent_next" {
		b = b.Matching(effects.Creatures())
	}
	b = durations[fx.Duration](b)
	effect, err := effectKinds[fx.Kind](b, fx)
	if err != nil {
		return err
	}
	if len(fx.Targets) == 0 {
		r.engine.AddEffect(effect)
		return nil
	}
	requirement := targeting.TargetRequirement{
		Type:       targeting.TargetTypeCreature,
		MinTargets: 1,
		MaxTargets: len(fx.Targets),
	}
	if _, err := r.engine.AddTargetedEffect(effect, requirement); err != nil {
		return fmt.Errorf("%s effect: %w", fx.Kind, err)
	}
	return nil
}

func (r *runner) attack() error {
	if err := r.engine.BeginCombat(); err != nil {
		return err
	}
	active := r.s.ActivePlayer()
	for _, a := range r.s.Attacks {
		defender := combat.AttackPlayer(a.Player)
		if a.Permanent != "" {
			defender = combat.AttackPermanent(r.ids[a.Permanent])
		}
		paid, _ := mana.ParseCost(a.Pay)
		res, err := r.engine.DeclareAttacker(r.ids[a.Attacker], active, defender, paid)
		if err != nil {
			return err
		}
		if err := refusal(a.Attacker, res, a.Refused); err != nil {
			return err
		}
	}
	return r.engine.FinishAttackers()
}

func (r *runner) block() error {
	for _, b := range r.s.Blocks {
		attacker := r.ids[b.Attacker]
		player := ecs.PlayerID("")
		if g, ok := r.engine.Combat().Group(attacker); ok {
			player = g.DefendingPlayer
		}
		paid, _ := mana.ParseCost(b.Pay)
		res, err := r.engine.DeclareBlocker(r.ids[b.Blocker], attacker, player, paid)
		if err != nil {
			return err
		}
		if err := refusal(b.Blocker, res, b.Refused); err != nil {
			return err
		}
	}
	for attacker, names := range r.s.Orders {
		order := make([]ecs.Entity, 0, len(names))
		for _, n := range names {
			order = append(order, r.ids[n])
		}
		if err := r.engine.SetDamageAssignmentOrder(r.ids[attacker], order); err != nil {
			return err
		}
	}

	report, err := r.engine.FinishBlockers()
	r.out.Report = report
	if errors.Is(err, engine.ErrRequirementsNotMet) && r.s.Expect.Violation {
		return errStop
	}
	return err
}

func (r *runner) damage() error {
	for _, step := range []combat.DamageStep{combat.FirstStrikeStep, combat.RegularStep} {
		result, err := r.engine.RunDamageStep(step)
		if err != nil {
			return err
		}
		if !result.Skipped {
			r.out.Steps = append(r.out.Steps, result)
		}
	}
	return r.engine.EndCombat()
}

// refusal checks a declaration result against the reason it was expected
// to be refused for, if any.
func refusal(who string, res combat.Result, expected string) error {
	switch {
	case expected == "" && res.OK():
		return nil
	case expected == "":
		return fmt.Errorf("%w: %s: %s %s", ErrDeclarationFailed, who, res.Verdict, res.Reason)
	case res.OK():
		return fmt.Errorf("%w: %s was accepted, expected %s", ErrExpectationFailed, who, expected)
	case string(res.Reason) != expected && res.Verdict.String() != expected:
		return fmt.Errorf("%w: %s refused for %s %s, expected %s", ErrExpectationFailed, who, res.Verdict, res.Reason, expected)
	}
	return nil
}

func (r *runner) collect() {
	store := r.engine.Store()
	for _, p := range store.Players() {
		r.out.Life[p.ID] = p.Life
	}
	for _, step := range r.out.Steps {
		r.out.Dealt += step.TotalDealt()
		for _, rec := range step.Prevented {
			r.out.Prevented += rec.Prevented
		}
		for _, e := range step.Died {
			if obj, ok := store.Object(e); ok {
				r.out.Died = append(r.out.Died, obj.Name)
			}
		}
		r.out.Losers = append(r.out.Losers, step.Losers...)
	}
	for _, act := range r.engine.TakeTriggers() {
		r.out.Triggers = append(r.out.Triggers, activationName(act))
	}
	r.logger.Info("scenario finished",
		zap.String("scenario", r.s.Name),
		zap.Int("dealt", r.out.Dealt),
		zap.Int("prevented", r.out.Prevented),
		zap.Strings("died", r.out.Died),
		zap.Strings("triggers", r.out.Triggers))
}

func activationName(act rules.Activation) string {
	return act.SourceName + ":" + act.Trigger
}

func (r *runner) check() error {
	want := r.s.Expect
	var errs []error
	for p, life := range want.Life {
		if got := r.out.Life[p]; got != life {
			errs = append(errs, fmt.Errorf("%s life %d, expected %d", p, got, life))
		}
	}
	if want.Died != nil && !sameElements(r.out.Died, want.Died) {
		errs = append(errs, fmt.Errorf("died %v, expected %v", r.out.Died, want.Died))
	}
	if want.Triggers != nil && !slices.Equal(r.out.Triggers, want.Triggers) {
		errs = append(errs, fmt.Errorf("triggers %v, expected %v", r.out.Triggers, want.Triggers))
	}
	if want.Losers != nil && !sameElements(r.out.Losers, want.Losers) {
		errs = append(errs, fmt.Errorf("losers %v, expected %v", r.out.Losers, want.Losers))
	}
	if want.Violation && r.out.Report.Valid() {
		errs = append(errs, errors.New("expected a combat requirement violation"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrExpectationFailed, errors.Join(errs...))
}

func sameElements[T ~string](got, want []T) bool {
	a, b := slices.Clone(got), slices.Clone(want)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
