package ecs

import (
	"strings"
)

// PlayerID identifies a player. Players are not entities.
type PlayerID string

// ZoneKind is the zone an object currently occupies.
type ZoneKind int

// The zero value is the battlefield.
const (
	ZoneBattlefield ZoneKind = iota
	ZoneLibrary
	ZoneHand
	ZoneGraveyard
	ZoneStack
	ZoneExile
	ZoneCommand
)

// String returns the zone name.
func (z ZoneKind) String() string {
	switch z {
	case ZoneLibrary:
		return "LIBRARY"
	case ZoneHand:
		return "HAND"
	case ZoneBattlefield:
		return "BATTLEFIELD"
	case ZoneGraveyard:
		return "GRAVEYARD"
	case ZoneStack:
		return "STACK"
	case ZoneExile:
		return "EXILE"
	case ZoneCommand:
		return "COMMAND"
	default:
		return "UNKNOWN"
	}
}

// CardType is a card type such as Creature or Artifact.
type CardType string

const (
	TypeArtifact     CardType = "Artifact"
	TypeBattle       CardType = "Battle"
	TypeCreature     CardType = "Creature"
	TypeEnchantment  CardType = "Enchantment"
	TypeInstant      CardType = "Instant"
	TypeKindred      CardType = "Kindred"
	TypeLand         CardType = "Land"
	TypePlaneswalker CardType = "Planeswalker"
	TypeSorcery      CardType = "Sorcery"
)

// AllCardTypes lists every card type in a fixed order.
var AllCardTypes = []CardType{
	TypeArtifact,
	TypeBattle,
	TypeCreature,
	TypeEnchantment,
	TypeInstant,
	TypeKindred,
	TypeLand,
	TypePlaneswalker,
	TypeSorcery,
}

// HasType reports whether types contains t, ignoring case.
func HasType(types []CardType, t CardType) bool {
	for _, candidate := range types {
		if strings.EqualFold(string(candidate), string(t)) {
			return true
		}
	}
	return false
}

// Color is a single color of magic.
type Color uint8

const (
	White Color = 1 << iota
	Blue
	Black
	Red
	Green
)

// ColorSet is a set of colors. The zero value is colorless.
type ColorSet uint8

// Colors builds a set from individual colors.
func Colors(colors ...Color) ColorSet {
	var set ColorSet
	for _, c := range colors {
		set |= ColorSet(c)
	}
	return set
}

// Has reports whether the set contains c.
func (s ColorSet) Has(c Color) bool {
	return s&ColorSet(c) != 0
}

// Shares reports whether the two sets have at least one color in common.
func (s ColorSet) Shares(other ColorSet) bool {
	return s&other != 0
}

// Colorless reports whether the set is empty.
func (s ColorSet) Colorless() bool {
	return s == 0
}

// String returns the WUBRG letters of the set.
func (s ColorSet) String() string {
	var b strings.Builder
	for _, entry := range []struct {
		c      Color
		letter byte
	}{{White, 'W'}, {Blue, 'U'}, {Black, 'B'}, {Red, 'R'}, {Green, 'G'}} {
		if s.Has(entry.c) {
			b.WriteByte(entry.letter)
		}
	}
	if b.Len() == 0 {
		return "C"
	}
	return b.String()
}

// ParseColors parses WUBRG letters (case-insensitive). Unknown letters are ignored.
func ParseColors(letters string) ColorSet {
	var set ColorSet
	for _, r := range strings.ToUpper(letters) {
		switch r {
		case 'W':
			set |= ColorSet(White)
		case 'U':
			set |= ColorSet(Blue)
		case 'B':
			set |= ColorSet(Black)
		case 'R':
			set |= ColorSet(Red)
		case 'G':
			set |= ColorSet(Green)
		}
	}
	return set
}

// Keyword is an evasion or combat keyword ability.
type Keyword uint8

const (
	KeywordFlying Keyword = iota
	KeywordReach
	KeywordFirstStrike
	KeywordDoubleStrike
	KeywordDeathtouch
	KeywordTrample
	KeywordMenace
	KeywordVigilance
	KeywordHaste
	KeywordDefender
	KeywordShadow
	KeywordFear
	KeywordIntimidate
	KeywordHorsemanship
	KeywordLifelink
	KeywordIndestructible
	keywordCount
)

// keywordNames are the ability ids used in logs and scenarios.
var keywordNames = [keywordCount]string{
	KeywordFlying:         "FlyingAbility",
	KeywordReach:          "ReachAbility",
	KeywordFirstStrike:    "FirstStrikeAbility",
	KeywordDoubleStrike:   "DoubleStrikeAbility",
	KeywordDeathtouch:     "DeathtouchAbility",
	KeywordTrample:        "TrampleAbility",
	KeywordMenace:         "MenaceAbility",
	KeywordVigilance:      "VigilanceAbility",
	KeywordHaste:          "HasteAbility",
	KeywordDefender:       "DefenderAbility",
	KeywordShadow:         "ShadowAbility",
	KeywordFear:           "FearAbility",
	KeywordIntimidate:     "IntimidateAbility",
	KeywordHorsemanship:   "HorsemanshipAbility",
	KeywordLifelink:       "LifelinkAbility",
	KeywordIndestructible: "IndestructibleAbility",
}

// String returns the ability id of the keyword.
func (k Keyword) String() string {
	if k < keywordCount {
		return keywordNames[k]
	}
	return "UnknownAbility"
}

// ParseKeyword resolves an ability id ("FlyingAbility") or a bare keyword
// ("flying", "first strike") to a Keyword.
func ParseKeyword(name string) (Keyword, bool) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
	normalized = strings.TrimSuffix(normalized, "ability")
	for k := Keyword(0); k < keywordCount; k++ {
		if strings.ToLower(strings.TrimSuffix(keywordNames[k], "Ability")) == normalized {
			return k, true
		}
	}
	return 0, false
}

// KeywordSet is a set of keywords.
type KeywordSet uint32

// Keywords builds a set from individual keywords.
func Keywords(keywords ...Keyword) KeywordSet {
	var set KeywordSet
	for _, k := range keywords {
		set = set.With(k)
	}
	return set
}

// Has reports whether k is in the set.
func (s KeywordSet) Has(k Keyword) bool {
	return s&(1<<k) != 0
}

// With returns the set with k added.
func (s KeywordSet) With(k Keyword) KeywordSet {
	return s | 1<<k
}

// Without returns the set with k removed.
func (s KeywordSet) Without(k Keyword) KeywordSet {
	return s &^ (1 << k)
}

// Union returns the union of both sets.
func (s KeywordSet) Union(other KeywordSet) KeywordSet {
	return s | other
}

// Minus returns s without any keyword in other.
func (s KeywordSet) Minus(other KeywordSet) KeywordSet {
	return s &^ other
}

// List returns the keywords in declaration order.
func (s KeywordSet) List() []Keyword {
	var out []Keyword
	for k := Keyword(0); k < keywordCount; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Strings returns the ability ids of the set, useful for logging.
func (s KeywordSet) Strings() []string {
	list := s.List()
	out := make([]string, 0, len(list))
	for _, k := range list {
		out = append(out, k.String())
	}
	return out
}

// Step is a step of the turn structure.
type Step string

const (
	StepUntap             Step = "UNTAP"
	StepUpkeep            Step = "UPKEEP"
	StepDraw              Step = "DRAW"
	StepPrecombatMain     Step = "PRECOMBAT_MAIN"
	StepBeginCombat       Step = "BEGIN_COMBAT"
	StepDeclareAttackers  Step = "DECLARE_ATTACKERS"
	StepDeclareBlockers   Step = "DECLARE_BLOCKERS"
	StepFirstStrikeDamage Step = "FIRST_STRIKE_DAMAGE"
	StepCombatDamage      Step = "COMBAT_DAMAGE"
	StepEndCombat         Step = "END_COMBAT"
	StepPostcombatMain    Step = "POSTCOMBAT_MAIN"
	StepEnd               Step = "END_TURN"
	StepCleanup           Step = "CLEANUP"
)

// Turn describes where the game currently is.
type Turn struct {
	Number int
	Active PlayerID
	Step   Step
}

// Player is the store's record of a player.
type Player struct {
	ID   PlayerID
	Life int
}
