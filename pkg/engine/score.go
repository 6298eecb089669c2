package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Level is the tier a constraint contributes to. Hard differences always
// dominate soft differences when two scores are compared.
type Level int

const (
	LevelHard Level = iota
	LevelSoft
)

// String returns the score level token.
func (l Level) String() string {
	switch l {
	case LevelHard:
		return "HARD"
	case LevelSoft:
		return "SOFT"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel parses a HARD or SOFT token (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HARD":
		return LevelHard, nil
	case "SOFT":
		return LevelSoft, nil
	}
	return 0, fmt.Errorf("unknown score level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Direction states whether a constraint decreases (penalize) or increases
// (reward) its level's total.
type Direction int

const (
	Penalize Direction = iota
	Reward
)

// String returns the direction token.
func (d Direction) String() string {
	switch d {
	case Penalize:
		return "PENALIZE"
	case Reward:
		return "REWARD"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses a PENALIZE or REWARD token (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENALIZE":
		return Penalize, nil
	case "REWARD":
		return Reward, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// sign returns -1 for penalties and +1 for rewards.
func (d Direction) sign() int64 {
	if d == Reward {
		return 1
	}
	return -1
}

// Weight is the per-unit weight of a constraint at a given level.
type Weight struct {
	Level  Level
	Amount int64
}

var (
	// OneHard weighs every match as a single hard unit.
	OneHard = Weight{Level: LevelHard, Amount: 1}

	// OneSoft weighs every match as a single soft unit.
	OneSoft = Weight{Level: LevelSoft, Amount: 1}
)

// HardWeight returns a hard weight of the given amount.
func HardWeight(amount int64) Weight {
	return Weight{Level: LevelHard, Amount: amount}
}

// SoftWeight returns a soft weight of the given amount.
func SoftWeight(amount int64) Weight {
	return Weight{Level: LevelSoft, Amount: amount}
}

// String renders the weight as a score, e.g. "1hard" or "5soft".
func (w Weight) String() string {
	return fmt.Sprintf("%d%s", w.Amount, strings.ToLower(w.Level.String()))
}

// Score is a layered (hard, soft) score. A penalty decreases and a reward
// increases the respective total.
type Score struct {
	Hard int64
	Soft int64
}

// ZeroScore is the score of a solution that breaks nothing and earns nothing.
var ZeroScore = Score{}

// ScoreOf places a signed amount at the given level.
func ScoreOf(level Level, amount int64) Score {
	if level == LevelHard {
		return Score{Hard: amount}
	}
	return Score{Soft: amount}
}

// Add returns the sum of both scores.
func (s Score) Add(o Score) Score {
	return Score{Hard: s.Hard + o.Hard, Soft: s.Soft + o.Soft}
}

// Negate returns the score with both totals sign-flipped.
func (s Score) Negate() Score {
	return Score{Hard: -s.Hard, Soft: -s.Soft}
}

// Compare orders scores lexicographically by level: -1 if s is worse than o,
// +1 if better, 0 if equal.
func (s Score) Compare(o Score) int {
	switch {
	case s.Hard < o.Hard:
		return -1
	case s.Hard > o.Hard:
		return 1
	case s.Soft < o.Soft:
		return -1
	case s.Soft > o.Soft:
		return 1
	}
	return 0
}

// IsFeasible reports whether no hard constraint is broken.
func (s Score) IsFeasible() bool {
	return s.Hard >= 0
}

// IsZero reports whether both totals are zero.
func (s Score) IsZero() bool {
	return s == ZeroScore
}

// String renders the score as "<hard>hard/<soft>soft".
func (s Score) String() string {
	return fmt.Sprintf("%dhard/%dsoft", s.Hard, s.Soft)
}

// ParseScore parses the "<hard>hard/<soft>soft" form produced by String.
func ParseScore(text string) (Score, error) {
	parts := strings.Split(strings.TrimSpace(text), "/")
	if len(parts) != 2 {
		return Score{}, fmt.Errorf("invalid score %q: expected <hard>hard/<soft>soft", text)
	}

	hard, err := parseLevelPart(parts[0], "hard")
	if err != nil {
		return Score{}, fmt.Errorf("invalid score %q: %w", text, err)
	}
	soft, err := parseLevelPart(parts[1], "soft")
	if err != nil {
		return Score{}, fmt.Errorf("invalid score %q: %w", text, err)
	}
	return Score{Hard: hard, Soft: soft}, nil
}

func parseLevelPart(part, suffix string) (int64, error) {
	num, ok := strings.CutSuffix(part, suffix)
	if !ok {
		return 0, fmt.Errorf("missing %q suffix in %q", suffix, part)
	}
	return strconv.ParseInt(num, 10, 64)
}

type scoreJSON struct {
	Hard     int64  `json:"hard"`
	Soft     int64  `json:"soft"`
	Feasible bool   `json:"feasible"`
	Text     string `json:"text"`
}

// MarshalJSON renders the score with its feasibility and textual form.
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(scoreJSON{
		Hard:     s.Hard,
		Soft:     s.Soft,
		Feasible: s.IsFeasible(),
		Text:     s.String(),
	})
}

// UnmarshalJSON accepts either the object form or the textual form.
func (s *Score) UnmarshalJSON(b []byte) error {
	var text string
	if err := json.Unmarshal(b, &text); err == nil {
		parsed, err := ParseScore(text)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}

	var raw scoreJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Score{Hard: raw.Hard, Soft: raw.Soft}
	return nil
}

// MarshalYAML renders the score in its textual form.
func (s Score) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}
