// Package silly turns plain image descriptions into hash-flavoured captions.
package silly

import (
	"math/rand/v2"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxWords is the hard word limit for rewritten captions.
	MaxWords = 12

	// EmptyCaption replaces a caption that clamps down to nothing.
	EmptyCaption = "Such photo. Much wow."
)

// Prefixes open every classic caption.
var Prefixes = []string{
	"Behold:",
	"Witness:",
	"Rare footage of",
	"Scientists baffled by",
	"Local news reports",
	"Breaking:",
	"Experts confirm this is",
	"Leaked image shows",
	"Classified photo of",
	"Historians debate",
	"Area hashers spotted",
	"This just in:",
	"EXCLUSIVE:",
	"Police are investigating",
	"Witnesses report",
	"Legend has it:",
	"Unconfirmed reports of",
	"Allegedly:",
	"Sources say this is",
	"Critics are calling this",
}

// Suffixes close every classic caption.
var Suffixes = []string{
	"This is completely normal behavior.",
	"No hashers were harmed in the making of this photo.",
	"The beer was definitely earned.",
	"Moments before disaster.",
	"Moments after disaster.",
	"The hangover was legendary.",
	"Management takes no responsibility.",
	"This explains a lot, actually.",
	"And they wonder why we drink.",
	"Typical Tuesday, honestly.",
	"The circle was... eventful.",
	"On-on to questionable decisions!",
	"Character building in progress.",
	"Hydration station located.",
	"This is what peak performance looks like.",
	"They knew what they signed up for. (They didn't.)",
	"The hares were never seen again.",
	"Down-down pending.",
	"Hash name earned.",
	"Cardio (allegedly).",
	"Professional athletes at work.",
	"The RA has questions.",
	"Beer check confirmed.",
	"Chalk marks were involved.",
	"Someone lost a shoe.",
	"The ice was deserved.",
}

// Asides are dropped into the middle of some classic captions.
var Asides = []string{
	"(allegedly)",
	"(citation needed)",
	"(no regrets)",
	"(send help)",
	"(hydration pending)",
	"(beer required)",
	"(this is fine)",
	"(mistakes were made)",
	"(on-on)",
	"(the hares did this)",
	"(blame the RA)",
	"(worth it)",
	"(probably)",
	"(we think)",
	"(don't ask)",
}

// Spice is the punchline pool handed to the rewrite model.
var Spice = []string{
	"HR says no.",
	"This seemed smart at the time.",
	"Hydration protocol engaged.",
	"On on, but emotionally off.",
	"Evidence has been collected.",
	"No further questions, Your Honor.",
	"Operational excellence (allegedly).",
	"Team-building incident.",
	"Moments before regret.",
	"Moments after regret.",
	"Somebody lost a shoe.",
	"Beer was involved.",
}

// Exaggeration is a plain substring substitution.
type Exaggeration struct {
	Boring string
	Funny  string
}

// Exaggerations are applied in order and later entries see the output of
// earlier ones, so "woman" never survives the "man" rule.
var Exaggerations = []Exaggeration{
	{"person", "extremely dedicated athlete"},
	{"people", "a herd of questionable decision-makers"},
	{"man", "brave soul"},
	{"woman", "absolute legend"},
	{"group", "chaotic assembly"},
	{"standing", "barely standing"},
	{"walking", "attempting forward motion"},
	{"running", "fleeing from responsibility"},
	{"sitting", "recovering from life choices"},
	{"holding", "desperately clutching"},
	{"beer", "essential hydration"},
	{"drink", "survival juice"},
	{"water", "beer's disappointing cousin"},
	{"shirt", "sweat-absorption device"},
	{"outside", "in the wild"},
	{"grass", "nature's carpet"},
	{"tree", "vertical wood thing"},
	{"road", "designated suffering path"},
	{"mud", "complimentary exfoliation"},
	{"dirt", "earth seasoning"},
	{"smiling", "grimacing through the pain"},
	{"happy", "delirious"},
	{"tired", "experiencing peak performance"},
	{"wet", "optimally hydrated externally"},
	{"crowd", "mob of enablers"},
	{"friend", "co-conspirator"},
	{"looking", "squinting suspiciously"},
	{"large", "impressively chaotic"},
	{"small", "concentrated chaos"},
	{"wearing", "barely containing"},
	{"red", "blood-pressure-indicating"},
	{"white", "suspiciously clean"},
	{"table", "horizontal beer holder"},
	{"bottle", "vessel of truth"},
	{"cup", "portable hydration unit"},
}

// AsideChance is the probability that MakeSilly inserts an aside.
const AsideChance = 0.3

// Sillifier owns the random source used by the caption transforms.
// It is not safe for concurrent use.
type Sillifier struct {
	rng *rand.Rand
}

func New(seed uint64) *Sillifier {
	return &Sillifier{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Sillifier) pick(list []string) string {
	return list[s.rng.IntN(len(list))]
}

// Spice returns a random punchline for the rewrite prompt.
func (s *Sillifier) Spice() string {
	return s.pick(Spice)
}

// Exaggerate lower-cases caption and runs the exaggeration table over it.
func Exaggerate(caption string) string {
	result := strings.ToLower(caption)
	for _, e := range Exaggerations {
		result = strings.ReplaceAll(result, e.Boring, e.Funny)
	}
	return result
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// MakeSilly transforms a literal caption into "<prefix> <caption>. <suffix>".
func (s *Sillifier) MakeSilly(caption string) string {
	result := capitalize(Exaggerate(caption))

	if s.rng.Float64() < AsideChance {
		words := strings.Fields(result)
		if len(words) > 3 {
			// insert position in [2, len(words)-1]
			pos := 2 + s.rng.IntN(len(words)-2)
			words = slices.Insert(words, pos, s.pick(Asides))
			result = strings.Join(words, " ")
		}
	}

	return s.pick(Prefixes) + " " + result + ". " + s.pick(Suffixes)
}

// Tidy trims s and collapses internal whitespace runs, Unicode spaces
// included, to one space.
func Tidy(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ClampWords keeps at most n whitespace-separated words and strips
// surrounding spaces and quotes.
func ClampWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return EmptyCaption
	}
	if len(words) > n {
		words = words[:n]
	}
	return strings.Trim(strings.Join(words, " "), ` "'`)
}
