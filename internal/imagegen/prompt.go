package imagegen

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	expressions    = []string{"smiling", "laughing", "curious", "playful", "content", "focused"}
	clothingStyles = []string{"adorable toddler clothes", "cute shirt and pants", "colorful outfit", "comfortable play clothes", "casual toddler wear"}
	backgrounds    = []string{"soft pastel background", "natural home setting", "gentle lighting", "warm cozy environment", "playroom setting"}
)

const positiveSuffix = "high quality, photorealistic, professional child photography, natural lighting, soft focus, " +
	"adorable, innocent, pure, wholesome, realistic facial features, toddler proportions, age-appropriate features, " +
	"child-safe content, fully clothed, diverse representation, natural skin tone"

var (
	baseNegativeTerms = []string{
		"facial hair", "mustache", "beard", "goatee", "sideburns", "stubble", "adult male features",
		"masculine features", "puberty", "teenager", "adolescent", "nude", "naked", "inappropriate",
		"adult features", "mature", "grown up", "sexual", "undressed", "exposed", "revealing",
		"inappropriate clothing", "adult clothing",
	}
	safetyNegativeTerms = []string{
		"hair on face", "clothing removed", "sexual content", "adult content", "mature content",
		"mature face", "adult proportions", "mature body", "school uniform",
	}
	qualityNegativeTerms = []string{
		"blurry", "low quality", "distorted", "deformed", "ugly", "scary", "frightening", "dark",
		"unnatural", "cartoon", "anime", "drawing", "painting", "sketch", "illustration",
		"newborn", "too young", "school age",
	}
)

// lower folds labels with English casing rules. Casers carry state, so
// each call gets its own.
func lower(s string) string {
	return cases.Lower(language.English).String(s)
}

// Prompt is the text pair sent to the model.
type Prompt struct {
	Positive string
	Negative string
}

// Picker returns an index in [0, n). It drives the variety choices of the
// prompt so tests can make them deterministic.
type Picker func(n int) int

// BuildPrompt renders a request into prompt text, substituting defaults for
// omitted fields. Expression and clothing fall back to a random pick from a
// small curated list; the background is always picked.
func BuildPrompt(req Request, pick Picker) Prompt {
	if pick == nil {
		pick = func(int) int { return 0 }
	}
	gender := label(req.Gender, DefaultGender)
	age := label(req.Age, DefaultAge)
	positive := text(req.PositivePrompt, DefaultPositivePrompt)

	expression := text(req.Expression, "")
	if expression == "" {
		expression = choose(expressions, pick)
	}
	clothing := strings.TrimSpace(strings.Join(nonEmpty(text(req.Clothing, ""), text(req.DressCode, "")), " "))
	if clothing == "" {
		clothing = choose(clothingStyles, pick)
	}
	background := choose(backgrounds, pick)

	removeHair := req.RemoveFacialHair.Or(true)
	parts := []string{
		fmt.Sprintf("A beautiful %s %s", ageDescription(age), gender),
		positive,
		"smooth toddler skin, chubby cheeks, big curious eyes",
	}
	if removeHair {
		parts = append(parts, "no facial hair, clean face")
	}
	parts = append(parts, expression, clothing, background, positiveSuffix)

	negative := splitTerms(text(req.NegativePrompt, strings.Join(baseNegativeTerms, ", ")))
	if removeHair || label(req.FacialHairRemoval, "") == "aggressive" || label(req.ChildSafety, "") == "maximum" {
		negative = append(negative, baseNegativeTerms...)
		negative = append(negative, safetyNegativeTerms...)
	}
	negative = append(negative, qualityNegativeTerms...)

	return Prompt{
		Positive: strings.Join(parts, ", "),
		Negative: strings.Join(dedupe(negative), ", "),
	}
}

func ageDescription(age string) string {
	if age == DefaultAge {
		return "2-year-old toddler"
	}
	return age + " child"
}

func label(s, def string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return def
	}
	return lower(s)
}

func text(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func choose(options []string, pick Picker) string {
	i := pick(len(options))
	if i < 0 || i >= len(options) {
		i = 0
	}
	return options[i]
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitTerms(s string) []string {
	var out []string
	for _, term := range strings.Split(s, ",") {
		if term = strings.TrimSpace(term); term != "" {
			out = append(out, term)
		}
	}
	return out
}

// dedupe drops repeated terms, comparing case-insensitively and keeping the
// first spelling.
func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		key := lower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}
