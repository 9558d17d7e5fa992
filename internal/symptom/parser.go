// Package symptom extracts structured pain data from free-text chat posts.
//
// Everything here is pure: no I/O, no shared state, and no input makes it
// fail. Missing fields come back as zero values.
package symptom

import (
	"regexp"
	"strconv"
	"strings"

	"symptom-coach/internal/textnorm"
)

type Region string

const (
	RegionShoulder  Region = "shoulder"
	RegionKnee      Region = "knee"
	RegionUpperBack Region = "upper_back"
	RegionLowerBack Region = "lower_back"
	RegionWrist     Region = "wrist"
	RegionHip       Region = "hip"
	RegionElbow     Region = "elbow"
	RegionAnkle     Region = "ankle"
	RegionNeck      Region = "neck"
	RegionHand      Region = "hand"
	RegionFoot      Region = "foot"
	RegionUndefined Region = "undefined"
)

// ParsedSymptom is derived from a single message and never stored on its own.
type ParsedSymptom struct {
	Exercise       string   `json:"exercise"`
	Region         Region   `json:"region"`
	Location       string   `json:"location"`
	Timing         string   `json:"timing"`
	PainDescriptor string   `json:"pain_descriptor"`
	Intensity      int      `json:"intensity"`
	DurationText   string   `json:"duration_text"`
	Tags           []string `json:"tags"`
	IsValid        bool     `json:"is_valid"`
}

var (
	exercisePattern  = regexp.MustCompile(`(?i)\b(?:exerc[ií]cio|exercise)\s*:\s*([^\n]+)`)
	locationPattern  = regexp.MustCompile(`(?i)\b(?:onde|local|regi[aã]o|where|location)\s*:\s*([^\n]+)`)
	timingPattern    = regexp.MustCompile(`(?i)\b(?:quando|momento|fase|when|phase)\s*:\s*([^\n]+)`)
	painTypePattern  = regexp.MustCompile(`(?i)\b(?:tipo de dor|tipo|sensa[cç][aã]o|pain type|type)\s*:\s*([^\n]+)`)
	intensityPattern = regexp.MustCompile(`(?i)\b(?:intensidade|intensity)\s*:\s*(\d{1,3})(?:\s*/\s*10)?`)
	durationPattern  = regexp.MustCompile(`(?i)(?:h[aá] quanto tempo|\btempo|\bdura[cç][aã]o|\bduration)\s*:\s*([^\n]+)`)
	tagPattern       = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

	intensityFallbacks = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,3})\s*/\s*10\b`),
		regexp.MustCompile(`(?i)intensi(?:dade|ty)[:\s]+(\d{1,3})`),
		regexp.MustCompile(`(?i)n[ií]vel[:\s]+(\d{1,3})`),
		regexp.MustCompile(`(?i)level[:\s]+(\d{1,3})`),
		regexp.MustCompile(`(?i)(?:escala|scale)[:\s]+(\d{1,3})`),
	}
)

// Parse runs every labelled-field extractor over raw and resolves the
// anatomical region from the location plus the whole message.
func Parse(raw string) ParsedSymptom {
	p := ParsedSymptom{
		Exercise:       field(exercisePattern, raw),
		Location:       field(locationPattern, raw),
		Timing:         field(timingPattern, raw),
		PainDescriptor: field(painTypePattern, raw),
		DurationText:   field(durationPattern, raw),
		Tags:           ExtractTags(raw),
	}
	p.Region = ExtractRegion(p.Location + " " + raw)

	if m := intensityPattern.FindStringSubmatch(raw); m != nil {
		p.Intensity = clampIntensity(m[1])
	} else {
		p.Intensity = ExtractIntensity(raw)
	}

	p.IsValid = p.Exercise != "" && p.Location != "" && p.Region != RegionUndefined
	return p
}

// ExtractRegion returns the first region in table order whose keywords occur
// in text, or RegionUndefined.
func ExtractRegion(text string) Region {
	folded := textnorm.Fold(text)
	for _, rk := range regionKeywords {
		if textnorm.ContainsAny(folded, rk.keywords) {
			return rk.region
		}
	}
	return RegionUndefined
}

// ExtractTags returns the distinct #tags of content in first-seen order.
func ExtractTags(content string) []string {
	matches := tagPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		tags = append(tags, m[1])
	}
	return tags
}

// LooksLikePainPost reports whether content uses any pain vocabulary.
func LooksLikePainPost(content string) bool {
	return textnorm.ContainsAny(textnorm.Fold(content), painKeywords)
}

// ExtractIntensity tries the known "N/10"-style patterns in order and
// returns the first value clamped to [1,10], or 0 when none is present.
func ExtractIntensity(content string) int {
	for _, re := range intensityFallbacks {
		if m := re.FindStringSubmatch(content); m != nil {
			return clampIntensity(m[1])
		}
	}
	return 0
}

// IsInvestigableQuestion reports whether content asks for help: it carries a
// question mark or one of the help-seeking phrases.
func IsInvestigableQuestion(content string) bool {
	if IsExplicitQuestion(content) {
		return true
	}
	return textnorm.ContainsAny(textnorm.Fold(content), questionPhrases)
}

// IsExplicitQuestion reports whether content is phrased as a question.
// Help-seeking words alone do not count: "quando" shows up in answers too.
func IsExplicitQuestion(content string) bool {
	return strings.Contains(content, "?")
}

// HasContent reports whether the message says anything at all.
func HasContent(content string) bool {
	return textnorm.HasContent(content)
}

func field(re *regexp.Regexp, raw string) string {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func clampIntensity(digits string) int {
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return min(10, max(1, v))
}
