// Package voice maps a client language preference to a configured voice.
package voice

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultLanguage is used when a request expresses no preference.
const DefaultLanguage = "en-US"

// Profile describes one synthesis voice and the model files backing it.
type Profile struct {
	Language   string `json:"language"`
	Name       string `json:"name"`
	ModelPath  string `json:"model_path"`
	ConfigPath string `json:"config_path"`
	SampleRate int    `json:"sample_rate"`
}

// NewProfile builds a profile whose model files live in modelDir as
// <name>.onnx and <name>.onnx.json.
func NewProfile(language, name, modelDir string, sampleRate int) Profile {
	model := filepath.Join(modelDir, name+".onnx")
	return Profile{
		Language:   language,
		Name:       name,
		ModelPath:  model,
		ConfigPath: model + ".json",
		SampleRate: sampleRate,
	}
}

// DefaultProfiles returns the built-in voice table.
func DefaultProfiles(modelDir string) []Profile {
	return []Profile{
		NewProfile("en-US", "en_US-ryan-high", modelDir, 22050),
		NewProfile("ru-RU", "ru_RU-ruslan-medium", modelDir, 22050),
	}
}

// Selector picks a Profile for a language preference. It is immutable after
// construction and safe for concurrent use.
type Selector struct {
	profiles []Profile
	exact    map[string]Profile
	primary  map[string]Profile
	def      Profile
}

// NewSelector indexes profiles in order. The first profile seen for a
// primary subtag owns that subtag. defaultLanguage must resolve to one of
// the profiles.
func NewSelector(profiles []Profile, defaultLanguage string) (*Selector, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no voice profiles configured")
	}

	s := &Selector{
		profiles: profiles,
		exact:    make(map[string]Profile, len(profiles)),
		primary:  make(map[string]Profile, len(profiles)),
	}
	for _, p := range profiles {
		tag := normalize(p.Language)
		if _, ok := s.exact[tag]; !ok {
			s.exact[tag] = p
		}
		sub := primarySubtag(tag)
		if _, ok := s.primary[sub]; !ok {
			s.primary[sub] = p
		}
	}

	def, ok := s.lookup(defaultLanguage)
	if !ok {
		return nil, fmt.Errorf("default language %q has no configured voice", defaultLanguage)
	}
	s.def = def
	return s, nil
}

// Select returns the voice for pref, an Accept-Language style value. Only
// the first listed tag is considered; its weight is ignored. An unmatched
// tag yields the default voice, so Select never fails.
func (s *Selector) Select(pref string) Profile {
	tag := firstTag(pref)
	if tag == "" {
		return s.def
	}
	if p, ok := s.lookup(tag); ok {
		return p
	}
	return s.def
}

// Default returns the fallback voice.
func (s *Selector) Default() Profile { return s.def }

// Profiles returns the configured voices in configuration order.
func (s *Selector) Profiles() []Profile {
	out := make([]Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

func (s *Selector) lookup(tag string) (Profile, bool) {
	tag = normalize(tag)
	if p, ok := s.exact[tag]; ok {
		return p, true
	}
	p, ok := s.primary[primarySubtag(tag)]
	return p, ok
}

func firstTag(pref string) string {
	tag, _, _ := strings.Cut(pref, ",")
	tag, _, _ = strings.Cut(tag, ";")
	return strings.TrimSpace(tag)
}

func normalize(tag string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
}

func primarySubtag(tag string) string {
	sub, _, _ := strings.Cut(tag, "-")
	return sub
}
