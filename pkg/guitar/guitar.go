// Package guitar describes the timbre of the synthesized instrument and
// provides the shared, live-mutable configuration group read by the audio
// callback. Changing a parameter takes effect on already sounding notes.
package guitar

import "sync"

// Type enumerates the built-in presets.
type Type int

const (
	Custom Type = iota
	Acoustic
	Classical
	Electric
	Bass
	TwelveString
)

func (t Type) String() string {
	switch t {
	case Acoustic:
		return "Acoustic"
	case Classical:
		return "Classical"
	case Electric:
		return "Electric"
	case Bass:
		return "Bass"
	case TwelveString:
		return "Twelve string"
	default:
		return "Custom"
	}
}

// Config holds every timbre parameter of the plucked-string model plus the
// master volume. Voices snapshot nothing: decay, damping and body parameters
// are read through the Store on every sample.
type Config struct {
	Name          Type
	Decay         float64
	StringDamping float64
	BodyResonance float64 // Hz
	BodyDamping   float64
	StringTension float64
	ScaleLength   float64 // inches
	CapoFret      uint8
	Volume        float64
}

// AcousticConfig is a steel-string acoustic: medium sustain, prominent body
// resonance around 150 Hz.
func AcousticConfig() Config {
	return Config{
		Name:          Acoustic,
		Decay:         0.995,
		StringDamping: 0.4,
		BodyResonance: 150.0,
		BodyDamping:   0.2,
		StringTension: 0.8,
		ScaleLength:   25.5,
		CapoFret:      0,
		Volume:        0.5,
	}
}

// ElectricConfig is a solid body: long sustain, little body resonance.
func ElectricConfig() Config {
	return Config{
		Name:          Electric,
		Decay:         0.999,
		StringDamping: 0.1,
		BodyResonance: 70.0,
		BodyDamping:   0.8,
		StringTension: 0.8,
		ScaleLength:   25.5,
		CapoFret:      0,
		Volume:        0.5,
	}
}

// ClassicalConfig models nylon strings: shorter sustain, lower tension.
func ClassicalConfig() Config {
	return Config{
		Name:          Classical,
		Decay:         0.990,
		StringDamping: 0.6,
		BodyResonance: 120.0,
		BodyDamping:   0.3,
		StringTension: 0.5,
		ScaleLength:   25.6,
		CapoFret:      0,
		Volume:        0.5,
	}
}

// BassConfig is a long-scale bass guitar.
func BassConfig() Config {
	return Config{
		Name:          Bass,
		Decay:         0.997,
		StringDamping: 0.3,
		BodyResonance: 0.0,
		BodyDamping:   0.9,
		StringTension: 0.9,
		ScaleLength:   34.0,
		CapoFret:      0,
		Volume:        0.5,
	}
}

// TwelveStringConfig sounds like an acoustic with extra string tension.
func TwelveStringConfig() Config {
	return Config{
		Name:          TwelveString,
		Decay:         0.994,
		StringDamping: 0.5,
		BodyResonance: 150.0,
		BodyDamping:   0.2,
		StringTension: 0.9,
		ScaleLength:   25.5,
		CapoFret:      0,
		Volume:        0.5,
	}
}

// CustomConfig builds a config from raw parameters, clamping the capo to the
// last playable fret.
func CustomConfig(decay, stringDamping, bodyResonance, bodyDamping, stringTension, scaleLength float64, capoFret uint8, volume float64) Config {
	if capoFret > 24 {
		capoFret = 24
	}
	return Config{
		Name:          Custom,
		Decay:         decay,
		StringDamping: stringDamping,
		BodyResonance: bodyResonance,
		BodyDamping:   bodyDamping,
		StringTension: stringTension,
		ScaleLength:   scaleLength,
		CapoFret:      capoFret,
		Volume:        volume,
	}
}

// Preset resolves a preset by name, falling back to acoustic.
func Preset(name string) Config {
	switch name {
	case "electric":
		return ElectricConfig()
	case "classical":
		return ClassicalConfig()
	case "bass":
		return BassConfig()
	case "twelve", "twelve-string":
		return TwelveStringConfig()
	default:
		return AcousticConfig()
	}
}

// Store is the single lock guarding the timbre configuration. The audio
// callback reads it once per sample, so the critical section is a plain copy.
type Store struct {
	mutex  sync.RWMutex
	config Config
}

// NewStore creates a store seeded with the given config.
func NewStore(config Config) *Store {
	return &Store{config: config}
}

// Get returns a copy of the current config.
func (s *Store) Get() Config {
	s.mutex.RLock()
	config := s.config
	s.mutex.RUnlock()
	return config
}

// Set replaces the config wholesale.
func (s *Store) Set(config Config) {
	s.mutex.Lock()
	s.config = config
	s.mutex.Unlock()
}

// Update applies a mutation under the lock, for tweaking single parameters.
func (s *Store) Update(mutate func(*Config)) {
	s.mutex.Lock()
	mutate(&s.config)
	s.mutex.Unlock()
}
