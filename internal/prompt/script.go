package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidScript = errors.New("prompt: invalid script")

// Script holds everything the call is told. It is loaded once at startup
// from a YAML file; fields left empty fall back to Default.
type Script struct {
	Voice string `yaml:"voice"`

	// Greeting is spoken inside the menu gather. "{name}" is replaced with the
	// contact's name.
	Greeting    string `yaml:"greeting"`
	NoInput     string `yaml:"no_input"`
	Transfer    string `yaml:"transfer"`
	Goodbye     string `yaml:"goodbye"`
	Fallback    string `yaml:"fallback"`
	Voicemail   string `yaml:"voicemail"`
	Unavailable string `yaml:"unavailable"`

	Gather Gather `yaml:"gather"`

	TransferDigit    string   `yaml:"transfer_digit"`
	TransferKeywords []string `yaml:"transfer_keywords"`

	// Audio maps a reply kind to a clip under the audio dir. A clip that is
	// present on disk is played instead of the spoken text.
	Audio map[string]string `yaml:"audio"`
}

type Gather struct {
	Input          string `yaml:"input"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	NumDigits      int    `yaml:"num_digits"`
	Language       string `yaml:"language"`
}

const (
	AudioVoicemail = "voicemail"
	AudioGreeting  = "greeting"
)

func Default() Script {
	return Script{
		Voice: "alice",
		Greeting: "Hello {name}, this is an automated call from VetPay. " +
			"It looks like we may have the wrong payment details for you. " +
			"If you would like to update them and speak to our team now, " +
			"say transfer me or press 1. Thank you.",
		NoInput:     "Thank you for your time. Goodbye.",
		Transfer:    "Please hold for a moment while I transfer you to a VetPay representative now.",
		Goodbye:     "Goodbye.",
		Fallback:    "Sorry, we could not find your details. Goodbye.",
		Voicemail:   "Hello there, this is an automated call from VetPay. It looks like we may have incorrect payment details on file. Please visit vetpay.com.au to update your information. Thank you, and we hope your pet is doing well.",
		Unavailable: "Sorry, no one is available to take your call right now. We will be in touch. Goodbye.",
		Gather: Gather{
			Input:          "dtmf speech",
			TimeoutSeconds: 8,
			NumDigits:      1,
		},
		TransferDigit:    "1",
		TransferKeywords: []string{"transfer", "agent", "representative", "speak to", "human"},
		Audio:            map[string]string{AudioVoicemail: "record.mp3"},
	}
}

// Load reads a YAML script. An empty path returns Default.
func Load(path string) (Script, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("prompt: read %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	s = s.withDefaults()
	if err := s.Validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

func (s Script) withDefaults() Script {
	d := Default()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&s.Voice, d.Voice)
	fill(&s.Greeting, d.Greeting)
	fill(&s.NoInput, d.NoInput)
	fill(&s.Transfer, d.Transfer)
	fill(&s.Goodbye, d.Goodbye)
	fill(&s.Fallback, d.Fallback)
	fill(&s.Voicemail, d.Voicemail)
	fill(&s.Unavailable, d.Unavailable)
	fill(&s.Gather.Input, d.Gather.Input)
	fill(&s.TransferDigit, d.TransferDigit)
	if s.Gather.TimeoutSeconds == 0 {
		s.Gather.TimeoutSeconds = d.Gather.TimeoutSeconds
	}
	if s.Gather.NumDigits == 0 {
		s.Gather.NumDigits = d.Gather.NumDigits
	}
	if len(s.TransferKeywords) == 0 {
		s.TransferKeywords = d.TransferKeywords
	}
	if s.Audio == nil {
		s.Audio = d.Audio
	}
	return s
}

func (s Script) Validate() error {
	var problems []string
	if s.Gather.TimeoutSeconds < 1 || s.Gather.TimeoutSeconds > 60 {
		problems = append(problems, "gather.timeout_seconds must be between 1 and 60")
	}
	if s.Gather.NumDigits < 0 {
		problems = append(problems, "gather.num_digits must not be negative")
	}
	for _, in := range strings.Fields(s.Gather.Input) {
		if in != "dtmf" && in != "speech" {
			problems = append(problems, fmt.Sprintf("gather.input: unknown mode %q", in))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidScript, strings.Join(problems, "; "))
	}
	return nil
}

// GreetingFor renders the greeting for a contact. Unnamed contacts are
// greeted as "there".
func (s Script) GreetingFor(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "there"
	}
	return strings.ReplaceAll(s.Greeting, "{name}", name)
}
