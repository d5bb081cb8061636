package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
	assert.Equal(t, "alice", s.Voice)
	assert.Equal(t, 8, s.Gather.TimeoutSeconds)
}

func TestParse_FillsMissingFields(t *testing.T) {
	s, err := Parse([]byte(`
voice: Polly.Joanna
greeting: "Hi {name}, press 9 to talk to us."
gather:
  timeout_seconds: 5
transfer_digit: "9"
`))
	require.NoError(t, err)
	assert.Equal(t, "Polly.Joanna", s.Voice)
	assert.Equal(t, "Hi Bob, press 9 to talk to us.", s.GreetingFor("Bob"))
	assert.Equal(t, 5, s.Gather.TimeoutSeconds)
	assert.Equal(t, 1, s.Gather.NumDigits)
	assert.Equal(t, "dtmf speech", s.Gather.Input)
	assert.Equal(t, "9", s.TransferDigit)
	assert.Equal(t, Default().Goodbye, s.Goodbye)
	assert.Equal(t, Default().TransferKeywords, s.TransferKeywords)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad yaml":      "voice: [",
		"timeout range": "gather:\n  timeout_seconds: 120\n",
		"input mode":    "gather:\n  input: dtmf touch\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			if !errors.Is(err, ErrInvalidScript) {
				t.Fatalf("expected ErrInvalidScript, got %v", err)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(p, []byte("goodbye: Bye now.\n"), 0o600))

	s, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "Bye now.", s.Goodbye)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGreetingFor_Unnamed(t *testing.T) {
	assert.Contains(t, Default().GreetingFor("  "), "Hello there,")
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "record.mp3"), []byte("ID3"), 0o600))
	c := NewCatalog(dir, "https://dialer.example/")

	u, ok := c.ClipFor(Default(), AudioVoicemail)
	require.True(t, ok)
	assert.Equal(t, "https://dialer.example/static/audio/record.mp3", u)

	_, ok = c.URL("missing.mp3")
	assert.False(t, ok)
	_, ok = c.URL("../record.mp3")
	assert.False(t, ok)
	_, ok = c.ClipFor(Default(), AudioGreeting)
	assert.False(t, ok)

	var nilCatalog *Catalog
	_, ok = nilCatalog.URL("record.mp3")
	assert.False(t, ok)
}
