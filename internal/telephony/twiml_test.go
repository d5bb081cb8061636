package telephony

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"outbound-dialer/internal/campaign"
	"outbound-dialer/internal/prompt"
)

func TestRenderPromptGathersThenSaysGoodbye(t *testing.T) {
	r := NewRenderer(prompt.Default(), nil)
	xml, err := r.Render(campaign.Reply{Kind: campaign.ReplyPrompt, Name: "Alice", Action: "https://d.example/webhooks/twilio/gather?phone=%2B1&t=x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		`<Gather input="dtmf speech" timeout="8" numDigits="1" action="https://d.example/webhooks/twilio/gather?phone=%2B1&amp;t=x" method="POST">`,
		`<Say voice="alice">Hello Alice, this is an automated call from VetPay.`,
		`<Say voice="alice">Thank you for your time. Goodbye.</Say>`,
		`<Hangup></Hangup>`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
	if strings.Index(xml, "<Gather") > strings.Index(xml, "Thank you for your time") {
		t.Fatalf("no-input goodbye must follow the gather: %s", xml)
	}
}

func TestRenderPromptRequiresAction(t *testing.T) {
	if _, err := NewRenderer(prompt.Default(), nil).Render(campaign.Reply{Kind: campaign.ReplyPrompt}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRenderTransferDialsNumberOrSip(t *testing.T) {
	r := NewRenderer(prompt.Default(), nil)

	xml, err := r.Render(campaign.Reply{Kind: campaign.ReplyTransfer, DialTo: "+15559990000"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Number>+15559990000</Number>") || !strings.Contains(xml, "Please hold") {
		t.Fatalf("unexpected xml: %s", xml)
	}

	xml, err = r.Render(campaign.Reply{Kind: campaign.ReplyTransfer, DialTo: "sip:agent@pbx.example.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Sip>sip:agent@pbx.example.com</Sip>") {
		t.Fatalf("unexpected xml: %s", xml)
	}

	if _, err := r.Render(campaign.Reply{Kind: campaign.ReplyTransfer}); err == nil {
		t.Fatalf("expected error without dial target")
	}
}

func TestRenderVoicemailPrefersRecordedClip(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(prompt.Default(), prompt.NewCatalog(dir, "https://d.example"))

	xml, err := r.Render(campaign.Reply{Kind: campaign.ReplyVoicemail})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Say") || strings.Contains(xml, "<Play") {
		t.Fatalf("expected spoken voicemail without clip: %s", xml)
	}

	if err := os.WriteFile(filepath.Join(dir, "record.mp3"), []byte("ID3"), 0o600); err != nil {
		t.Fatal(err)
	}
	xml, err = r.Render(campaign.Reply{Kind: campaign.ReplyVoicemail})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Play>https://d.example/static/audio/record.mp3</Play>") {
		t.Fatalf("expected clip: %s", xml)
	}
}

func TestRenderTerminalReplies(t *testing.T) {
	s := prompt.Default()
	r := NewRenderer(s, nil)
	cases := map[campaign.ReplyKind]string{
		campaign.ReplyGoodbye:     s.Goodbye,
		campaign.ReplyFallback:    s.Fallback,
		campaign.ReplyUnavailable: s.Unavailable,
	}
	for kind, text := range cases {
		xml, err := r.Render(campaign.Reply{Kind: kind})
		if err != nil {
			t.Fatalf("%s: unexpected error %v", kind, err)
		}
		if !strings.Contains(xml, text) || !strings.Contains(xml, "<Hangup>") {
			t.Fatalf("%s: unexpected xml %s", kind, xml)
		}
	}
	if _, err := r.Render(campaign.Reply{Kind: "dance"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
