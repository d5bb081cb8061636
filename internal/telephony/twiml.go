package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"net/http"
	"strings"

	"outbound-dialer/internal/campaign"
	"outbound-dialer/internal/prompt"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs the call flow uses are modeled.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName   xml.Name `xml:"Gather"`
	Input     string   `xml:"input,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	Language  string   `xml:"language,attr,omitempty"`
	Verbs     []any    `xml:",any"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName xml.Name  `xml:"Dial"`
	Number  string    `xml:"Number,omitempty"`
	Sip     *twimlSip `xml:"Sip,omitempty"`
}

type twimlSip struct {
	URI string `xml:",chardata"`
}

// Renderer turns engine replies into TwiML using the loaded prompt script.
type Renderer struct {
	Script prompt.Script
	Audio  *prompt.Catalog
}

func NewRenderer(script prompt.Script, audio *prompt.Catalog) Renderer {
	return Renderer{Script: script, Audio: audio}
}

func (r Renderer) say(text string) twimlSay {
	return twimlSay{Voice: r.Script.Voice, Language: r.Script.Gather.Language, Text: text}
}

// speak plays the clip configured for kind if present, otherwise says text.
func (r Renderer) speak(kind, text string) any {
	if u, ok := r.Audio.ClipFor(r.Script, kind); ok {
		return twimlPlay{URL: u}
	}
	return r.say(text)
}

func (r Renderer) Render(reply campaign.Reply) (string, error) {
	var resp twimlResponse

	switch reply.Kind {
	case campaign.ReplyPrompt:
		if reply.Action == "" {
			return "", errors.New("telephony: gather action required for prompt")
		}
		g := twimlGather{
			Input:     r.Script.Gather.Input,
			Timeout:   r.Script.Gather.TimeoutSeconds,
			NumDigits: r.Script.Gather.NumDigits,
			Action:    reply.Action,
			Method:    http.MethodPost,
			Language:  r.Script.Gather.Language,
		}
		g.Verbs = append(g.Verbs, r.speak(prompt.AudioGreeting, r.Script.GreetingFor(reply.Name)))
		// Reached only when the gather times out without input.
		resp.Verbs = append(resp.Verbs, g, r.say(r.Script.NoInput), twimlHangup{})
	case campaign.ReplyVoicemail:
		resp.Verbs = append(resp.Verbs, r.speak(prompt.AudioVoicemail, r.Script.Voicemail), twimlHangup{})
	case campaign.ReplyTransfer:
		if strings.TrimSpace(reply.DialTo) == "" {
			return "", errors.New("telephony: dial target required for transfer")
		}
		d := twimlDial{}
		// Prefer SIP if it looks like sip:... otherwise treat as a PSTN number.
		if strings.HasPrefix(strings.ToLower(reply.DialTo), "sip:") {
			d.Sip = &twimlSip{URI: reply.DialTo}
		} else {
			d.Number = reply.DialTo
		}
		resp.Verbs = append(resp.Verbs, r.say(r.Script.Transfer), d)
	case campaign.ReplyUnavailable:
		resp.Verbs = append(resp.Verbs, r.say(r.Script.Unavailable), twimlHangup{})
	case campaign.ReplyGoodbye:
		resp.Verbs = append(resp.Verbs, r.say(r.Script.Goodbye), twimlHangup{})
	case campaign.ReplyFallback:
		resp.Verbs = append(resp.Verbs, r.say(r.Script.Fallback), twimlHangup{})
	default:
		return "", errors.New("telephony: unknown reply kind")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
