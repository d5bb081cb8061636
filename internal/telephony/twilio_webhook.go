package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	twclient "github.com/twilio/twilio-go/client"

	"outbound-dialer/internal/campaign"
)

// TwilioCallbackForm captures the subset of voice webhook fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/twiml
type TwilioCallbackForm struct {
	CallSid      string
	AccountSid   string
	From         string
	To           string
	Direction    string
	CallStatus   string
	CallDuration int
	AnsweredBy   string
	Digits       string
	SpeechResult string

	// Token and Phone come from the callback URL query.
	Token string
	Phone string
}

func ParseTwilioCallback(r *http.Request) (TwilioCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioCallbackForm{}, err
	}
	q := r.URL.Query()
	f := TwilioCallbackForm{
		CallSid:      r.PostFormValue("CallSid"),
		AccountSid:   r.PostFormValue("AccountSid"),
		From:         strings.TrimSpace(r.PostFormValue("From")),
		To:           strings.TrimSpace(r.PostFormValue("To")),
		Direction:    r.PostFormValue("Direction"),
		CallStatus:   strings.TrimSpace(r.PostFormValue("CallStatus")),
		AnsweredBy:   strings.TrimSpace(r.PostFormValue("AnsweredBy")),
		Digits:       strings.TrimSpace(r.PostFormValue("Digits")),
		SpeechResult: strings.TrimSpace(r.PostFormValue("SpeechResult")),
		Token:        q.Get(queryToken),
		Phone:        q.Get(queryPhone),
	}
	if d := strings.TrimSpace(r.PostFormValue("CallDuration")); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			f.CallDuration = n
		}
	}
	return f, nil
}

func (f TwilioCallbackForm) VoiceEvent() campaign.VoiceEvent {
	return campaign.VoiceEvent{Token: f.Token, To: f.To, CallSid: f.CallSid, AnsweredBy: f.AnsweredBy}
}

func (f TwilioCallbackForm) MenuEvent() campaign.MenuEvent {
	return campaign.MenuEvent{
		Phone:   f.Phone,
		Token:   f.Token,
		To:      f.To,
		CallSid: f.CallSid,
		Digits:  f.Digits,
		Speech:  f.SpeechResult,
	}
}

func (f TwilioCallbackForm) StatusEvent() campaign.StatusEvent {
	return campaign.StatusEvent{
		Token:           f.Token,
		To:              f.To,
		CallSid:         f.CallSid,
		Status:          f.CallStatus,
		DurationSeconds: f.CallDuration,
		AnsweredBy:      f.AnsweredBy,
	}
}

const headerSignature = "X-Twilio-Signature"

// ValidateSignature rejects webhooks whose X-Twilio-Signature does not match.
// The signed URL is rebuilt from publicBase because the process usually sits
// behind a proxy that rewrites scheme and host.
func ValidateSignature(authToken, publicBase string) gin.HandlerFunc {
	base := strings.TrimRight(publicBase, "/")
	validator := twclient.NewRequestValidator(authToken)
	return func(c *gin.Context) {
		sig := c.GetHeader(headerSignature)
		if sig == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing signature"})
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		if !validator.Validate(base+c.Request.URL.RequestURI(), params, sig) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}
