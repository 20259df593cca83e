// Package carrier wraps the Twilio messaging API: outbound sends and the
// TwiML envelope expected in webhook replies.
package carrier

import (
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/storeloop/danbot/internal/config"
	"github.com/storeloop/danbot/internal/logger"
)

// DispatchError reports that an outbound send could not be delivered to the
// carrier.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed: %v", e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// messageCreator is the single twilio-go call we depend on; the concrete
// client's Api service satisfies it.
type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// Twilio sends outbound messages through the Twilio REST API.
type Twilio struct {
	api  messageCreator
	from string
}

// New builds a Twilio sender from the configured account credentials.
func New(cfg config.TwilioConfig) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Twilio{api: client.Api, from: cfg.FromNumber}
}

// Send dispatches body to the given number and returns the provider-assigned
// message SID.
func (t *Twilio) Send(to, body string) (string, error) {
	if t.from == "" {
		return "", &DispatchError{Err: errors.New("no originating number configured, set TWILIO_PHONE_NUMBER")}
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	msg, err := t.api.CreateMessage(params)
	if err != nil {
		logger.L.Error("twilio send failed", "to", to, "error", err)
		return "", &DispatchError{Err: err}
	}

	sid := ""
	if msg.Sid != nil {
		sid = *msg.Sid
	}
	logger.L.Info("message dispatched", "to", to, "sid", sid)
	return sid, nil
}
