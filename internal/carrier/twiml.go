package carrier

import "github.com/twilio/twilio-go/twiml"

// ReplyContentType is what Twilio expects on webhook responses.
const ReplyContentType = "text/xml"

// ReplyEnvelope wraps text in the messaging TwiML document returned to an
// inbound webhook.
func ReplyEnvelope(text string) (string, error) {
	message := &twiml.MessagingMessage{Body: text}
	return twiml.Messages([]twiml.Element{message})
}
