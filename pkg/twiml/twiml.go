// Package twiml renders reply text as Twilio Messaging Markup.
package twiml

import (
	"bytes"
	"encoding/xml"
)

// ContentType is the content type of rendered markup.
const ContentType = "text/xml"

// Render wraps text in a single <Message> inside a <Response>, escaping it
// for XML. Render is pure: equal input always yields equal bytes.
func Render(text string) []byte {
	var buf bytes.Buffer
	buf.WriteString("<Response><Message>")
	// EscapeText only fails when the writer does; bytes.Buffer never does.
	_ = xml.EscapeText(&buf, []byte(text))
	buf.WriteString("</Message></Response>")
	return buf.Bytes()
}
