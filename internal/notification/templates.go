// internal/notification/templates.go

package notification

import (
	"bytes"
	"fmt"
	"text/template"
)

// Type tags the payload so clients can route a tap
type Type string

const (
	TypeNewMatches       Type = "new_matches"
	TypeChat             Type = "chat"
	TypeRoomConnected    Type = "room_connected"
	TypeRoomExpired      Type = "room_expired"
	TypeDecisionReminder Type = "decision_reminder"
)

const chatPreviewLength = 100

var (
	newMatchesBody = template.Must(template.New("new_matches").Parse(
		`You have {{.Count}} new curated {{if eq .Count 1}}match{{else}}matches{{end}} this week. Take a look!`))
	decisionDayBody = template.Must(template.New("decision_day").Parse(
		`Time to decide about {{.Name}}. Connect or pass?`))
	lastDayBody = template.Must(template.New("last_day").Parse(
		`Your room with {{.Name}} expires tomorrow. Make your decision!`))
)

// Rendered is a ready-to-send title and body
type Rendered struct {
	Title string
	Body  string
}

func render(tmpl *template.Template, data interface{}) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

// NewMatchesMessage announces a fresh weekly batch
func NewMatchesMessage(count int) Rendered {
	return Rendered{
		Title: "✨ New matches are here!",
		Body:  render(newMatchesBody, map[string]int{"Count": count}),
	}
}

// ChatMessage previews a message from senderName
func ChatMessage(senderName, text, messageType string) Rendered {
	body := text
	switch messageType {
	case "voice":
		body = "🎤 Voice note"
	case "image":
		body = "📷 Photo"
	}
	runes := []rune(body)
	if len(runes) > chatPreviewLength {
		body = string(runes[:chatPreviewLength]) + "..."
	}
	if senderName == "" {
		senderName = "Your match"
	}
	return Rendered{Title: senderName, Body: body}
}

// RoomConnectedMessage celebrates a mutual connect decided inside the room
func RoomConnectedMessage() Rendered {
	return Rendered{Title: "You matched! Start chatting 💕", Body: "You both chose to connect."}
}

// RoomConnectedOnExpiryMessage celebrates a mutual connect resolved by the expiry sweep
func RoomConnectedOnExpiryMessage() Rendered {
	return Rendered{Title: "🎉 It's a match!", Body: "You both chose to connect. Keep the conversation going!"}
}

// RoomExpiredMessage tells a participant their room ended without a mutual decision
func RoomExpiredMessage() Rendered {
	return Rendered{Title: "⏰ Connection room expired", Body: "Your 7-day connection room has ended. New matches await!"}
}

// DecisionReminderMessage nudges a participant on day 6 and day 7
func DecisionReminderMessage(day int, otherName string) Rendered {
	if otherName == "" {
		otherName = "your match"
	}
	data := map[string]string{"Name": otherName}
	if day >= 7 {
		return Rendered{Title: "⏰ Decision day!", Body: render(decisionDayBody, data)}
	}
	return Rendered{Title: "📅 1 day left to decide", Body: render(lastDayBody, data)}
}

// Payload builds the data map sent with a notification
func Payload(t Type, kv ...string) map[string]string {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("notification payload %s: odd number of key/value arguments", t))
	}
	data := map[string]string{"type": string(t)}
	for i := 0; i < len(kv); i += 2 {
		data[kv[i]] = kv[i+1]
	}
	return data
}
