package chat

import "time"

// Session captures a transient anonymous conversation. PersonaID is fixed at
// creation; PromptSent flips to true once, after the persona prompt is shown.
type Session struct {
	ID         string    `json:"id"`
	PersonaID  string    `json:"personaId"`
	PromptSent bool      `json:"promptSent"`
	CreatedAt  time.Time `json:"createdAt"`
}
