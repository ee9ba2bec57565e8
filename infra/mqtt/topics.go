package mqtt

import "fmt"

// Topics builds the topic names below a prefix.
type Topics struct {
	Prefix string
}

// Schedule is where the composite schedule of an outlet is published.
func (t Topics) Schedule(evseID int) string {
	return fmt.Sprintf("%s/evse/%d/composite_schedule", t.Prefix, evseID)
}

func (t Topics) ProfilesSet() string   { return t.Prefix + "/profiles/set" }
func (t Topics) ProfilesClear() string { return t.Prefix + "/profiles/clear" }
func (t Topics) SessionStart() string  { return t.Prefix + "/sessions/start" }
func (t Topics) SessionStop() string   { return t.Prefix + "/sessions/stop" }

// Result carries the outcome of every command.
func (t Topics) Result() string { return t.Prefix + "/commands/result" }
