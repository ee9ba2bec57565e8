package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/smartcharging/core/model"
	"github.com/kilianp07/smartcharging/core/store"
)

// Commands is the service side of the command topics.
type Commands interface {
	InstallProfile(ctx context.Context, p model.ChargingProfile) error
	ClearProfiles(ctx context.Context, f store.Filter) ([]model.ChargingProfile, error)
	StartSession(ctx context.Context, evseID int, transactionID string) error
	StopSession(ctx context.Context, evseID int) error
}

// ClearRequest selects the profiles removed by a clear command.
type ClearRequest struct {
	ID         *int                 `json:"id,omitempty"`
	EvseID     *int                 `json:"evseId,omitempty"`
	Purpose    model.ProfilePurpose `json:"chargingProfilePurpose,omitempty"`
	StackLevel *int                 `json:"stackLevel,omitempty"`
}

// SessionRequest starts or stops a transaction.
type SessionRequest struct {
	EvseID        int    `json:"evseId"`
	TransactionID string `json:"transactionId,omitempty"`
}

// Result reports the outcome of a command.
type Result struct {
	MessageID string `json:"message_id"`
	Topic     string `json:"topic"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	// Removed lists the profile ids deleted by a clear command.
	Removed []int     `json:"removed,omitempty"`
	Time    time.Time `json:"time"`
}

const commandTimeout = 10 * time.Second

// Serve attaches cmds to the command topics and subscribes to them.
func (c *Client) Serve(cmds Commands) {
	c.mu.Lock()
	c.commands = cmds
	c.mu.Unlock()
	if c.cli != nil && c.cli.IsConnected() {
		c.subscribe(c.cli)
	}
}

type subscriber interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

func (c *Client) subscribe(sub subscriber) {
	c.mu.RLock()
	ready := c.commands != nil
	c.mu.RUnlock()
	if !ready {
		return
	}
	qos := c.qosFor("command")
	handlers := map[string]paho.MessageHandler{
		c.topics.ProfilesSet():   c.onSet,
		c.topics.ProfilesClear(): c.onClear,
		c.topics.SessionStart():  c.onSessionStart,
		c.topics.SessionStop():   c.onSessionStop,
	}
	for _, topic := range []string{c.topics.ProfilesSet(), c.topics.ProfilesClear(), c.topics.SessionStart(), c.topics.SessionStop()} {
		if token := sub.Subscribe(topic, qos, handlers[topic]); token.Wait() && token.Error() != nil {
			c.log.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

func (c *Client) handler() Commands {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.commands
}

func (c *Client) onSet(_ paho.Client, msg paho.Message) {
	var p model.ChargingProfile
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		c.reply(msg.Topic(), fmt.Errorf("decode profile: %w", err), nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	c.reply(msg.Topic(), c.handler().InstallProfile(ctx, p), nil)
}

func (c *Client) onClear(_ paho.Client, msg paho.Message) {
	var req ClearRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		c.reply(msg.Topic(), fmt.Errorf("decode clear request: %w", err), nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	removed, err := c.handler().ClearProfiles(ctx, store.Filter{
		ProfileID:  req.ID,
		EvseID:     req.EvseID,
		Purpose:    req.Purpose,
		StackLevel: req.StackLevel,
	})
	ids := make([]int, 0, len(removed))
	for _, p := range removed {
		ids = append(ids, p.ID)
	}
	c.reply(msg.Topic(), err, ids)
}

func (c *Client) onSessionStart(_ paho.Client, msg paho.Message) {
	var req SessionRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		c.reply(msg.Topic(), fmt.Errorf("decode session request: %w", err), nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	c.reply(msg.Topic(), c.handler().StartSession(ctx, req.EvseID, req.TransactionID), nil)
}

func (c *Client) onSessionStop(_ paho.Client, msg paho.Message) {
	var req SessionRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		c.reply(msg.Topic(), fmt.Errorf("decode session request: %w", err), nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	c.reply(msg.Topic(), c.handler().StopSession(ctx, req.EvseID), nil)
}

func (c *Client) reply(topic string, err error, removed []int) {
	res := Result{MessageID: uuid.NewString(), Topic: topic, Status: "Accepted", Removed: removed, Time: time.Now().UTC()}
	if err != nil {
		c.log.Warnf("command on %s rejected: %v", topic, err)
		res.Status = "Rejected"
		res.Reason = err.Error()
	}
	payload, mErr := json.Marshal(res)
	if mErr != nil {
		c.log.Errorf("encode result: %v", mErr)
		return
	}
	if pErr := c.publish(c.topics.Result(), c.qosFor("command"), false, payload); pErr != nil {
		c.log.Errorf("publish result: %v", pErr)
	}
}
