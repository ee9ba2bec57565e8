package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/smartcharging/core/model"
)

// ScheduleMessage is the payload published on the schedule topic.
type ScheduleMessage struct {
	MessageID string                  `json:"message_id"`
	StationID string                  `json:"station_id"`
	SentAt    time.Time               `json:"sent_at"`
	Schedule  model.CompositeSchedule `json:"schedule"`
}

// Name implements publisher.SchedulePublisher.
func (c *Client) Name() string { return "mqtt" }

// Publish sends cs to the outlet's schedule topic.
func (c *Client) Publish(ctx context.Context, stationID string, cs model.CompositeSchedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ScheduleMessage{
		MessageID: uuid.NewString(),
		StationID: stationID,
		SentAt:    time.Now().UTC(),
		Schedule:  cs,
	})
	if err != nil {
		return err
	}
	topic := c.topics.Schedule(cs.EvseID)
	if err := c.publish(topic, c.qosFor("schedule"), c.retain, payload); err != nil {
		return err
	}
	c.log.Debugf("published composite schedule for evse %d on %s", cs.EvseID, topic)
	return nil
}

// Close implements publisher.SchedulePublisher.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}
