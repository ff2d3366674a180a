package github

import (
	"go.uber.org/zap"
)

// Event is the preprocessed Github Webhook event
type Event struct {
	// DeliveryID is the unique github ID of the event
	DeliveryID string
	// Type is the github webhook event type returned by github.WebHookType()
	Type string
	// Action is the value of the action field of the payload, it is empty
	// for event types without actions.
	Action string
	// JSON is the raw event payload as it was signed by github.
	JSON []byte
	// Event is the parsed JSON payload as struct type returned by github.ParseWebHook()
	Event     any
	LogFields []zap.Field
}

func (e *Event) String() string {
	if e.Action == "" {
		return e.Type + " (deliveryID: " + e.DeliveryID + ")"
	}

	return e.Type + "." + e.Action + " (deliveryID: " + e.DeliveryID + ")"
}
