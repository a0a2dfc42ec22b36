package hubspot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Subscription types that can carry a new or changed contact email.
const (
	SubscriptionContactCreation       = "contact.creation"
	SubscriptionContactPropertyChange = "contact.propertyChange"
	SubscriptionContactEmailChange    = "contact.propertyChange.email"
)

var emailSubscriptions = map[string]struct{}{
	SubscriptionContactCreation:       {},
	SubscriptionContactPropertyChange: {},
	SubscriptionContactEmailChange:    {},
}

// IsEmailSubscription reports whether events of this type should be validated.
func IsEmailSubscription(subscriptionType string) bool {
	_, ok := emailSubscriptions[subscriptionType]
	return ok
}

// ID accepts both numeric and string identifiers. HubSpot sends numbers;
// test tooling and replays often send strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// PropertyValue is the {"value": ...} wrapper used in event properties.
type PropertyValue struct {
	Value string `json:"value"`
}

// Event is a single webhook notification.
type Event struct {
	EventID          ID                       `json:"eventId"`
	SubscriptionID   ID                       `json:"subscriptionId"`
	PortalID         ID                       `json:"portalId"`
	OccurredAt       int64                    `json:"occurredAt"`
	SubscriptionType string                   `json:"subscriptionType"`
	ObjectID         ID                       `json:"objectId"`
	PropertyName     string                   `json:"propertyName,omitempty"`
	PropertyValue    string                   `json:"propertyValue,omitempty"`
	Properties       map[string]PropertyValue `json:"properties,omitempty"`
}

// Email returns the contact email carried by the event, if any. The
// properties map wins over a single-property change notification.
func (e Event) Email() (string, bool) {
	if p, ok := e.Properties["email"]; ok && p.Value != "" {
		return p.Value, true
	}
	if e.PropertyName == "email" && e.PropertyValue != "" {
		return e.PropertyValue, true
	}
	return "", false
}

// ParseEvents decodes a webhook body holding either one event object or
// an array of events.
func ParseEvents(body []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty webhook body")
	}
	if trimmed[0] == '[' {
		var events []Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("decoding event batch: %w", err)
		}
		return events, nil
	}
	var ev Event
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return []Event{ev}, nil
}

// formatBool matches HubSpot's string encoding of boolean properties.
func formatBool(b bool) string { return strconv.FormatBool(b) }
