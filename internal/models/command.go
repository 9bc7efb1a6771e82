package models

import (
	"encoding/json"
	"fmt"
)

// CommandType identifies one command variant.
type CommandType string

// Command variants. Subscribe and Unsubscribe are reserved in the wire
// schema: they deserialize but are answered with a "not supported" response.
const (
	CmdUpdateThreshold      CommandType = "UpdateThreshold"
	CmdAddProfile           CommandType = "AddProfile"
	CmdRemoveProfile        CommandType = "RemoveProfile"
	CmdChangeProfile        CommandType = "ChangeProfile"
	CmdChangePlayer         CommandType = "ChangePlayer"
	CmdSetDefaultProfile    CommandType = "SetDefaultProfile"
	CmdGetCurrentThresholds CommandType = "GetCurrentThresholds"
	CmdGetSensorValues      CommandType = "GetSensorValues"
	CmdStartSensorStream    CommandType = "StartSensorStream"
	CmdStopSensorStream     CommandType = "StopSensorStream"
	CmdSubscribe            CommandType = "Subscribe"
	CmdUnsubscribe          CommandType = "Unsubscribe"
)

// Command is one client request. The wire encoding is an externally tagged
// union: unit variants are bare JSON strings ("GetCurrentThresholds"), data
// variants are single-key objects ({"ChangeProfile":{"name":"B"}}).
type Command struct {
	Type CommandType

	// UpdateThreshold fields.
	ProfileName    string
	ThresholdIndex int
	Value          int

	// Name is shared by AddProfile, RemoveProfile, ChangeProfile,
	// ChangePlayer, and SetDefaultProfile.
	Name string

	// AddProfile payload.
	Thresholds [4]int

	// Subscribe / Unsubscribe payload (reserved).
	EventTypes []string
}

func isUnitVariant(t CommandType) bool {
	switch t {
	case CmdGetCurrentThresholds, CmdGetSensorValues, CmdStartSensorStream, CmdStopSensorStream:
		return true
	}
	return false
}

// UnmarshalJSON decodes both the bare-string form for unit variants and the
// single-key object form for variants that carry data.
func (c *Command) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if !isUnitVariant(CommandType(tag)) {
			return fmt.Errorf("unknown command %q", tag)
		}
		*c = Command{Type: CommandType(tag)}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("command must have exactly one variant, got %d", len(obj))
	}

	for tag, raw := range obj {
		*c = Command{Type: CommandType(tag)}
		switch c.Type {
		case CmdUpdateThreshold:
			var args struct {
				ProfileName    string `json:"profile_name"`
				ThresholdIndex int    `json:"threshold_index"`
				Value          int    `json:"value"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return fmt.Errorf("UpdateThreshold: %w", err)
			}
			c.ProfileName = args.ProfileName
			c.ThresholdIndex = args.ThresholdIndex
			c.Value = args.Value
		case CmdAddProfile:
			var args struct {
				Name       string `json:"name"`
				Thresholds [4]int `json:"thresholds"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return fmt.Errorf("AddProfile: %w", err)
			}
			c.Name = args.Name
			c.Thresholds = args.Thresholds
		case CmdRemoveProfile, CmdChangeProfile, CmdChangePlayer, CmdSetDefaultProfile:
			var args struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return fmt.Errorf("%s: %w", tag, err)
			}
			c.Name = args.Name
		case CmdSubscribe, CmdUnsubscribe:
			var args struct {
				EventTypes []string `json:"event_types"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return fmt.Errorf("%s: %w", tag, err)
			}
			c.EventTypes = args.EventTypes
		case CmdGetCurrentThresholds, CmdGetSensorValues, CmdStartSensorStream, CmdStopSensorStream:
			// Unit variants are also accepted in object form with a null body.
		default:
			return fmt.Errorf("unknown command %q", tag)
		}
	}
	return nil
}

// MarshalJSON emits the same externally tagged encoding UnmarshalJSON accepts.
func (c Command) MarshalJSON() ([]byte, error) {
	if isUnitVariant(c.Type) {
		return json.Marshal(string(c.Type))
	}
	var body any
	switch c.Type {
	case CmdUpdateThreshold:
		body = map[string]any{
			"profile_name":    c.ProfileName,
			"threshold_index": c.ThresholdIndex,
			"value":           c.Value,
		}
	case CmdAddProfile:
		body = map[string]any{"name": c.Name, "thresholds": c.Thresholds}
	case CmdRemoveProfile, CmdChangeProfile, CmdChangePlayer, CmdSetDefaultProfile:
		body = map[string]any{"name": c.Name}
	case CmdSubscribe, CmdUnsubscribe:
		body = map[string]any{"event_types": c.EventTypes}
	default:
		return nil, fmt.Errorf("unknown command %q", c.Type)
	}
	return json.Marshal(map[string]any{string(c.Type): body})
}
