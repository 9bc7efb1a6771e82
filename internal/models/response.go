package models

// Response discriminators. Clients use these to route messages: direct
// command replies, the 60 Hz sensor stream, and the 1 Hz presence broadcast.
const (
	ResponseTypeCommand  = "command_response"
	ResponseTypeSensors  = "sensor_stream"
	ResponseTypePresence = "active_player_broadcast"
)

// Response is the single outcome envelope sent to clients. Every command
// yields exactly one; the telemetry and presence loops emit them on their
// own clocks. A Response is constructed fresh per emission and never
// mutated after it is published.
type Response struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	Data         *State  `json:"data"`
	SensorValues *[4]int `json:"sensor_values"`
	ResponseType string  `json:"response_type"`
}

// CommandOK builds a successful command reply carrying a state snapshot.
func CommandOK(message string, snapshot State) Response {
	return Response{
		Success:      true,
		Message:      message,
		Data:         &snapshot,
		ResponseType: ResponseTypeCommand,
	}
}

// CommandFailed builds a failed command reply. Failures never carry state.
func CommandFailed(message string) Response {
	return Response{
		Success:      false,
		Message:      message,
		ResponseType: ResponseTypeCommand,
	}
}

// SensorStream builds one telemetry sample message.
func SensorStream(values [4]int) Response {
	return Response{
		Success:      true,
		Message:      "Sensor stream data",
		SensorValues: &values,
		ResponseType: ResponseTypeSensors,
	}
}

// Presence builds the periodic full-state broadcast keyed by the current player.
func Presence(currentPlayer string, snapshot State) Response {
	return Response{
		Success:      true,
		Message:      "Active player: " + currentPlayer,
		Data:         &snapshot,
		ResponseType: ResponseTypePresence,
	}
}
