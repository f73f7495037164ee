package replay

import (
	"errors"
	"fmt"
)

type CommandAction string

const (
	CommandPlay          CommandAction = "play"
	CommandPause         CommandAction = "pause"
	CommandStop          CommandAction = "stop"
	CommandStepForward   CommandAction = "step_forward"
	CommandStepBackward  CommandAction = "step_backward"
	CommandSeek          CommandAction = "seek"
	CommandSeekTime      CommandAction = "seek_time"
	CommandSetSpeed      CommandAction = "set_speed"
	CommandSetWindowSize CommandAction = "set_window_size"
	CommandToggleFollow  CommandAction = "toggle_follow"
	CommandNextTrade     CommandAction = "next_trade"
	CommandPreviousTrade CommandAction = "previous_trade"
)

var ErrMissingArgument = errors.New("missing command argument")

// Command is the wire form of a controller call, used by the HTTP and websocket handlers.
type Command struct {
	Action     CommandAction `json:"action" validate:"required"`
	Index      *int          `json:"index,omitempty"`
	Timestamp  *int64        `json:"timestamp,omitempty"`
	Speed      *float64      `json:"speed,omitempty"`
	WindowSize *int          `json:"window_size,omitempty"`
}

// Apply runs cmd on c.
func (c *Controller) Apply(cmd Command) error {
	switch cmd.Action {
	case CommandPlay:
		c.Play()
	case CommandPause:
		c.Pause()
	case CommandStop:
		c.Stop()
	case CommandStepForward:
		c.StepForward()
	case CommandStepBackward:
		c.StepBackward()
	case CommandSeek:
		if cmd.Index == nil {
			return fmt.Errorf("%w: index", ErrMissingArgument)
		}
		c.Seek(*cmd.Index)
	case CommandSeekTime:
		if cmd.Timestamp == nil {
			return fmt.Errorf("%w: timestamp", ErrMissingArgument)
		}
		c.SeekTime(*cmd.Timestamp)
	case CommandSetSpeed:
		if cmd.Speed == nil {
			return fmt.Errorf("%w: speed", ErrMissingArgument)
		}
		c.SetSpeed(*cmd.Speed)
	case CommandSetWindowSize:
		if cmd.WindowSize == nil {
			return fmt.Errorf("%w: window_size", ErrMissingArgument)
		}
		c.SetWindowSize(*cmd.WindowSize)
	case CommandToggleFollow:
		c.ToggleFollow()
	case CommandNextTrade:
		c.GoToNextTrade()
	case CommandPreviousTrade:
		c.GoToPreviousTrade()
	default:
		return fmt.Errorf("unknown replay command %q", cmd.Action)
	}
	return nil
}
