package bot

import (
	"fmt"
	"strings"

	"github.com/bangersociety/banger-link/store"
)

// Action is the kind of button press encoded in a callback payload.
type Action string

const (
	ActionReaction Action = "reaction"
	ActionDownload Action = "download"
)

// Command is a callback payload decoded once at the dispatch boundary, so the
// handlers never deal with the raw string encoding.
type Command struct {
	Action  Action
	Subtype string
	Payload string
}

// ParseCommand decodes "action:subtype:payload". Only the first two ':' act as
// separators; the remainder is the payload, which matters because track keys
// are URLs and contain "://". Returns ok=false on anything malformed.
func ParseCommand(data string) (Command, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 {
		return Command{}, false
	}
	cmd := Command{Action: Action(parts[0]), Subtype: parts[1], Payload: parts[2]}
	if cmd.Payload == "" {
		return Command{}, false
	}
	switch cmd.Action {
	case ActionReaction:
		if cmd.Subtype != string(store.ReactionLike) && cmd.Subtype != string(store.ReactionDislike) {
			return Command{}, false
		}
	case ActionDownload:
	default:
		return Command{}, false
	}
	return cmd, true
}

// ReactionCallback encodes the callback payload for a like/dislike button.
func ReactionCallback(kind store.ReactionKind, trackKey string) string {
	return fmt.Sprintf("%s:%s:%s", ActionReaction, kind, trackKey)
}

// DownloadCallback encodes the callback payload for the download button.
func DownloadCallback(trackKey string) string {
	return fmt.Sprintf("%s:audio:%s", ActionDownload, trackKey)
}
