package dispatch

import (
	"fmt"
	"strings"
)

// maxCallbackData is the platform limit on inline button payloads.
const maxCallbackData = 64

// Action codes carried in inline button payloads.
const (
	actReminderMenu   = "rm" // list meetings for the reminder toggle
	actReminderShow   = "rs" // show one meeting's reminder state
	actReminderToggle = "rt"
	actMenuClose      = "mx"

	actCancelAsk     = "ca"
	actCancelConfirm = "cy"

	actAgendaSelect  = "as"
	actAgendaReplace = "ar"
	actAgendaKeep    = "ak"
	actAgendaGet     = "ag"
	actNotesSelect   = "ns"
	actNotesReplace  = "nr"
	actNotesKeep     = "nk"
	actNotesGet      = "ng"

	actTaskField    = "tf"
	actTaskStatus   = "ts"
	actTaskAssignee = "tu"
	actTaskSave     = "tv"
	actTaskDiscard  = "tx"
	actTaskEdit     = "te"
	actAssignPick   = "ap"
	actAssignUser   = "au"
	actFeedback     = "fb"
)

// Task fields offered by the draft menu.
const (
	fieldName     = "name"
	fieldSummary  = "summary"
	fieldDueDate  = "due"
	fieldStatus   = "status"
	fieldAssignee = "assignee"
)

// noAssignee is the assignee argument that clears the assignee.
const noAssignee = "none"

// action is a decoded inline button payload.
type action struct {
	Code string
	Args []string
}

// Arg returns the i-th argument or "".
func (a action) Arg(i int) string {
	if i < len(a.Args) {
		return a.Args[i]
	}
	return ""
}

// encodeAction renders code and args as "code:arg1:arg2". It panics when
// the result exceeds the platform limit, which only a programming error
// can cause.
func encodeAction(code string, args ...string) string {
	data := strings.Join(append([]string{code}, args...), ":")
	if len(data) > maxCallbackData {
		panic(fmt.Sprintf("callback data %q exceeds %d bytes", data, maxCallbackData))
	}
	return data
}

func decodeAction(data string) (action, error) {
	if data == "" || len(data) > maxCallbackData {
		return action{}, fmt.Errorf("invalid callback data %q", data)
	}
	parts := strings.Split(data, ":")
	return action{Code: parts[0], Args: parts[1:]}, nil
}
