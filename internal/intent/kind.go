// Package intent turns raw NLU responses into typed intent results.
package intent

// Kind is a classified intent the dispatcher knows how to route.
type Kind int

const (
	KindUnknown Kind = iota
	KindScheduleMeeting
	KindMeetingReminder
	KindMeetingNoReminder
	KindStoreAgenda
	KindGetAgenda
	KindStoreNotes
	KindGetNotes
	KindListMeetings
	KindChangeReminder
	KindCancelMeeting
	KindCreateTask
	KindUpdateTask
	KindListTasks
	KindListMyTasks
	KindAssignTask
	KindDate
	KindVote
)

// Intent display names as configured in the NLU agent.
const (
	NameScheduleMeeting   = "meeting.schedule"
	NameMeetingReminder   = "meeting.reminder"
	NameMeetingNoReminder = "meeting.no_reminder"
	NameStoreAgenda       = "meeting.agenda.store"
	NameGetAgenda         = "meeting.agenda.get"
	NameStoreNotes        = "meeting.notes.store"
	NameGetNotes          = "meeting.notes.get"
	NameListMeetings      = "meeting.list"
	NameChangeReminder    = "change_remind"
	NameCancelMeeting     = "meeting.cancel"
	NameCreateTask        = "create_task"
	NameUpdateTask        = "task.update"
	NameListTasks         = "task.list"
	NameListMyTasks       = "task.list_mine"
	NameAssignTask        = "task.assign"
	NameDate              = "date"
	NameVote              = "vote"
)

var kindsByName = map[string]Kind{
	NameScheduleMeeting:   KindScheduleMeeting,
	NameMeetingReminder:   KindMeetingReminder,
	NameMeetingNoReminder: KindMeetingNoReminder,
	NameStoreAgenda:       KindStoreAgenda,
	NameGetAgenda:         KindGetAgenda,
	NameStoreNotes:        KindStoreNotes,
	NameGetNotes:          KindGetNotes,
	NameListMeetings:      KindListMeetings,
	NameChangeReminder:    KindChangeReminder,
	NameCancelMeeting:     KindCancelMeeting,
	NameCreateTask:        KindCreateTask,
	NameUpdateTask:        KindUpdateTask,
	NameListTasks:         KindListTasks,
	NameListMyTasks:       KindListMyTasks,
	NameAssignTask:        KindAssignTask,
	NameDate:              KindDate,
	NameVote:              KindVote,
}

// ParseKind maps an intent display name to its Kind. Unrecognised names
// are KindUnknown.
func ParseKind(name string) Kind {
	return kindsByName[name]
}

func (k Kind) String() string {
	for name, kind := range kindsByName {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// needsInstant reports whether the intent's parameters are a single meeting
// instant.
func (k Kind) needsInstant() bool {
	switch k {
	case KindScheduleMeeting, KindCancelMeeting, KindChangeReminder,
		KindStoreAgenda, KindGetAgenda, KindStoreNotes, KindGetNotes:
		return true
	}
	return false
}
