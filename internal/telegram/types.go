package telegram

// Update is one entry returned by getUpdates or posted to the webhook.
type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type Message struct {
	MessageID      int       `json:"message_id"`
	From           *User     `json:"from,omitempty"`
	Chat           Chat      `json:"chat"`
	Text           string    `json:"text,omitempty"`
	Caption        string    `json:"caption,omitempty"`
	ReplyToMessage *Message  `json:"reply_to_message,omitempty"`
	Document       *Document `json:"document,omitempty"`
	Voice          *Voice    `json:"voice,omitempty"`
	Poll           *Poll     `json:"poll,omitempty"`
	NewChatMembers []User    `json:"new_chat_members,omitempty"`
	GroupCreated   bool      `json:"group_chat_created,omitempty"`
	SupergroupMade bool      `json:"supergroup_chat_created,omitempty"`
}

type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
}

type PollOption struct {
	Text string `json:"text"`
}

type Poll struct {
	ID                    string       `json:"id,omitempty"`
	Question              string       `json:"question"`
	Options               []PollOption `json:"options"`
	IsAnonymous           bool         `json:"is_anonymous"`
	AllowsMultipleAnswers bool         `json:"allows_multiple_answers"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// File is the result of getFile. FilePath is valid for at least one hour.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

// === Outgoing markup ===

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type keyboardButton struct {
	Text        string       `json:"text"`
	RequestPoll *pollRequest `json:"request_poll,omitempty"`
}

type pollRequest struct {
	Type string `json:"type,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard  [][]inlineButton   `json:"inline_keyboard,omitempty"`
	Keyboard        [][]keyboardButton `json:"keyboard,omitempty"`
	ResizeKeyboard  bool               `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard bool               `json:"one_time_keyboard,omitempty"`
	RemoveKeyboard  bool               `json:"remove_keyboard,omitempty"`
	ForceReply      bool               `json:"force_reply,omitempty"`
	Selective       bool               `json:"selective,omitempty"`
}

type responseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

type apiResponse[T any] struct {
	Ok          bool                `json:"ok"`
	Result      T                   `json:"result"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
}
