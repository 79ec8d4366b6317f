package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/chat"
)

// helpKeyboard lists the common actions offered by /help.
var helpKeyboard = [][]string{
	{"Schedule meeting", "List meetings"},
	{"Store notes", "Retrieve notes"},
	{"Create task", "List tasks"},
}

func isCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// parseCommand splits "/name@bot arg" into its name and argument.
func parseCommand(text string) (name, arg string) {
	fields := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(fields) == 0 {
		return "", ""
	}
	name, _, _ = strings.Cut(fields[0], "@")
	return strings.ToLower(name), strings.Join(fields[1:], " ")
}

func (d *Dispatcher) handleCommand(ctx context.Context, t turn, text string) error {
	name, arg := parseCommand(text)
	switch name {
	case "start":
		return d.reply(ctx, t.chatID, fmt.Sprintf(
			"Hi! My name is %s. I'm here to help you to organise your group project "+
				"and providing guidance along the way.\n\nType /help to see what I can do.",
			escape(d.bot.Name)))
	case "help":
		return d.help(ctx, t)
	case "cancel":
		if err := d.tracker.Reset(ctx, t.key); err != nil {
			return err
		}
		_, err := d.replyWith(ctx, t.chatID, textWhatElse, chat.SendOptions{RemoveReply: true})
		return err
	case "suggestions":
		return d.suggestions(ctx, t, arg)
	}
	return nil
}

func (d *Dispatcher) help(ctx context.Context, t turn) error {
	text := "Please check the reply keyboard for some of the things I can do. " +
		"You can either use text or voice messages to chat with me.\n\n"
	if t.chatType.IsGroup() {
		text += d.groupHelp()
	} else {
		text += "You can also add me into a group chat where I can help you " +
			"to manage your group project.\n\n"
	}
	_, err := d.replyWith(ctx, t.chatID, text, chat.SendOptions{Reply: helpKeyboard})
	return err
}

func (d *Dispatcher) groupHelp() string {
	return fmt.Sprintf("To talk to me in group chats, either send your text message that starts with "+
		"@%s, or send your voice message that starts with 'hey %s', "+
		"or reply to a message that I have sent through.\n\n",
		escape(d.bot.Username), escape(d.bot.Name))
}

// suggestions toggles the suggested actions attached to meeting start
// reminders.
func (d *Dispatcher) suggestions(ctx context.Context, t turn, arg string) error {
	var enabled bool
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		team, err := d.engine.EnsureTeam(ctx, t.chatID)
		if err != nil {
			return err
		}
		state := "off"
		if team.SuggestionsEnabled {
			state = "on"
		}
		return d.reply(ctx, t.chatID, fmt.Sprintf(
			"Meeting suggestions are currently <b>%s</b>. Use /suggestions on or /suggestions off to change it.", state))
	}

	if err := d.engine.SetSuggestions(ctx, t.chatID, enabled); err != nil {
		return err
	}
	if enabled {
		return d.reply(ctx, t.chatID, "I'll include suggestions when your meetings start.")
	}
	return d.reply(ctx, t.chatID, "I won't include suggestions when your meetings start.")
}

// greet handles the bot joining a group and members joining a group the
// bot is in.
func (d *Dispatcher) greet(ctx context.Context, t turn, msg chat.Message) error {
	if msg.BotAdded {
		if err := d.greetGroup(ctx, t); err != nil {
			return err
		}
	}

	for _, u := range msg.NewMembers {
		if u.IsBot {
			continue
		}
		if err := d.engine.RegisterMember(ctx, t.chatID, toUser(u)); err != nil {
			return err
		}
		if err := d.reply(ctx, t.chatID, fmt.Sprintf("Welcome %s, I've added you to the team for %s",
			escape(u.FirstName), escape(msg.Title))); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) greetGroup(ctx context.Context, t turn) error {
	admins, err := d.messenger.ChatAdministrators(ctx, t.chatID)
	if err != nil {
		return err
	}
	if _, err := d.engine.EnsureTeam(ctx, t.chatID); err != nil {
		return err
	}

	names := make([]string, 0, len(admins))
	for _, a := range admins {
		if a.IsBot {
			continue
		}
		if err := d.engine.RegisterMember(ctx, t.chatID, toUser(a)); err != nil {
			return err
		}
		names = append(names, escape(a.FirstName))
	}

	if err := d.reply(ctx, t.chatID, fmt.Sprintf(
		"Hello everyone! My name is %s and I've initialised a team for this group chat. "+
			"Invite your team members into this chat and I'll add them onto the team.\n\n"+
			"<i>Note that I've already added the admins (%s) onto the team</i>",
		escape(d.bot.Name), strings.Join(names, ","))); err != nil {
		return err
	}
	if err := d.reply(ctx, t.chatID, d.groupHelp()); err != nil {
		return err
	}
	return d.reply(ctx, t.chatID, "Type /help if you're not sure what I can do")
}

// === Polls ===

// vote asks the sender to create a poll. From a group, the prompt goes to
// the sender's private chat and the finished poll is posted back to the
// group.
func (d *Dispatcher) vote(ctx context.Context, t turn) error {
	target := t.chatID
	if t.chatType.IsGroup() {
		target = t.user.ID
		private := newTurn(t.user.ID, chat.Private, t.user).key
		if err := d.tracker.SetPollTarget(ctx, private, t.chatID); err != nil {
			return err
		}
	}

	_, err := d.replyWith(ctx, target, "You can press the button below to create your own poll",
		chat.SendOptions{PollButton: "Create poll"})
	if apperr.IsUnauthorized(err) && t.chatType.IsGroup() {
		return d.reply(ctx, t.chatID, fmt.Sprintf(
			"I couldn't message you privately, please start a chat with @%s", escape(d.bot.Username)))
	}
	if err != nil {
		return err
	}

	if t.chatType.IsGroup() {
		return d.reply(ctx, t.chatID, "I've messaged you privately to create a poll.")
	}
	return nil
}

// handlePoll forwards a poll created in private to the group that asked
// for it.
func (d *Dispatcher) handlePoll(ctx context.Context, t turn, poll chat.Poll) error {
	if t.chatType.IsGroup() {
		return nil
	}
	target, err := d.tracker.TakePollTarget(ctx, t.key)
	if err != nil {
		return err
	}
	if target == 0 {
		_, err := d.replyWith(ctx, t.chatID, "A new poll has been created", chat.SendOptions{RemoveReply: true})
		return err
	}
	if err := d.messenger.SendPoll(ctx, target, poll); err != nil {
		return err
	}
	_, err = d.replyWith(ctx, t.chatID, "I've created the poll in your group chat.", chat.SendOptions{RemoveReply: true})
	return err
}
