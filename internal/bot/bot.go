package bot

import (
	"context"
	"strings"

	"memoji/internal/gateway"
	"memoji/internal/policy"
	"memoji/internal/services"
	"memoji/internal/utils/logger"
)

// Replier is the outbound slice of the gateway client.
type Replier interface {
	SendGroupMessage(ctx context.Context, groupID string, msg gateway.Message) error
	SendPrivateMessage(ctx context.Context, userID string, msg gateway.Message) error
}

// Bot is the command surface: it parses chat text into operations and
// routes them to the emoji service and the policy manager. Every
// outcome is reported back as a natural-language reply; there is no
// structured error surface at this boundary.
type Bot struct {
	emojis   *services.EmojiService
	policies *policy.Manager
	replier  Replier
	contexts *ContextBuilder
	log      *logger.Logger
}

func New(emojis *services.EmojiService, policies *policy.Manager, replier Replier, contexts *ContextBuilder) *Bot {
	return &Bot{
		emojis:   emojis,
		policies: policies,
		replier:  replier,
		contexts: contexts,
		log:      logger.New("bot"),
	}
}

// HandleMessage processes one incoming chat message end to end.
func (b *Bot) HandleMessage(ctx context.Context, msg *IncomingMessage) {
	actor := b.contexts.Actor(msg.UserID, msg.GroupID)
	if !b.contexts.Permitted(actor) {
		// silently ignore strangers
		return
	}

	text := msg.Text()
	if text == "" && msg.ImageURL() == "" {
		return
	}

	tokens := strings.Fields(text)
	var reply gateway.Message

	switch {
	case len(tokens) > 0 && tokens[0] == "save":
		reply = b.handleSave(ctx, actor, msg, tokens[1:])
	case len(tokens) > 0 && (tokens[0] == "remove" || tokens[0] == "delete"):
		reply = b.handleRemove(ctx, actor, tokens[1:])
	case len(tokens) > 0 && tokens[0] == "list":
		reply = b.handleList(ctx, actor, tokens[1:])
	case len(tokens) > 0 && tokens[0] == "perm":
		reply = b.handlePerm(ctx, actor, tokens[1:])
	case len(tokens) > 0 && tokens[0] == "help":
		reply = gateway.Message{gateway.Text(helpText)}
	case len(tokens) == 1:
		// a bare word is a recall attempt; stay quiet on a miss so
		// ordinary chatter doesn't trigger replies
		reply = b.handleRecall(ctx, actor, tokens[0])
	}

	if len(reply) == 0 {
		return
	}
	b.send(ctx, msg, reply)
}

func (b *Bot) send(ctx context.Context, msg *IncomingMessage, reply gateway.Message) {
	var err error
	if msg.IsGroup() {
		err = b.replier.SendGroupMessage(ctx, msg.GroupID, reply)
	} else {
		err = b.replier.SendPrivateMessage(ctx, msg.UserID, reply)
	}
	if err != nil {
		b.log.Warn("Failed to deliver reply to %s: %v", msg.UserID, err)
	}
}

func textReply(format string) gateway.Message {
	return gateway.Message{gateway.Text(format)}
}

const helpText = `memoji commands:
  save <name> [scope]        save the attached image under a name
  <name>                     recall a saved image
  remove <name> [scope]      remove a saved image
  list [scope]               list saved names
  perm set <scope> <selector> <bits|action 0/1> [priority]
  perm rules [scope]
  perm remove [scope] [selector] [priority] [all]
scopes: global/group/personal  selectors: -, @id, type:value`
