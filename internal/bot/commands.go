package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"memoji/internal/gateway"
	"memoji/internal/policy"
	"memoji/internal/services"
)

// defaultScope is where a save or remove lands when no scope token is
// given: the current group in group chat, personal otherwise.
func defaultScope(actor *policy.ActorContext) policy.PermissionScope {
	if actor.GroupID != "" {
		return policy.ScopeGroup
	}
	return policy.ScopePersonal
}

// scopeOrDefault consumes an optional scope token.
func scopeOrDefault(tokens []string, actor *policy.ActorContext) (policy.PermissionScope, []string, error) {
	if len(tokens) == 0 {
		return defaultScope(actor), tokens, nil
	}
	scope, err := policy.ParseScope(tokens[0])
	if err != nil {
		return defaultScope(actor), tokens, nil // not a scope token, leave it
	}
	return scope, tokens[1:], nil
}

func (b *Bot) handleSave(ctx context.Context, actor *policy.ActorContext, msg *IncomingMessage, args []string) gateway.Message {
	if len(args) == 0 {
		return textReply("usage: save <name> [scope] — attach the image to the same message")
	}
	name := args[0]
	imageURL := msg.ImageURL()
	if imageURL == "" {
		return textReply("no image attached, nothing to save")
	}

	scope, _, _ := scopeOrDefault(args[1:], actor)

	emoji, err := b.emojis.Save(ctx, actor, services.SaveRequest{
		Name:      name,
		Scope:     scope,
		OwnerID:   actor.UserID,
		GroupID:   actor.GroupID,
		SourceURL: imageURL,
		SavedBy:   actor.UserID,
	})
	if err != nil {
		if errors.Is(err, services.ErrNotAllowed) {
			return textReply(fmt.Sprintf("you are not allowed to save into %s scope", scope))
		}
		b.log.Warn("Save of %s failed: %v", name, err)
		return textReply(fmt.Sprintf("failed to save %q, try again later", name))
	}
	return textReply(fmt.Sprintf("saved %q to %s scope", emoji.Name, emoji.Scope))
}

func (b *Bot) handleRecall(ctx context.Context, actor *policy.ActorContext, name string) gateway.Message {
	emoji, err := b.emojis.Find(ctx, actor, name)
	if err != nil {
		// quiet on a miss: a bare word is usually just chat
		return nil
	}

	if url, err := b.emojis.PublicURL(ctx, emoji); err == nil && url != "" {
		return gateway.Message{gateway.ImageURL(url)}
	}
	data, err := b.emojis.Fetch(ctx, emoji)
	if err != nil {
		b.log.Warn("Failed to fetch blob for %s: %v", emoji.ID, err)
		return textReply(fmt.Sprintf("%q exists but its image could not be loaded", name))
	}
	return gateway.Message{gateway.ImageBytes(data)}
}

func (b *Bot) handleRemove(ctx context.Context, actor *policy.ActorContext, args []string) gateway.Message {
	if len(args) == 0 {
		return textReply("usage: remove <name> [scope]")
	}
	name := args[0]
	scope, _, _ := scopeOrDefault(args[1:], actor)

	emoji, err := b.emojis.Remove(ctx, actor, name, scope)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotAllowed):
			return textReply(fmt.Sprintf("you are not allowed to remove from %s scope", scope))
		case errors.Is(err, services.ErrNotFound):
			return textReply(fmt.Sprintf("no emoji named %q in %s scope", name, scope))
		default:
			b.log.Warn("Remove of %s failed: %v", name, err)
			return textReply(fmt.Sprintf("failed to remove %q, try again later", name))
		}
	}
	return textReply(fmt.Sprintf("removed %q from %s scope", emoji.Name, emoji.Scope))
}

func (b *Bot) handleList(ctx context.Context, actor *policy.ActorContext, args []string) gateway.Message {
	scope, _, _ := scopeOrDefault(args, actor)

	emojis, total, err := b.emojis.List(ctx, actor, scope, 1, 50)
	if err != nil {
		if errors.Is(err, services.ErrNotAllowed) {
			return textReply(fmt.Sprintf("you are not allowed to read %s scope", scope))
		}
		b.log.Warn("List of %s failed: %v", scope, err)
		return textReply("failed to list emojis, try again later")
	}
	if total == 0 {
		return textReply(fmt.Sprintf("no emojis saved in %s scope", scope))
	}

	names := make([]string, 0, len(emojis))
	for _, e := range emojis {
		names = append(names, e.Name)
	}
	header := fmt.Sprintf("%d emojis in %s scope", total, scope)
	if int64(len(names)) < total {
		header += fmt.Sprintf(" (showing %d)", len(names))
	}
	return textReply(header + ":\n" + strings.Join(names, ", "))
}
