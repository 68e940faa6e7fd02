// Package discord implements platform.Messenger over the Discord API.
// Policy (fallback order, cooldowns, at-most-once reminders) lives with the
// callers; this package only translates the contract into SDK calls.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/platform"
)

// threadAutoArchiveMinutes controls how quickly idle detail threads are
// archived by Discord.
const threadAutoArchiveMinutes = 60

// managementChannelNames are the accepted names for the shared management
// channel, checked in order; the first is used when creating one.
var managementChannelNames = []string{"task-management", "タスク管理"}

// Adapter implements platform.Messenger for Discord.
type Adapter struct {
	session *discordgo.Session
	log     *zap.Logger

	mu         sync.Mutex
	dmChannels map[string]string // user id -> DM channel id
}

// NewAdapter wraps an open discordgo session.
func NewAdapter(session *discordgo.Session, log *zap.Logger) *Adapter {
	return &Adapter{
		session:    session,
		log:        log,
		dmChannels: make(map[string]string),
	}
}

// DisplayName resolves a member's display name, preferring the guild nick,
// then the global name, then the username. Falls back to the bare id when
// the member cannot be fetched.
func (a *Adapter) DisplayName(ctx context.Context, guildID, userID string) string {
	member, err := a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return userID
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil && member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	if member.User != nil {
		return member.User.Username
	}
	return userID
}

// personalChannelName derives the per-member channel name from a display
// name: "to-<name>", lowercased, spaces replaced with dashes.
func personalChannelName(displayName string) string {
	return "to-" + strings.ReplaceAll(strings.ToLower(displayName), " ", "-")
}

// EnsurePersonalChannel finds or creates the private per-member text
// channel: hidden from everyone, visible and writable for the member.
func (a *Adapter) EnsurePersonalChannel(ctx context.Context, guildID, userID string) (string, error) {
	name := personalChannelName(a.DisplayName(ctx, guildID, userID))

	if id, ok := a.findChannel(ctx, guildID, name); ok {
		return id, nil
	}

	ch, err := a.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:  name,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: fmt.Sprintf("%s の個人タスク", a.DisplayName(ctx, guildID, userID)),
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				// The @everyone role id equals the guild id.
				ID:   guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
			{
				ID:    userID,
				Type:  discordgo.PermissionOverwriteTypeMember,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("creating personal channel %s: %w", name, err)
	}
	return ch.ID, nil
}

// EnsureManagementChannel finds or creates the hidden shared management
// channel.
func (a *Adapter) EnsureManagementChannel(ctx context.Context, guildID string) (string, error) {
	for _, name := range managementChannelNames {
		if id, ok := a.findChannel(ctx, guildID, name); ok {
			return id, nil
		}
	}

	ch, err := a.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: managementChannelNames[0],
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				ID:   guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("creating management channel: %w", err)
	}
	return ch.ID, nil
}

// findChannel looks a guild text channel up by name.
func (a *Adapter) findChannel(ctx context.Context, guildID, name string) (string, bool) {
	channels, err := a.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		a.log.Warn("listing guild channels failed",
			zap.String("guild_id", guildID), zap.Error(err))
		return "", false
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == name {
			return ch.ID, true
		}
	}
	return "", false
}

// SendCard posts content with an optional embed and action buttons.
func (a *Adapter) SendCard(
	ctx context.Context,
	channelID, content string,
	card *platform.Card,
	actions []platform.Action,
) (string, error) {
	send := &discordgo.MessageSend{Content: content}
	if card != nil {
		send.Embeds = []*discordgo.MessageEmbed{embedFromCard(card)}
	}
	if comps := componentsFromActions(actions); comps != nil {
		send.Components = comps
	}

	msg, err := a.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("sending to channel %s: %w", channelID, err)
	}
	return msg.ID, nil
}

// SendDirect delivers to the user's DM channel, creating and caching it on
// first use.
func (a *Adapter) SendDirect(
	ctx context.Context,
	userID, content string,
	card *platform.Card,
	actions []platform.Action,
) (string, error) {
	channelID, err := a.dmChannel(ctx, userID)
	if err != nil {
		return "", err
	}
	return a.SendCard(ctx, channelID, content, card, actions)
}

func (a *Adapter) dmChannel(ctx context.Context, userID string) (string, error) {
	a.mu.Lock()
	id, ok := a.dmChannels[userID]
	a.mu.Unlock()
	if ok {
		return id, nil
	}

	ch, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("opening DM channel for %s: %w", userID, err)
	}

	a.mu.Lock()
	a.dmChannels[userID] = ch.ID
	a.mu.Unlock()
	return ch.ID, nil
}

// EditCard replaces the embed and action buttons of an existing message.
func (a *Adapter) EditCard(
	ctx context.Context,
	channelID, messageID string,
	card *platform.Card,
	actions []platform.Action,
) error {
	embeds := []*discordgo.MessageEmbed{embedFromCard(card)}
	comps := componentsFromActions(actions)
	if comps == nil {
		comps = []discordgo.MessageComponent{}
	}

	_, err := a.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     &embeds,
		Components: &comps,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("editing message %s in channel %s: %w", messageID, channelID, err)
	}
	return nil
}

// StartThread creates a thread off a message, or off the channel when
// messageID is empty.
func (a *Adapter) StartThread(ctx context.Context, channelID, messageID, name string) (string, error) {
	var (
		thread *discordgo.Channel
		err    error
	)
	if messageID != "" {
		thread, err = a.session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
			Name:                name,
			AutoArchiveDuration: threadAutoArchiveMinutes,
		}, discordgo.WithContext(ctx))
	} else {
		thread, err = a.session.ThreadStartComplex(channelID, &discordgo.ThreadStart{
			Name:                name,
			Type:                discordgo.ChannelTypeGuildPublicThread,
			AutoArchiveDuration: threadAutoArchiveMinutes,
		}, discordgo.WithContext(ctx))
	}
	if err != nil {
		return "", fmt.Errorf("starting thread in channel %s: %w", channelID, err)
	}
	return thread.ID, nil
}

// ThreadName returns the current title of a thread.
func (a *Adapter) ThreadName(ctx context.Context, threadID string) (string, error) {
	ch, err := a.session.Channel(threadID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetching thread %s: %w", threadID, err)
	}
	return ch.Name, nil
}

// RenameThread replaces a thread's title.
func (a *Adapter) RenameThread(ctx context.Context, threadID, name string) error {
	_, err := a.session.ChannelEdit(threadID, &discordgo.ChannelEdit{
		Name: name,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("renaming thread %s: %w", threadID, err)
	}
	return nil
}

// embedFromCard converts a platform card to a Discord embed.
func embedFromCard(card *platform.Card) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       card.Title,
		Description: card.Description,
		Color:       card.Color,
	}
	for _, f := range card.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if card.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: card.Footer}
	}
	return embed
}

// buttonStyles maps each lifecycle action to its label and button style.
var buttonStyles = map[model.ActionKind]struct {
	label string
	style discordgo.ButtonStyle
}{
	model.ActionAccept:   {"✅ 受託", discordgo.SuccessButton},
	model.ActionDecline:  {"❌ 辞退", discordgo.DangerButton},
	model.ActionComplete: {"📝 完了", discordgo.SuccessButton},
	model.ActionAbandon:  {"⚠️ 問題", discordgo.DangerButton},
	model.ActionUndo:     {"↩️ 戻す", discordgo.SecondaryButton},
}

// componentsFromActions renders action buttons as a single row, or nil
// when there are no actions.
func componentsFromActions(actions []platform.Action) []discordgo.MessageComponent {
	if len(actions) == 0 {
		return nil
	}

	row := discordgo.ActionsRow{}
	for _, action := range actions {
		bs, ok := buttonStyles[action.Kind]
		if !ok {
			continue
		}
		row.Components = append(row.Components, discordgo.Button{
			Label:    bs.label,
			Style:    bs.style,
			CustomID: platform.EncodeActionID(action),
		})
	}
	return []discordgo.MessageComponent{row}
}
