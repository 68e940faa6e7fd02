package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/dateparse"
	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/platform"
	"github.com/nhle/taskbot/internal/store"
	"github.com/nhle/taskbot/internal/task"
)

// onInteractionCreate routes slash commands and button clicks.
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		if name == "assign" || name == "指示" {
			b.handleAssignSlash(s, i)
		}
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

// interactionUserID resolves the invoking user for both guild and DM
// interactions.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// handleAssignSlash creates one task from the /assign (or /指示) options.
func (b *Bot) handleAssignSlash(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log := b.log.With(
		zap.String("command", "assign"),
		zap.String("correlation_id", uuid.NewString()),
		zap.String("user_id", interactionUserID(i)),
		zap.String("guild_id", i.GuildID),
	)
	ctx := context.Background()

	if i.GuildID == "" {
		b.respondEphemeral(s, i, msgGuildOnly)
		return
	}

	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, o := range i.ApplicationCommandData().Options {
		opts[o.Name] = o
	}
	userOpt, dueOpt, titleOpt := opts["user"], opts["due"], opts["title"]
	if userOpt == nil || dueOpt == nil || titleOpt == nil {
		b.respondEphemeral(s, i, "❌ user / due / title は必須です。")
		return
	}

	assignee := userOpt.UserValue(s)
	title := strings.TrimSpace(titleOpt.StringValue())
	if title == "" {
		b.respondEphemeral(s, i, "❌ タスク名が空です。")
		return
	}
	due, ok := dateparse.Parse(dueOpt.StringValue(), time.Now())
	if !ok {
		b.respondEphemeral(s, i, msgBadDue)
		return
	}

	t := model.Task{
		GuildID:         i.GuildID,
		InstructorID:    interactionUserID(i),
		AssigneeID:      assignee.ID,
		Name:            title,
		Due:             due,
		OriginChannelID: i.ChannelID,
	}
	created, res, err := b.tasks.Assign(ctx, t)
	if err != nil {
		log.Error("task creation failed", zap.Error(err))
		if errors.Is(err, store.ErrReadBack) {
			b.respondEphemeral(s, i, "❌ タスク作成後の読み出しに失敗しました。もう一度お試しください。")
			return
		}
		b.respondEphemeral(s, i, fmt.Sprintf("❌ An error occurred.\n`%s`", errorTag(err)))
		return
	}
	logDeliveryFailures(log, created.ID, res)

	b.respondEphemeral(s, i, fmt.Sprintf("✅ %s にタスクを指示しました。(ID=%d)",
		platform.Mention(assignee.ID), created.ID))
}

// handleComponent decodes a status button click and runs the transition.
// Custom IDs that do not carry our encoding are ignored.
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	action, err := platform.DecodeActionID(i.MessageComponentData().CustomID)
	if err != nil {
		return
	}

	actorID := interactionUserID(i)
	log := b.log.With(
		zap.String("action", string(action.Kind)),
		zap.String("correlation_id", uuid.NewString()),
		zap.Int64("task_id", action.TaskID),
		zap.String("user_id", actorID),
	)
	ctx := context.Background()

	req := task.TransitionRequest{
		TaskID:    action.TaskID,
		ActorID:   actorID,
		Action:    action.Kind,
		ChannelID: i.ChannelID,
		MessageID: i.Message.ID,
	}
	updated, res, err := b.tasks.Transition(ctx, req)
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		b.respondEphemeral(s, i, "❌ タスクが見つかりません。")
		return
	case errors.Is(err, task.ErrNotAssignee):
		b.respondEphemeral(s, i, "❌ あなたは担当者ではありません。")
		return
	case errors.Is(err, task.ErrIllegalTransition):
		b.respondEphemeral(s, i, "❌ この操作は現在の状態では実行できません。")
		return
	case errors.Is(err, store.ErrReadBack):
		b.respondEphemeral(s, i, "❌ 状態は更新されましたが再読込に失敗しました。")
		return
	case err != nil:
		log.Error("transition failed", zap.Error(err))
		b.respondEphemeral(s, i, fmt.Sprintf("❌ An error occurred.\n`%s`", errorTag(err)))
		return
	}
	logDeliveryFailures(log, updated.ID, res)

	// The card was already re-rendered over REST; just release the
	// interaction so the client stops its spinner.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		log.Warn("interaction acknowledge failed", zap.Error(err))
	}
}

// respondEphemeral answers an interaction with a message only the invoker
// can see.
func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Warn("interaction response failed", zap.Error(err))
	}
}
