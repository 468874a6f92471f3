package chat

import (
	"sort"

	"duochat/internal/model"
)

// DeriveView joins the message log with reactions, participants and the
// viewer's annotation rows, drops what the viewer deleted, and orders the
// result by (created_at, id). It is a pure function of its inputs; states
// owned by other users are ignored.
func DeriveView(
	messages []model.Message,
	reactions []model.Reaction,
	states []model.MessageState,
	participants []model.Participant,
	viewerID string,
) []model.MessageView {
	byID := make(map[string]model.Message, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
	}

	people := make(map[string]model.Participant, len(participants))
	for _, p := range participants {
		people[p.ID] = p
	}

	reactionsByMsg := groupReactions(reactions)
	annotations := indexAnnotations(states, viewerID)

	view := make([]model.MessageView, 0, len(messages))
	for _, m := range messages {
		ann := annotations.lookup(m.ID)
		if ann.Deleted().Set() {
			continue
		}

		mv := model.MessageView{
			Message:     m,
			Sender:      participantRef(people, m.SenderID),
			ReplyTo:     resolveReply(byID, people, m),
			Reactions:   reactionsByMsg[m.ID],
			IsImportant: ann.Important().Set(),
		}
		if mv.Reactions == nil {
			mv.Reactions = []model.Reaction{}
		}
		mv.ReactionGroups = summarize(mv.Reactions)
		if ann.Found {
			mv.StateID = ann.State.ID
		}
		view = append(view, mv)
	}

	sort.SliceStable(view, func(i, j int) bool { return view[i].Message.Before(view[j].Message) })
	return view
}

// ImportantVault returns the viewer's important messages in view order.
func ImportantVault(view []model.MessageView) []model.MessageView {
	out := make([]model.MessageView, 0)
	for _, mv := range view {
		if mv.IsImportant {
			out = append(out, mv)
		}
	}
	return out
}

func participantRef(people map[string]model.Participant, id string) *model.Participant {
	p, ok := people[id]
	if !ok {
		return nil
	}
	return &p
}

// resolveReply returns nil for a missing target, a self reference, or a
// target created after the reply.
func resolveReply(byID map[string]model.Message, people map[string]model.Participant, m model.Message) *model.ReplyPreview {
	if m.ReplyToID == nil {
		return nil
	}
	target, ok := byID[*m.ReplyToID]
	if !ok || target.ID == m.ID || target.CreatedAt.After(m.CreatedAt) {
		return nil
	}
	return &model.ReplyPreview{
		ID:         target.ID,
		Sender:     participantRef(people, target.SenderID),
		Content:    target.Content,
		Attachment: target.Attachment,
		CreatedAt:  target.CreatedAt,
	}
}

func groupReactions(reactions []model.Reaction) map[string][]model.Reaction {
	sorted := make([]model.Reaction, len(reactions))
	copy(sorted, reactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := make(map[string][]model.Reaction)
	for _, r := range sorted {
		out[r.MessageID] = append(out[r.MessageID], r)
	}
	return out
}

// summarize counts reactions per emoji in order of first use.
func summarize(reactions []model.Reaction) []model.ReactionGroup {
	groups := make([]model.ReactionGroup, 0)
	pos := make(map[string]int)
	for _, r := range reactions {
		i, ok := pos[r.Emoji]
		if !ok {
			i = len(groups)
			pos[r.Emoji] = i
			groups = append(groups, model.ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Count++
		groups[i].UserIDs = append(groups[i].UserIDs, r.UserID)
	}
	return groups
}
