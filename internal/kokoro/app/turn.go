package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/bdobrica/Kokoro/common/trace"
	"github.com/bdobrica/Kokoro/internal/kokoro/chat"
	"github.com/bdobrica/Kokoro/internal/kokoro/commands"
	"github.com/bdobrica/Kokoro/internal/kokoro/soul"
)

// handleMessage routes one incoming room message: !kokoro commands go to the
// command router, anything else becomes a conversational turn for the
// persona watching that room.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msg := evt.Content.AsMessage()
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Body)
	if text == "" {
		return
	}

	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	roomID := evt.RoomID.String()

	response, err := a.router.Route(ctx, text, evt)
	if err == nil {
		// Command output goes out as a notice so clients render it as bot
		// output, not persona speech.
		if response != "" {
			if err := a.matrix.SendNotice(roomID, response); err != nil {
				slog.Error("failed to send command response", "room", roomID, "err", err)
			}
		}
		return
	}
	if !errors.Is(err, commands.ErrNotACommand) {
		// A !kokoro-prefixed command that errored.
		if err2 := a.matrix.SendNotice(roomID, fmt.Sprintf("⚠️ %s", err)); err2 != nil {
			slog.Error("failed to send command error", "room", roomID, "err", err2)
		}
		return
	}

	// Ordinary chat: hand the message to the persona watching this room.
	p := a.personaForRoom(roomID)
	if p == nil {
		return
	}
	select {
	case p.turns <- turnRequest{traceID: trace.FromContext(ctx), roomID: roomID, text: text}:
	default:
		slog.Warn("turn queue full; dropping message",
			"persona", p.card.Persona.ID, "room", roomID, "trace_id", trace.FromContext(ctx))
	}
}

// personaForRoom returns the persona claiming the room, preferring an exact
// room entry over the wildcard claim. Nil when no persona watches the room.
func (a *App) personaForRoom(roomID string) *personaRuntime {
	if id, ok := a.rooms[roomID]; ok {
		return a.personas[id]
	}
	if a.wildcard != "" {
		return a.personas[a.wildcard]
	}
	return nil
}

// personaTurn runs the full pipeline for one message: feel, reflect, reply.
// The soul pipeline always completes; a failing responder downgrades the
// reply to the canned fallback line but never rolls anything back.
func (a *App) personaTurn(ctx context.Context, p *personaRuntime, roomID, text string) {
	id := p.card.Persona.ID
	log := slog.With("persona", id, "room", roomID, "trace_id", trace.FromContext(ctx))

	a.matrix.SetTyping(roomID, true, typingTimeout)
	defer a.matrix.SetTyping(roomID, false, 0)

	// --- 1. Feel -------------------------------------------------------------
	reading := a.analyzer.Analyze(text)
	p.session.Emotions.Apply(reading)
	mood := p.session.Emotions.Mood()

	// --- 2. Reflect ----------------------------------------------------------
	if p.engine != nil {
		res := p.engine.ProcessTurn(ctx, p.session, soul.NewThought(text, reading))
		if res.Checkpoint != nil {
			log.Info("checkpoint reflection",
				"word", res.Checkpoint.Decision.Word,
				"fate", string(res.Checkpoint.Decision.Fate),
				"score", res.Checkpoint.Score)
		}
	}

	// --- 3. Reply ------------------------------------------------------------
	req := a.buildChatRequest(ctx, p, roomID, mood, text)
	p.tracker.Record(roomID, "user", text)

	reply, err := p.responder.Respond(ctx, req)
	if err != nil {
		log.Warn("responder failed; sending fallback reply", "err", err)
		reply = chat.FallbackReply
	}
	if err := a.matrix.SendMessage(roomID, reply); err != nil {
		log.Error("failed to send reply", "err", err)
		return
	}
	p.tracker.Record(roomID, "assistant", reply)
}

// buildChatRequest assembles everything the responder may weave into the
// reply: card prompt, live mood, the thoughts still in short-term memory, a
// handful of golden memories, and the persona's minted vocabulary. The
// history is read before the current message is recorded, so the message
// appears in the request once, as UserText.
func (a *App) buildChatRequest(ctx context.Context, p *personaRuntime, roomID, mood, text string) chat.Request {
	id := p.card.Persona.ID
	req := chat.Request{
		SystemPrompt:   p.card.Chat.SystemPrompt,
		PersonaName:    p.card.Persona.Name,
		Mood:           mood,
		RecentThoughts: p.session.STM.Texts(),
		History:        p.tracker.History(roomID),
		UserText:       text,
	}

	golden, err := p.store.ListGoldenMemories(ctx, goldenPromptLimit)
	if err != nil {
		slog.Warn("failed to load golden memories for prompt", "persona", id, "err", err)
	}
	for _, gm := range golden {
		req.GoldenMemories = append(req.GoldenMemories, gm.Text)
	}

	minted, err := p.store.ListRealizations(ctx, vocabPromptLimit)
	if err != nil {
		slog.Warn("failed to load realizations for prompt", "persona", id, "err", err)
	}
	for _, r := range minted {
		req.Vocabulary = append(req.Vocabulary, chat.VocabWord{Word: r.Word, Definition: r.Definition})
	}
	return req
}
