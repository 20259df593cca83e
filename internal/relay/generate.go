package relay

import (
	"context"
	"log/slog"

	"github.com/qmuntal/stateless"

	"github.com/storeloop/danbot/internal/prompt"
)

// Generation states. Each request runs its own machine: the completion either
// lands the history in Done (assistant reply appended, cap enforced) or in
// Recovered (dangling user entry rolled back).
type genState stateless.State

var (
	stateReadyToComplete genState = "ReadyToComplete"
	stateDone            genState = "Done"
	stateRecovered       genState = "Recovered"
)

// Generation triggers.
type genTrigger stateless.Trigger

var (
	triggerGenerate         genTrigger = "Generate"
	triggerCompleted        genTrigger = "Completed"
	triggerCompletionFailed genTrigger = "CompletionFailed"
)

// generate appends the user message to the sender's history, runs the
// persona-plus-history prompt through the completion service, and persists
// the assistant reply. On completion failure the user entry is rolled back as
// a compensating action and the CompletionError is returned for the caller
// to translate into its surface's fixed apology.
func (h *Handler) generate(ctx context.Context, log *slog.Logger, sender, text string) (string, error) {
	h.store.AppendUser(sender, text)
	messages := prompt.Assemble(h.persona, h.store.History(sender), h.maxPairs)

	var (
		reply   string
		failure error
	)

	fsm := stateless.NewStateMachine(stateReadyToComplete)

	fsm.Configure(stateReadyToComplete).
		PermitReentry(triggerGenerate).
		OnEntry(func(ctx context.Context, _ ...any) error {
			out, err := h.completer.Complete(ctx, messages)
			if err != nil {
				failure = err
				return fsm.FireCtx(ctx, triggerCompletionFailed)
			}
			reply = out
			return fsm.FireCtx(ctx, triggerCompleted)
		}).
		Permit(triggerCompleted, stateDone).
		Permit(triggerCompletionFailed, stateRecovered)

	fsm.Configure(stateDone).
		OnEntry(func(ctx context.Context, _ ...any) error {
			h.store.AppendAssistant(sender, reply)
			h.store.Truncate(sender)
			log.Info("reply generated", "sender", sender, "reply", reply)
			return nil
		})

	fsm.Configure(stateRecovered).
		OnEntry(func(ctx context.Context, _ ...any) error {
			h.store.RollbackLastUser(sender)
			log.Warn("completion failed, user entry rolled back", "sender", sender, "error", failure)
			return nil
		})

	if err := fsm.FireCtx(ctx, triggerGenerate); err != nil {
		log.Error("generation state machine error", "sender", sender, "error", err)
		if failure == nil {
			return "", err
		}
	}

	if failure != nil {
		return "", failure
	}
	return reply, nil
}
