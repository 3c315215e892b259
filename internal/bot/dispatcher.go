package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hombenai/herd-bot/internal/broadcast"
	"github.com/hombenai/herd-bot/internal/models"
	"github.com/hombenai/herd-bot/internal/registry"
	"github.com/hombenai/herd-bot/internal/session"
	"github.com/hombenai/herd-bot/internal/vision"
)

// Dispatcher routes inbound events to the right flow based on event type and
// the sender's conversation state. It is transport-agnostic: the Telegram
// adapter feeds it and it answers through the Gateway.
type Dispatcher struct {
	gateway     Gateway
	registry    *registry.Registry
	sessions    *session.Table
	gate        *vision.Gate
	identifier  vision.Identifier
	broadcaster *broadcast.Broadcaster

	// Identifications scoring below minConfidence are reported as "no
	// match". Zero disables the cut-off.
	minConfidence float64

	logger *zap.Logger
}

func NewDispatcher(
	gateway Gateway,
	reg *registry.Registry,
	sessions *session.Table,
	gate *vision.Gate,
	identifier vision.Identifier,
	broadcaster *broadcast.Broadcaster,
	minConfidence float64,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		gateway:       gateway,
		registry:      reg,
		sessions:      sessions,
		gate:          gate,
		identifier:    identifier,
		broadcaster:   broadcaster,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// OnCommand handles /start, /menu, /add_cow, /list_cows and /identify.
func (d *Dispatcher) OnCommand(ctx context.Context, from Identity, name string) {
	if !d.touchUser(ctx, from) {
		return
	}

	switch name {
	case "start", "menu":
		d.send(ctx, from.ID, replyMenu, menuActions())
	case "add_cow":
		d.sessions.AwaitName(from.ID)
		d.send(ctx, from.ID, replyAskName, nil)
	case "list_cows":
		d.listAnimals(ctx, from)
	case "identify":
		d.send(ctx, from.ID, replyAskIdentify, nil)
	default:
		d.send(ctx, from.ID, replyUnknownCmd, nil)
	}
}

// OnText stores the pending name when one is awaited; any other text in any
// other state gets the generic hint without a state change.
func (d *Dispatcher) OnText(ctx context.Context, from Identity, text string) {
	if !d.touchUser(ctx, from) {
		return
	}

	if d.sessions.Get(from.ID).State == session.StateAwaitingName {
		d.sessions.SetPendingName(from.ID, strings.TrimSpace(text))
		d.send(ctx, from.ID, replyAskPhoto, nil)
		return
	}
	d.send(ctx, from.ID, replyDontFollow, nil)
}

// OnPhoto runs the species gate first; an accepted photo then either
// completes a pending enrollment or runs the identify flow, depending on
// the sender's conversation state.
func (d *Dispatcher) OnPhoto(ctx context.Context, from Identity, photoRef string, image []byte) {
	if !d.touchUser(ctx, from) {
		return
	}

	ok, err := d.gate.Accept(ctx, image)
	if err != nil {
		d.logger.Error("species gate unavailable",
			zap.Error(err),
			zap.String("user_id", from.ID))
		d.send(ctx, from.ID, replyTryAgain, nil)
		return
	}
	if !ok {
		// Rejection keeps the conversation state: a pending enrollment
		// survives and the user can just send a better photo.
		d.send(ctx, from.ID, replyNotACow, nil)
		return
	}

	classID, score, err := d.identifier.Identify(ctx, image)
	if err != nil {
		d.logger.Error("identifier unavailable",
			zap.Error(err),
			zap.String("user_id", from.ID))
		d.send(ctx, from.ID, replyTryAgain, nil)
		return
	}

	if sess := d.sessions.Get(from.ID); sess.State == session.StateAwaitingPhoto {
		d.finishEnrollment(ctx, from, sess.PendingName, classID, photoRef)
		return
	}
	d.identify(ctx, from, classID, score)
}

// OnButton handles inline-keyboard presses: the menu actions plus the
// remove_<id> / missing_<id> payloads attached to listed animals.
func (d *Dispatcher) OnButton(ctx context.Context, from Identity, actionID string) {
	if !d.touchUser(ctx, from) {
		return
	}

	switch {
	case actionID == actionAddCow:
		d.sessions.AwaitName(from.ID)
		d.send(ctx, from.ID, replyAskName, nil)
	case actionID == actionListCows:
		d.listAnimals(ctx, from)
	case actionID == actionIdentify:
		d.send(ctx, from.ID, replyAskIdentify, nil)
	case strings.HasPrefix(actionID, actionRemovePrefix):
		d.removeAnimal(ctx, from, strings.TrimPrefix(actionID, actionRemovePrefix))
	case strings.HasPrefix(actionID, actionMissingPrefix):
		d.markMissing(ctx, from, strings.TrimPrefix(actionID, actionMissingPrefix))
	default:
		d.logger.Warn("unrecognized button payload",
			zap.String("user_id", from.ID),
			zap.String("action_id", actionID))
		d.send(ctx, from.ID, replyDontFollow, nil)
	}
}

func (d *Dispatcher) finishEnrollment(ctx context.Context, from Identity, pendingName, classID, photoRef string) {
	animal, err := d.registry.Enroll(ctx, from.ID, classID, pendingName, photoRef)
	switch {
	case errors.Is(err, registry.ErrClassTaken):
		// The model mapped this photo onto another member's animal. Keep the
		// pending state so a different photo can still finish the enrollment.
		d.send(ctx, from.ID, replyClassTaken, nil)
		return
	case err != nil:
		d.logger.Error("failed to enroll animal",
			zap.Error(err),
			zap.String("user_id", from.ID),
			zap.String("animal_id", classID))
		d.send(ctx, from.ID, replySomethingBad, nil)
		return
	}

	d.sessions.Reset(from.ID)
	d.logger.Info("animal enrolled",
		zap.String("user_id", from.ID),
		zap.String("animal_id", animal.ID),
		zap.String("tag", animal.Tag))
	d.send(ctx, from.ID, fmt.Sprintf("Cow %s has been added successfully! 🎉", animal.Name), nil)
}

func (d *Dispatcher) identify(ctx context.Context, from Identity, classID string, score float64) {
	if score < d.minConfidence {
		d.send(ctx, from.ID, replyUnknownCow, nil)
		return
	}
	animal, ownerName, ok := d.registry.Lookup(classID)
	if !ok {
		d.send(ctx, from.ID, replyUnknownCow, nil)
		return
	}
	d.send(ctx, from.ID, fmt.Sprintf("Cow identified with %.0f%% confidence!\nName: %s\nOwner: %s",
		score*100, animal.Name, ownerName), nil)
}

func (d *Dispatcher) listAnimals(ctx context.Context, from Identity) {
	animals, err := d.registry.List(ctx, from.ID)
	if err != nil {
		d.logger.Error("failed to list animals",
			zap.Error(err),
			zap.String("user_id", from.ID))
		d.send(ctx, from.ID, replySomethingBad, nil)
		return
	}
	if len(animals) == 0 {
		d.send(ctx, from.ID, replyNoCows, nil)
		return
	}
	for _, a := range animals {
		caption := "Name: " + a.Name
		if err := d.gateway.SendPhoto(ctx, from.ID, a.PhotoRef, caption, animalActions(a.ID)); err != nil {
			d.logger.Error("failed to send animal card",
				zap.Error(err),
				zap.String("user_id", from.ID),
				zap.String("animal_id", a.ID))
		}
	}
}

func (d *Dispatcher) removeAnimal(ctx context.Context, from Identity, animalID string) {
	err := d.registry.Remove(ctx, from.ID, animalID)
	switch {
	case errors.Is(err, registry.ErrNotOwner), errors.Is(err, registry.ErrUnknownAnimal):
		d.send(ctx, from.ID, replyNotYourCow, nil)
	case err != nil:
		d.logger.Error("failed to remove animal",
			zap.Error(err),
			zap.String("user_id", from.ID),
			zap.String("animal_id", animalID))
		d.send(ctx, from.ID, replySomethingBad, nil)
	default:
		d.send(ctx, from.ID, replyRemoved, nil)
	}
}

func (d *Dispatcher) markMissing(ctx context.Context, from Identity, animalID string) {
	animal, newly, err := d.registry.MarkMissing(ctx, from.ID, animalID)
	switch {
	case errors.Is(err, registry.ErrNotOwner), errors.Is(err, registry.ErrUnknownAnimal):
		d.send(ctx, from.ID, replyNotYourCow, nil)
		return
	case err != nil:
		d.logger.Error("failed to mark animal missing",
			zap.Error(err),
			zap.String("user_id", from.ID),
			zap.String("animal_id", animalID))
		d.send(ctx, from.ID, replySomethingBad, nil)
		return
	}
	if !newly {
		d.send(ctx, from.ID, replyAlreadyFlag, nil)
		return
	}

	d.send(ctx, from.ID, replyMissingFlagOK, nil)

	// The registry mutation is already durable; delivery is best effort.
	reporter := models.User{ID: from.ID, Name: from.Name}
	report := d.broadcaster.MissingAlert(ctx, animal, reporter, d.registry.Users())
	if report.Err != nil {
		d.logger.Warn("missing alert delivered partially",
			zap.Error(report.Err),
			zap.String("animal_id", animal.ID),
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed))
	}
}

// touchUser creates or refreshes the sender's registry record. Every inbound
// event refreshes the display name.
func (d *Dispatcher) touchUser(ctx context.Context, from Identity) bool {
	if err := d.registry.UpsertUser(ctx, from.ID, from.Name); err != nil {
		d.logger.Error("failed to upsert user",
			zap.Error(err),
			zap.String("user_id", from.ID))
		d.send(ctx, from.ID, replySomethingBad, nil)
		return false
	}
	return true
}

func (d *Dispatcher) send(ctx context.Context, userID, text string, actions []Action) {
	if err := d.gateway.SendText(ctx, userID, text, actions); err != nil {
		d.logger.Error("failed to send message",
			zap.Error(err),
			zap.String("user_id", userID))
	}
}
