package bot

import (
	"context"
	"log/slog"
	mrand "math/rand"
	"strings"

	"github.com/m3rciful/vouchershop/core/logger"
	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/service"
	"github.com/m3rciful/vouchershop/internal/session"
)

// Config carries the shop identities the engine needs at dispatch time.
type Config struct {
	// AdminID is the single administrator's canonical user id.
	AdminID string
	// ChannelRef is the channel users must join before verification.
	ChannelRef string
	// AuditChannelID receives order summaries; empty disables it.
	AuditChannelID string
	// PaymentAddress is shown in the payment instructions.
	PaymentAddress string
	// SupportContact is shown in support prompts.
	SupportContact string
}

// Event is one normalized inbound chat event. Exactly one of Text and
// PhotoRef is meaningful for message events; Action identifies callback
// presses.
type Event struct {
	UserID   string
	UserName string

	Text     string
	PhotoRef string

	CallbackID string
	Action     string
	Data       string
}

// Engine is the per-user conversational state machine. It owns the session
// store and serializes each flow into prompts and replies via the Messenger.
type Engine struct {
	cfg      Config
	msgr     Messenger
	sessions *session.Store
	catalog  *service.Catalog
	users    *service.Users
	audit    *service.Audit
	workflow *service.Workflow

	// randInt drives captcha operand generation; swapped out in tests.
	randInt func(n int) int
}

// New builds the engine. The order workflow is attached afterwards because
// it needs the engine as its notifier.
func New(cfg Config, msgr Messenger, sessions *session.Store, catalog *service.Catalog, users *service.Users, audit *service.Audit) *Engine {
	return &Engine{
		cfg:      cfg,
		msgr:     msgr,
		sessions: sessions,
		catalog:  catalog,
		users:    users,
		audit:    audit,
		randInt:  defaultRandInt,
	}
}

// AttachWorkflow wires the order workflow once it exists.
func (e *Engine) AttachWorkflow(w *service.Workflow) {
	e.workflow = w
}

// Sessions exposes the session store to the transport layer for the
// in-progress check.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

func (e *Engine) isAdmin(userID string) bool {
	return userID != "" && userID == e.cfg.AdminID
}

// Main menu labels double as reply keyboard buttons.
const (
	menuBuy     = "🛒 Buy Vouchers"
	menuOrders  = "📦 My Orders"
	menuRecover = "🔑 Recover Codes"
	menuSupport = "🆘 Support"
)

// HandleMessage dispatches one text or photo event. Global interrupts are
// checked before everything else; while a state is active its handler is the
// only destination apart from those interrupts.
func (e *Engine) HandleMessage(ctx context.Context, ev Event) error {
	text := strings.TrimSpace(ev.Text)

	if text == "/cancel" {
		return e.cancel(ctx, ev)
	}
	if e.isAdmin(ev.UserID) && strings.HasPrefix(text, "/msg ") {
		return e.adminDirectMessage(ctx, ev, strings.TrimPrefix(text, "/msg "))
	}

	sess := e.sessions.Get(ev.UserID)
	if sess.State != session.StateIdle {
		if sess.State.Admin() && !e.isAdmin(ev.UserID) {
			e.sessions.Clear(ev.UserID)
			logger.TG.Warn("admin state reached by non-admin",
				slog.String("event", "dispatch.denied"),
				slog.String("user_id", ev.UserID),
				slog.String("state", string(sess.State)),
			)
			return e.msgr.SendText(ctx, ev.UserID, "Access denied.")
		}
		return e.handleState(ctx, ev, sess)
	}

	switch text {
	case "/start":
		return e.startVerification(ctx, ev)
	case "/admin":
		if !e.isAdmin(ev.UserID) {
			return e.msgr.SendText(ctx, ev.UserID, "Access denied.")
		}
		return e.EnterAdminHub(ctx, ev.UserID)
	case menuBuy:
		return e.showCategories(ctx, ev)
	case menuOrders:
		return e.showOrders(ctx, ev)
	case menuRecover:
		return e.promptRecovery(ctx, ev)
	case menuSupport:
		return e.enterSupport(ctx, ev)
	}

	return e.fallback(ctx, ev)
}

// HandleCallback dispatches one button press. The interaction is answered
// first so the client stops its spinner even when the handler fails.
func (e *Engine) HandleCallback(ctx context.Context, ev Event) error {
	if ev.CallbackID != "" {
		_ = e.msgr.AnswerInteraction(ctx, ev.CallbackID, "")
	}

	switch ev.Action {
	case actCancel:
		return e.cancel(ctx, ev)
	case actCategory:
		return e.selectCategory(ctx, ev)
	case actQuantity:
		return e.selectQuantity(ctx, ev)
	case actQuantityCustom:
		return e.promptCustomQuantity(ctx, ev)
	case actApprove, actDecline:
		return e.adminDecision(ctx, ev)
	}
	if strings.HasPrefix(ev.Action, "adm_") {
		return e.adminHubAction(ctx, ev)
	}

	logger.TG.Debug("unknown callback action",
		slog.String("event", "dispatch.unknown"),
		slog.String("action", logger.Sanitize(ev.Action)),
		slog.String("user_id", ev.UserID),
	)
	return nil
}

// handleState routes an event into the active state's handler. Invalid
// input re-enters the same state with a re-prompt; completion or a fatal
// validation failure clears the session.
func (e *Engine) handleState(ctx context.Context, ev Event, sess session.Session) error {
	switch sess.State {
	case session.StateAwaitingCaptcha:
		return e.checkCaptcha(ctx, ev, sess)
	case session.StateAwaitingQuantity:
		return e.readQuantityText(ctx, ev, sess)
	case session.StateAwaitingCustomQuantity:
		return e.readCustomQuantity(ctx, ev, sess)
	case session.StateAwaitingScreenshot:
		return e.readScreenshot(ctx, ev, sess)
	case session.StateAwaitingUTR:
		return e.readUTR(ctx, ev, sess)
	case session.StateAwaitingRecoveryID:
		return e.readRecoveryID(ctx, ev, sess)
	case session.StateInSupport:
		return e.relaySupport(ctx, ev)
	case session.StateAdminAwaitingCategoryValue:
		return e.adminReadCategoryValue(ctx, ev)
	case session.StateAdminAwaitingBasePrice:
		return e.adminReadBasePrice(ctx, ev, sess)
	case session.StateAdminAwaitingTierPrice:
		return e.adminReadTierPrice(ctx, ev, sess)
	case session.StateAdminAwaitingStockCodes:
		return e.adminReadStockCodes(ctx, ev, sess)
	case session.StateAdminAwaitingCodeRemoval:
		return e.adminReadCodeRemoval(ctx, ev)
	case session.StateAdminAwaitingBroadcast:
		return e.adminReadBroadcast(ctx, ev)
	case session.StateAdminAwaitingDMTarget:
		return e.adminReadDMTarget(ctx, ev)
	case session.StateAdminAwaitingDMText:
		return e.adminReadDMText(ctx, ev, sess)
	case session.StateAdminAwaitingBlockTarget:
		return e.adminReadBlockTarget(ctx, ev)
	}

	// Unknown state, treat as stale and reset.
	e.sessions.Clear(ev.UserID)
	return e.fallback(ctx, ev)
}

func (e *Engine) cancel(ctx context.Context, ev Event) error {
	active := e.sessions.InProgress(ev.UserID)
	e.sessions.Clear(ev.UserID)
	if !active {
		return e.msgr.SendText(ctx, ev.UserID, "Nothing to cancel.")
	}
	return e.msgr.SendText(ctx, ev.UserID, "Cancelled.")
}

// fallback answers events no state or command claimed.
func (e *Engine) fallback(ctx context.Context, ev Event) error {
	user, ok, err := e.users.Get(ctx, ev.UserID)
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	if !ok || !user.Verified {
		return e.msgr.SendText(ctx, ev.UserID, "Send /start to begin.")
	}
	return e.sendMainMenu(ctx, ev.UserID)
}

func (e *Engine) sendMainMenu(ctx context.Context, userID string) error {
	kb := [][]Button{
		{{Label: menuBuy}, {Label: menuOrders}},
		{{Label: menuRecover}, {Label: menuSupport}},
	}
	return e.msgr.SendText(ctx, userID, "Choose an option:", kb...)
}

// requireCustomer loads a verified, unblocked user or replies with the
// appropriate refusal.
func (e *Engine) requireCustomer(ctx context.Context, ev Event) (model.User, bool, error) {
	user, ok, err := e.users.Get(ctx, ev.UserID)
	if err != nil {
		return model.User{}, false, e.storeFailure(ctx, ev.UserID, err)
	}
	if !ok || !user.Verified {
		return model.User{}, false, e.msgr.SendText(ctx, ev.UserID, "Please verify first: send /start.")
	}
	if user.Blocked() {
		return model.User{}, false, e.msgr.SendText(ctx, ev.UserID, "Your account is blocked.")
	}
	return user, true, nil
}

// storeFailure reports a collaborator I/O failure: generic retry message to
// the user, alert to the admin, nothing committed.
func (e *Engine) storeFailure(ctx context.Context, userID string, err error) error {
	logger.TG.Error("store call failed",
		slog.String("event", "store.fail"),
		slog.String("user_id", userID),
		slog.String("err", err.Error()),
	)
	if e.cfg.AdminID != "" && userID != e.cfg.AdminID {
		_ = e.msgr.SendText(ctx, e.cfg.AdminID, "Store error: "+err.Error())
	}
	return e.msgr.SendText(ctx, userID, "Something went wrong, please try again.")
}

func defaultRandInt(n int) int {
	if n <= 0 {
		return 0
	}
	return mrand.Intn(n)
}
