package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/service"
	"github.com/m3rciful/vouchershop/internal/session"
	"github.com/m3rciful/vouchershop/internal/store"
)

type sentMessage struct {
	To    string
	Text  string
	Photo string
	KB    [][]Button
}

// fakeMessenger records outbound traffic instead of sending it.
type fakeMessenger struct {
	membership Membership
	sent       []sentMessage
	answered   []string
}

func (f *fakeMessenger) SendText(_ context.Context, to, text string, kb ...[]Button) error {
	f.sent = append(f.sent, sentMessage{To: to, Text: text, KB: kb})
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, to, ref, caption string, kb ...[]Button) error {
	f.sent = append(f.sent, sentMessage{To: to, Text: caption, Photo: ref, KB: kb})
	return nil
}

func (f *fakeMessenger) AnswerInteraction(_ context.Context, id, _ string) error {
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeMessenger) GetMembership(_ context.Context, _, _ string) (Membership, error) {
	if f.membership == "" {
		return MemberMember, nil
	}
	return f.membership, nil
}

func (f *fakeMessenger) textsTo(id string) []string {
	var out []string
	for _, m := range f.sent {
		if m.To == id {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeMessenger) lastTo(id string) string {
	texts := f.textsTo(id)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type testShop struct {
	engine  *Engine
	msgr    *fakeMessenger
	rs      *store.Memory
	users   *service.Users
	catalog *service.Catalog
	orders  *store.Orders
	cats    *store.Categories
}

const adminID = "1"

func newTestShop(t *testing.T) *testShop {
	t.Helper()

	rs := store.NewMemory()
	msgr := &fakeMessenger{}
	catsRepo := store.NewCategories(rs)
	ordersRepo := store.NewOrders(rs)

	locks := service.NewKeyedMutex()
	audit := service.NewAudit(store.NewLogs(rs))
	catalog := service.NewCatalog(catsRepo, locks)
	users := service.NewUsers(store.NewUsers(rs))

	engine := New(Config{
		AdminID:        adminID,
		ChannelRef:     "@vouchers",
		PaymentAddress: "shop@upi",
	}, msgr, session.NewStore(), catalog, users, audit)
	engine.AttachWorkflow(service.NewWorkflow(ordersRepo, service.NewAllocator(catsRepo, locks), audit, engine))

	// Fixed operands make every captcha 3 + 3.
	engine.randInt = func(int) int { return 2 }

	return &testShop{
		engine:  engine,
		msgr:    msgr,
		rs:      rs,
		users:   users,
		catalog: catalog,
		orders:  ordersRepo,
		cats:    catsRepo,
	}
}

func (s *testShop) verifyUser(t *testing.T, id, name string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.engine.HandleMessage(ctx, Event{UserID: id, UserName: name, Text: "/start"}))
	require.NoError(t, s.engine.HandleMessage(ctx, Event{UserID: id, UserName: name, Text: "6"}))
}

func (s *testShop) seedStock(t *testing.T, value int, codes ...string) string {
	t.Helper()
	ctx := context.Background()
	cat, err := s.catalog.AddCategory(ctx, value, 90)
	require.NoError(t, err)
	if len(codes) > 0 {
		_, err = s.catalog.AppendCodes(ctx, cat.ID, codes)
		require.NoError(t, err)
	}
	return cat.ID
}

// Scenario: a new user verifies via captcha and lands on the main menu.
func TestVerificationFlow(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", UserName: "Alice", Text: "/start"}))
	assert.Contains(t, shop.msgr.lastTo("42"), "3 + 3")

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", UserName: "Alice", Text: "6"}))

	user, ok, err := shop.users.Get(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, user.Verified)
	assert.Equal(t, model.UserActive, user.Status)

	texts := shop.msgr.textsTo("42")
	require.GreaterOrEqual(t, len(texts), 3)
	assert.Contains(t, texts[len(texts)-2], "Verified")
	assert.Contains(t, texts[len(texts)-1], "Choose an option")
	assert.False(t, shop.engine.Sessions().InProgress("42"))
}

func TestCaptchaRegeneratesOnWrongAnswer(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()

	// Operands advance each call so the second challenge differs.
	seq := []int{2, 2, 4, 6}
	calls := 0
	shop.engine.randInt = func(int) int {
		v := seq[calls%len(seq)]
		calls++
		return v
	}

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: "/start"}))
	assert.Contains(t, shop.msgr.lastTo("42"), "3 + 3")

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: "99"}))
	assert.Contains(t, shop.msgr.lastTo("42"), "5 + 7")

	// The old answer is no longer accepted.
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: "6"}))
	_, ok, err := shop.users.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerificationRequiresChannelMembership(t *testing.T) {
	shop := newTestShop(t)
	shop.msgr.membership = MemberLeft
	ctx := context.Background()

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: "/start"}))
	assert.Contains(t, shop.msgr.lastTo("42"), "join")
	assert.False(t, shop.engine.Sessions().InProgress("42"))
}

// Scenario: requesting more than the stock keeps the user in quantity
// selection.
func TestBuyInsufficientStockStaysInQuantitySelection(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")
	catID := shop.seedStock(t, 100, "A", "B", "C")

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: menuBuy}))
	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actCategory, Data: catID}))
	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actQuantity, Data: catID + "|5"}))

	texts := shop.msgr.textsTo("42")
	assert.Contains(t, texts[len(texts)-2], "Only 3 in stock")

	sess := shop.engine.Sessions().Get("42")
	assert.Equal(t, session.StateAwaitingQuantity, sess.State)
	assert.Equal(t, catID, sess.Payload.CategoryID)
}

// Scenario: a user blocked mid-flow still holds quantity buttons from an
// earlier prompt; pressing them must not reach the payment step.
func TestBlockedUserStaleQuantityButtonRejected(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")
	catID := shop.seedStock(t, 100, "A", "B", "C")

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: menuBuy}))
	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actCategory, Data: catID}))

	_, err := shop.users.SetBlocked(ctx, "42", true)
	require.NoError(t, err)

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actQuantity, Data: catID + "|2"}))
	assert.Equal(t, "Your account is blocked.", shop.msgr.lastTo("42"))
	assert.NotEqual(t, session.StateAwaitingScreenshot, shop.engine.Sessions().Get("42").State)

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actQuantityCustom, Data: catID}))
	assert.Equal(t, "Your account is blocked.", shop.msgr.lastTo("42"))
	assert.NotEqual(t, session.StateAwaitingCustomQuantity, shop.engine.Sessions().Get("42").State)
}

// Scenario: full purchase with approval delivers exactly the requested codes.
func TestBuyApprovalDeliversCodes(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")
	catID := shop.seedStock(t, 100, "A", "B", "C", "D")

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: menuBuy}))
	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actCategory, Data: catID}))
	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actQuantity, Data: catID + "|2"}))
	assert.Contains(t, shop.msgr.lastTo("42"), "shop@upi")

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", PhotoRef: "proof-1"}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", UserName: "Alice", Text: "123456789012"}))

	orders, err := shop.orders.ListByUser(ctx, "42")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	order := orders[0]
	assert.Equal(t, model.OrderPending, order.Status)

	// The admin got the proof photo with the review buttons.
	var review sentMessage
	for _, m := range shop.msgr.sent {
		if m.To == adminID && m.Photo == "proof-1" {
			review = m
		}
	}
	require.NotEmpty(t, review.Photo)
	require.Len(t, review.KB, 1)
	assert.Equal(t, actApprove, review.KB[0][0].Action)

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{
		UserID: adminID, CallbackID: "cb1", Action: actApprove, Data: order.ID,
	}))

	approved, _, err := shop.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSuccessful, approved.Status)
	assert.Equal(t, []string{"A", "B"}, approved.Delivered)

	cat, _, err := shop.cats.Get(ctx, catID)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Stock)
	assert.Equal(t, []string{"C", "D"}, cat.Codes)

	delivered := shop.msgr.textsTo("42")
	assert.Contains(t, delivered[len(delivered)-1], "A\nB")
	assert.Contains(t, shop.msgr.answered, "cb1")
}

// Scenario: declining leaves the pool untouched and tells the user.
func TestDeclineLeavesPoolAndNotifiesUser(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")
	catID := shop.seedStock(t, 100, "A", "B")

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actCategory, Data: catID}))
	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actQuantity, Data: catID + "|1"}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", PhotoRef: "proof-2"}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", UserName: "Alice", Text: "123456789012"}))

	orders, err := shop.orders.ListByUser(ctx, "42")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{
		UserID: adminID, Action: actDecline, Data: orders[0].ID,
	}))

	declined, _, err := shop.orders.Get(ctx, orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDeclined, declined.Status)

	cat, _, err := shop.cats.Get(ctx, catID)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Stock)
	assert.Contains(t, shop.msgr.lastTo("42"), "declined")
}

func TestInvalidUTRRepromptsSameState(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")
	catID := shop.seedStock(t, 100, "A")

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actCategory, Data: catID}))
	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actQuantity, Data: catID + "|1"}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", PhotoRef: "proof"}))

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: "not-a-utr"}))
	assert.Equal(t, session.StateAwaitingUTR, shop.engine.Sessions().Get("42").State)
	assert.Contains(t, shop.msgr.lastTo("42"), "12 digits")

	orders, err := shop.orders.ListByUser(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRecoveryFlowEnforcesOwnership(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")
	shop.verifyUser(t, "77", "Eve")
	catID := shop.seedStock(t, 100, "A", "B")

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actCategory, Data: catID}))
	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actQuantity, Data: catID + "|1"}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", PhotoRef: "proof"}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", UserName: "Alice", Text: "123456789012"}))

	orders, err := shop.orders.ListByUser(ctx, "42")
	require.NoError(t, err)
	orderID := orders[0].ID
	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: adminID, Action: actApprove, Data: orderID}))

	// A stranger with the order id gets nothing.
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "77", Text: menuRecover}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "77", Text: orderID}))
	assert.Contains(t, shop.msgr.lastTo("77"), "someone else")
	assert.NotContains(t, shop.msgr.lastTo("77"), "A")

	// The owner recovers the codes.
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: menuRecover}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: orderID}))
	assert.Contains(t, shop.msgr.lastTo("42"), "Codes for order "+orderID)
}

func TestCancelInterruptsAnyState(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")
	catID := shop.seedStock(t, 100, "A")

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actCategory, Data: catID}))
	require.True(t, shop.engine.Sessions().InProgress("42"))

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: "/cancel"}))
	assert.False(t, shop.engine.Sessions().InProgress("42"))
	assert.Contains(t, shop.msgr.lastTo("42"), "Cancelled")
}

func TestNonAdminNeverDispatchedIntoAdminState(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")

	// Even if an admin state somehow exists for the user, it is not honored.
	shop.engine.Sessions().Set("42", session.StateAdminAwaitingBroadcast, session.Payload{})
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: "pwn everyone"}))

	assert.Contains(t, shop.msgr.lastTo("42"), "Access denied")
	assert.False(t, shop.engine.Sessions().InProgress("42"))
}

func TestAdminHubGating(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: "/admin"}))
	assert.Contains(t, shop.msgr.lastTo("42"), "Access denied")

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: adminID, Text: "/admin"}))
	assert.Contains(t, shop.msgr.lastTo(adminID), "Admin console")

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: "42", Action: actAdmBroadcast}))
	assert.Contains(t, shop.msgr.lastTo("42"), "Access denied")
}

func TestAdminCreatesCategoryThroughHub(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: adminID, Action: actAdmAddCat}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: adminID, Text: "500"}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: adminID, Text: "450"}))

	cat, err := shop.catalog.Get(ctx, "500")
	require.NoError(t, err)
	assert.Equal(t, 500, cat.Value)
	price, ok := cat.Prices.Get(model.Tier1)
	require.True(t, ok)
	assert.Equal(t, 450.0, price)
	assert.False(t, shop.engine.Sessions().InProgress(adminID))
}

func TestAdminDirectMessageInterrupt(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: adminID, Text: "/msg 42 your order is on hold"}))
	assert.Equal(t, "your order is on hold", shop.msgr.lastTo("42"))
	assert.Contains(t, shop.msgr.lastTo(adminID), "Sent")

	// Non-admins cannot use the interrupt.
	shop.verifyUser(t, "42", "Alice")
	before := len(shop.msgr.textsTo("99"))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: "/msg 99 hi"}))
	assert.Equal(t, before, len(shop.msgr.textsTo("99")))
}

func TestSupportRelay(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")

	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", Text: menuSupport}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: "42", UserName: "Alice", Text: "where is my order?"}))

	relayed := shop.msgr.lastTo(adminID)
	assert.True(t, strings.Contains(relayed, "where is my order?"), "got %q", relayed)
	assert.True(t, strings.Contains(relayed, "42"), "got %q", relayed)

	// Still in support mode until /cancel.
	assert.Equal(t, session.StateInSupport, shop.engine.Sessions().Get("42").State)
}

func TestBroadcastSkipsBlockedUsers(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.verifyUser(t, "42", "Alice")
	shop.verifyUser(t, "77", "Eve")
	_, err := shop.users.SetBlocked(ctx, "77", true)
	require.NoError(t, err)

	require.NoError(t, shop.engine.HandleCallback(ctx, Event{UserID: adminID, Action: actAdmBroadcast}))
	require.NoError(t, shop.engine.HandleMessage(ctx, Event{UserID: adminID, Text: "sale today"}))

	assert.Equal(t, "sale today", shop.msgr.lastTo("42"))
	for _, text := range shop.msgr.textsTo("77") {
		assert.NotEqual(t, "sale today", text)
	}
	assert.Contains(t, shop.msgr.lastTo(adminID), fmt.Sprintf("Broadcast sent to %d users", 1))
}
