package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/store"
)

type recordingNotifier struct {
	adminOrders []string
	delivered   []string
	declined    []string
	alerts      []string
}

func (r *recordingNotifier) NotifyAdminNewOrder(_ context.Context, o model.Order, _ string) error {
	r.adminOrders = append(r.adminOrders, o.ID)
	return nil
}

func (r *recordingNotifier) NotifyUserDelivered(_ context.Context, o model.Order) error {
	r.delivered = append(r.delivered, o.ID)
	return nil
}

func (r *recordingNotifier) NotifyUserDeclined(_ context.Context, o model.Order) error {
	r.declined = append(r.declined, o.ID)
	return nil
}

func (r *recordingNotifier) AlertAdmin(_ context.Context, text string) error {
	r.alerts = append(r.alerts, text)
	return nil
}

type workflowFixture struct {
	rs       store.RowStore
	cats     *store.Categories
	orders   *store.Orders
	notifier *recordingNotifier
	wf       *Workflow
}

func newWorkflowFixture(t *testing.T, rs store.RowStore, codes ...string) *workflowFixture {
	t.Helper()
	if rs == nil {
		rs = store.NewMemory()
	}
	f := &workflowFixture{
		rs:       rs,
		cats:     store.NewCategories(rs),
		orders:   store.NewOrders(rs),
		notifier: &recordingNotifier{},
	}
	cat := model.Category{
		ID:     "100",
		Value:  100,
		Prices: model.NewPriceTable(90),
		Stock:  len(codes),
		Codes:  codes,
	}
	require.NoError(t, f.cats.Create(context.Background(), cat))

	alloc := NewAllocator(f.cats, nil)
	audit := NewAudit(store.NewLogs(rs))
	f.wf = NewWorkflow(f.orders, alloc, audit, f.notifier)
	return f
}

func buyer() model.User {
	return model.User{ID: "42", Name: "Alice", Status: model.UserActive, Verified: true}
}

func TestSubmitCreatesPendingOrder(t *testing.T) {
	f := newWorkflowFixture(t, nil, "AAA", "BBB", "CCC")
	ctx := context.Background()

	order, err := f.wf.Submit(ctx, buyer(), "100", 2, 180, "123456789012", "photo-1")
	require.NoError(t, err)

	assert.Len(t, order.ID, 13)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Empty(t, order.Delivered)
	assert.Equal(t, []string{order.ID}, f.notifier.adminOrders)

	// No inventory is reserved at submission time.
	cat, _, err := f.cats.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 3, cat.Stock)

	stored, ok, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.OrderPending, stored.Status)
}

func TestSubmitRejectsBadUTR(t *testing.T) {
	f := newWorkflowFixture(t, nil, "AAA")
	ctx := context.Background()

	for _, utr := range []string{"", "12345678901", "1234567890123", "12345678901a", "12 34567890 1"} {
		_, err := f.wf.Submit(ctx, buyer(), "100", 1, 90, utr, "")
		assert.ErrorIs(t, err, ErrInvalidUTR, "utr %q", utr)
	}
}

func TestOrderIDAlphanumeric(t *testing.T) {
	for i := 0; i < 50; i++ {
		id, err := NewOrderID()
		require.NoError(t, err)
		require.Len(t, id, 13)
		for _, r := range id {
			ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			assert.True(t, ok, "id %q holds %q", id, r)
		}
	}
}

func TestOrderIDDiscardsUnmappableBytes(t *testing.T) {
	// 26 bytes past the rejection threshold, then the bytes for "ABCDEFGHIJKLM".
	input := make([]byte, 0, 52)
	for i := 0; i < 26; i++ {
		input = append(input, 255)
	}
	for i := 0; i < 26; i++ {
		input = append(input, byte(i))
	}

	id, err := orderIDFrom(bytes.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJKLM", id)
}

func TestApproveDeliversExactlyOnce(t *testing.T) {
	f := newWorkflowFixture(t, nil, "AAA", "BBB", "CCC", "DDD")
	ctx := context.Background()

	order, err := f.wf.Submit(ctx, buyer(), "100", 2, 180, "123456789012", "")
	require.NoError(t, err)

	approved, err := f.wf.Approve(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSuccessful, approved.Status)
	assert.Equal(t, []string{"AAA", "BBB"}, approved.Delivered)
	assert.Equal(t, []string{order.ID}, f.notifier.delivered)

	cat, _, err := f.cats.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Stock)

	// Second approval is rejected and deducts nothing.
	_, err = f.wf.Approve(ctx, order.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	cat, _, err = f.cats.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Stock)
	assert.Equal(t, []string{order.ID}, f.notifier.delivered)
}

func TestApproveInsufficientStock(t *testing.T) {
	f := newWorkflowFixture(t, nil, "AAA")
	ctx := context.Background()

	order, err := f.wf.Submit(ctx, buyer(), "100", 3, 270, "123456789012", "")
	require.NoError(t, err)

	_, err = f.wf.Approve(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	stored, _, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, stored.Status)
}

func TestDeclineLeavesPoolUntouched(t *testing.T) {
	f := newWorkflowFixture(t, nil, "AAA", "BBB")
	ctx := context.Background()

	order, err := f.wf.Submit(ctx, buyer(), "100", 1, 90, "123456789012", "")
	require.NoError(t, err)

	declined, err := f.wf.Decline(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDeclined, declined.Status)
	assert.Equal(t, []string{order.ID}, f.notifier.declined)

	cat, _, err := f.cats.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Stock)

	_, err = f.wf.Decline(ctx, order.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	_, err = f.wf.Approve(ctx, order.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestDecisionOnMissingOrder(t *testing.T) {
	f := newWorkflowFixture(t, nil, "AAA")
	ctx := context.Background()

	_, err := f.wf.Approve(ctx, "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = f.wf.Decline(ctx, "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRecoverOwnershipAndReadiness(t *testing.T) {
	f := newWorkflowFixture(t, nil, "AAA", "BBB")
	ctx := context.Background()

	order, err := f.wf.Submit(ctx, buyer(), "100", 1, 90, "123456789012", "")
	require.NoError(t, err)

	// Pending order: owner gets NotReady, stranger gets NotOwner.
	_, err = f.wf.Recover(ctx, order.ID, "42")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = f.wf.Recover(ctx, order.ID, "99")
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.wf.Approve(ctx, order.ID)
	require.NoError(t, err)

	codes, err := f.wf.Recover(ctx, order.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, codes)

	// Ownership still enforced after delivery.
	_, err = f.wf.Recover(ctx, order.ID, "99")
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.wf.Recover(ctx, "missing", "42")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// slowStore stretches order reads so overlapping decisions on the same
// order actually overlap.
type slowStore struct {
	store.RowStore
	delay time.Duration
}

func (s *slowStore) ListRows(ctx context.Context, table string) ([]store.Row, error) {
	if table == store.TableOrders {
		time.Sleep(s.delay)
	}
	return s.RowStore.ListRows(ctx, table)
}

func TestApproveConcurrentDuplicateDeductsOnce(t *testing.T) {
	slow := &slowStore{RowStore: store.NewMemory(), delay: 20 * time.Millisecond}
	f := newWorkflowFixture(t, slow, "AAA", "BBB", "CCC", "DDD")
	ctx := context.Background()

	order, err := f.wf.Submit(ctx, buyer(), "100", 2, 180, "123456789012", "")
	require.NoError(t, err)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.wf.Approve(ctx, order.ID)
			errs <- err
		}()
	}
	first, second := <-errs, <-errs

	// Exactly one approval wins; the loser sees the processed order.
	if first == nil {
		assert.ErrorIs(t, second, ErrAlreadyProcessed)
	} else {
		assert.ErrorIs(t, first, ErrAlreadyProcessed)
		require.NoError(t, second)
	}

	cat, _, err := f.cats.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Stock)
	assert.Equal(t, []string{order.ID}, f.notifier.delivered)

	stored, _, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSuccessful, stored.Status)
	assert.Equal(t, []string{"AAA", "BBB"}, stored.Delivered)
}

// flakyStore fails order updates to simulate the second write of an
// approval dying after the pool write succeeded.
type flakyStore struct {
	store.RowStore
	failUpdates bool
}

func (f *flakyStore) UpdateRow(ctx context.Context, table, matchCol, matchVal string, patch map[string]string) (bool, error) {
	if f.failUpdates && table == store.TableOrders {
		return false, errors.New("store blew up")
	}
	return f.RowStore.UpdateRow(ctx, table, matchCol, matchVal, patch)
}

func TestApproveFlagsInconsistencyWhenOrderWriteFails(t *testing.T) {
	flaky := &flakyStore{RowStore: store.NewMemory()}
	f := newWorkflowFixture(t, flaky, "AAA", "BBB")
	ctx := context.Background()

	order, err := f.wf.Submit(ctx, buyer(), "100", 1, 90, "123456789012", "")
	require.NoError(t, err)

	flaky.failUpdates = true
	_, err = f.wf.Approve(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInconsistentState)

	// The pool shrank, the admin was alerted, and the user was not told
	// the order succeeded.
	cat, _, err := f.cats.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Stock)
	assert.NotEmpty(t, f.notifier.alerts)
	assert.Empty(t, f.notifier.delivered)
}
