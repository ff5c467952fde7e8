// Package session tracks the ephemeral conversational state of each user.
// Sessions live only in process memory: a restart drops every in-flight
// flow and the user is simply re-prompted.
package session

import (
	"sync"

	"github.com/m3rciful/vouchershop/internal/model"
)

// State tags the variant a user's conversation is in.
type State string

const (
	StateIdle State = "idle"

	StateAwaitingCaptcha        State = "awaiting_captcha"
	StateAwaitingQuantity       State = "awaiting_quantity"
	StateAwaitingCustomQuantity State = "awaiting_custom_quantity"
	StateAwaitingScreenshot     State = "awaiting_screenshot"
	StateAwaitingUTR            State = "awaiting_utr"
	StateAwaitingRecoveryID     State = "awaiting_recovery_id"
	StateInSupport              State = "in_support"

	StateAdminAwaitingCategoryValue State = "admin_awaiting_category_value"
	StateAdminAwaitingBasePrice     State = "admin_awaiting_base_price"
	StateAdminAwaitingTierPrice     State = "admin_awaiting_tier_price"
	StateAdminAwaitingStockCodes    State = "admin_awaiting_stock_codes"
	StateAdminAwaitingCodeRemoval   State = "admin_awaiting_code_removal"
	StateAdminAwaitingBroadcast     State = "admin_awaiting_broadcast"
	StateAdminAwaitingDMTarget      State = "admin_awaiting_dm_target"
	StateAdminAwaitingDMText        State = "admin_awaiting_dm_text"
	StateAdminAwaitingBlockTarget   State = "admin_awaiting_block_target"
)

// Admin reports whether the state belongs to the admin console flows.
// Events from anyone but the configured admin must never be dispatched
// into these states.
func (s State) Admin() bool {
	switch s {
	case StateAdminAwaitingCategoryValue, StateAdminAwaitingBasePrice,
		StateAdminAwaitingTierPrice, StateAdminAwaitingStockCodes,
		StateAdminAwaitingCodeRemoval, StateAdminAwaitingBroadcast,
		StateAdminAwaitingDMTarget, StateAdminAwaitingDMText,
		StateAdminAwaitingBlockTarget:
		return true
	}
	return false
}

// Payload carries the transient data a state needs for its transition.
// Each transition replaces the payload wholesale.
type Payload struct {
	// CaptchaAnswer is the expected result of the current challenge.
	CaptchaAnswer int

	// Purchase flow.
	CategoryID string
	Quantity   int
	Total      float64
	ProofRef   string

	// Admin flows.
	FaceValue int
	Tier      model.Tier
	TargetID  string
}

// Session is one user's conversation state.
type Session struct {
	State   State
	Payload Payload
}

// Store holds one session per user id, in memory only. Access for a given
// user is serialized by the store's lock; no session ever outlives its flow.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the user's session, or an idle one if none exists.
func (s *Store) Get(userID string) Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[userID]; ok {
		return *sess
	}
	return Session{State: StateIdle}
}

// Set replaces the user's state and payload.
func (s *Store) Set(userID string, state State, payload Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = &Session{State: state, Payload: payload}
}

// Clear removes the user's session entirely.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// InProgress reports whether the user has an active, non-idle state.
func (s *Store) InProgress(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return ok && sess.State != StateIdle
}
