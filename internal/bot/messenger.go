// Package bot implements the conversational state machine of the voucher
// shop over an abstract Messenger, plus the Telegram adapter binding it to
// the transport runtime.
package bot

import "context"

// Membership mirrors the chat platform's channel membership states.
type Membership string

const (
	MemberMember        Membership = "member"
	MemberAdministrator Membership = "administrator"
	MemberCreator       Membership = "creator"
	MemberLeft          Membership = "left"
	MemberKicked        Membership = "kicked"
)

// Joined reports whether the membership grants access to the shop.
func (m Membership) Joined() bool {
	switch m {
	case MemberMember, MemberAdministrator, MemberCreator:
		return true
	}
	return false
}

// Button is one interactive keyboard button. Action identifies the handler;
// Data carries its payload.
type Button struct {
	Label  string
	Action string
	Data   string
}

// Messenger is the outbound side of the chat transport. The engine talks to
// users exclusively through it, so tests can record instead of send.
type Messenger interface {
	SendText(ctx context.Context, recipientID, text string, kb ...[]Button) error
	SendPhoto(ctx context.Context, recipientID, photoRef, caption string, kb ...[]Button) error
	AnswerInteraction(ctx context.Context, interactionID, note string) error
	GetMembership(ctx context.Context, channelRef, userID string) (Membership, error)
}
