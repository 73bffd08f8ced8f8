// Package notify abstracts outbound notifications. Delivery is out of scope
// for the service itself; deployments plug in their own sender.
package notify

import "context"

// Invitation describes an invite to announce to its recipient.
type Invitation struct {
	Email         string
	CalendarTitle string
	InviterName   string
}

// Notifier sends user-facing notifications.
type Notifier interface {
	InvitationCreated(ctx context.Context, inv Invitation) error
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) InvitationCreated(context.Context, Invitation) error { return nil }
