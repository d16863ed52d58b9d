package domain

import "fmt"

// Quote and invoice share the DRAFT→SENT core and diverge afterwards.
// Transitions are monotonic: nothing maps a document backward.
var transitions = map[DocumentKind]map[DocumentStatus][]DocumentStatus{
	KindQuote: {
		StatusDraft:  {StatusSent},
		StatusSent:   {StatusViewed, StatusAccepted, StatusExpired},
		StatusViewed: {StatusAccepted, StatusExpired},
	},
	KindInvoice: {
		StatusDraft: {StatusSent},
		StatusSent:  {StatusPaid, StatusCancelled},
	},
}

var lockedStatuses = map[DocumentKind][]DocumentStatus{
	KindQuote:   {StatusAccepted, StatusExpired},
	KindInvoice: {StatusPaid, StatusCancelled},
}

func CanTransition(kind DocumentKind, from, to DocumentStatus) bool {
	for _, next := range transitions[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the document to the target status or fails with
// ErrInvalidTransition, leaving the document untouched.
func Transition(d *Document, to DocumentStatus) error {
	if !CanTransition(d.Kind, d.Status, to) {
		return WrapError(ErrInvalidTransition, "transition",
			fmt.Errorf("%s %s cannot move from %s to %s", d.Kind, d.Number, d.Status, to))
	}
	d.Status = to
	return nil
}

// IsLockedStatus reports whether a status freezes the pricing tree.
// Enforced at the mutation boundary, not the API layer, so it holds for
// every caller.
func IsLockedStatus(kind DocumentKind, status DocumentStatus) bool {
	for _, s := range lockedStatuses[kind] {
		if s == status {
			return true
		}
	}
	return false
}
