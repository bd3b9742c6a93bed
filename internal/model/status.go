package model

import "fmt"

// Correction status of an exception.
const (
	CorrectionPending = "Pending"
	CorrectionYes     = "Yes"
	CorrectionNo      = "No"
)

// Review status of a suspicious log entry.
const (
	SuspiciousPending       = "Pending Admin Review"
	SuspiciousAccepted      = "Accepted"
	SuspiciousRejected      = "Rejected"
	SuspiciousUserCorrected = "User Corrected"
)

var correctionTransitions = map[string][]string{
	CorrectionPending: {CorrectionYes, CorrectionNo},
}

var suspiciousTransitions = map[string][]string{
	SuspiciousPending:  {SuspiciousAccepted, SuspiciousRejected},
	SuspiciousRejected: {SuspiciousUserCorrected, SuspiciousPending},
}

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	From, To string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("status change %q -> %q is not allowed", e.From, e.To)
}

func allowed(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckCorrection validates an exception correction-status change.
func CheckCorrection(from, to string) error {
	if !allowed(correctionTransitions, from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// CheckSuspicious validates a review-queue status change.
func CheckSuspicious(from, to string) error {
	if !allowed(suspiciousTransitions, from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
