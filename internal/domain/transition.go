package domain

import (
	"fmt"
	"strings"
)

// Role identifies the kind of actor requesting a transition.
type Role string

const (
	RolePartner       Role = "samsung-partners"
	RoleSentinelAdmin Role = "samsung-sentinel-admin"
	RoleServiceCenter Role = "service-center"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RolePartner, RoleSentinelAdmin, RoleServiceCenter:
		return true
	}
	return false
}

func ParseRoleFromString(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: invalid role %q", ErrValidation, s)
	}
	return r, nil
}

// Transition names a requested lifecycle change.
type Transition string

const (
	TransitionApprove          Transition = "approve"
	TransitionReject           Transition = "reject"
	TransitionStartRepair      Transition = "start_repair"
	TransitionComplete         Transition = "complete"
	TransitionAuthorizePayment Transition = "authorize_payment"
	TransitionExecutePayment   Transition = "execute_payment"
)

func (t Transition) String() string { return string(t) }

func (t Transition) IsValid() bool {
	_, ok := transitionRules[t]
	return ok
}

func ParseTransitionFromString(s string) (Transition, error) {
	t := Transition(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid transition %q", ErrValidation, s)
	}
	return t, nil
}

type transitionRule struct {
	from  ClaimState
	to    ClaimState
	roles []Role
	// past holds states that can only be reached after this transition was applied.
	past []ClaimState
	verb string
}

var (
	statePending      = ClaimState{Status: StatusPending, PaymentStatus: PaymentUnpaid}
	stateApproved     = ClaimState{Status: StatusApproved, PaymentStatus: PaymentUnpaid}
	stateRejected     = ClaimState{Status: StatusRejected, PaymentStatus: PaymentUnpaid}
	stateInProgress   = ClaimState{Status: StatusInProgress, PaymentStatus: PaymentUnpaid}
	stateUnpaid       = ClaimState{Status: StatusCompleted, PaymentStatus: PaymentUnpaid}
	stateAuthorized   = ClaimState{Status: StatusCompleted, PaymentStatus: PaymentAuthorized}
	statePaid         = ClaimState{Status: StatusCompleted, PaymentStatus: PaymentPaid}
	reviewerRoles     = []Role{RolePartner, RoleSentinelAdmin}
	serviceCenterOnly = []Role{RoleServiceCenter}
	adminOnly         = []Role{RoleSentinelAdmin}
)

var transitionRules = map[Transition]transitionRule{
	TransitionApprove: {
		from: statePending, to: stateApproved, roles: reviewerRoles, verb: "approve",
		past: []ClaimState{stateInProgress, stateUnpaid, stateAuthorized, statePaid},
	},
	TransitionReject: {
		from: statePending, to: stateRejected, roles: reviewerRoles, verb: "reject",
	},
	TransitionStartRepair: {
		from: stateApproved, to: stateInProgress, roles: serviceCenterOnly, verb: "start repair on",
		past: []ClaimState{stateUnpaid, stateAuthorized, statePaid},
	},
	TransitionComplete: {
		from: stateInProgress, to: stateUnpaid, roles: serviceCenterOnly, verb: "complete",
		past: []ClaimState{stateAuthorized, statePaid},
	},
	TransitionAuthorizePayment: {
		from: stateUnpaid, to: stateAuthorized, roles: adminOnly, verb: "authorize payment for",
		past: []ClaimState{statePaid},
	},
	TransitionExecutePayment: {
		from: stateAuthorized, to: statePaid, roles: adminOnly, verb: "execute payment for",
	},
}

// Decision is the outcome of validating a transition request.
type Decision struct {
	Next    ClaimState
	Allowed bool
	NoOp    bool
	Reason  string
}

// ValidateTransition decides whether role may apply t to a claim in current.
// It has no side effects.
func ValidateTransition(current ClaimState, t Transition, role Role) Decision {
	rule, ok := transitionRules[t]
	if !ok {
		return deny(current, fmt.Sprintf("unknown transition %q", t))
	}
	if !role.IsValid() {
		return deny(current, fmt.Sprintf("unknown role %q", role))
	}
	if !containsRole(rule.roles, role) {
		return deny(current, fmt.Sprintf("role %s not permitted to %s a claim", role, rule.verb))
	}

	if current == rule.to || containsState(rule.past, current) {
		d := deny(current, alreadyAppliedReason(t, current))
		d.NoOp = true
		return d
	}

	if current != rule.from {
		if t == TransitionExecutePayment && current == stateUnpaid {
			return deny(current, "payment must be authorized before it is executed")
		}
		return deny(current, fmt.Sprintf("cannot %s %s claim", rule.verb, withArticle(describeState(current))))
	}

	return Decision{Next: rule.to, Allowed: true}
}

// RequiresReason reports whether t needs a non-empty rejection reason.
func (t Transition) RequiresReason() bool {
	return t == TransitionReject
}

// RequiresTransactionRef reports whether t needs a bank transaction reference.
func (t Transition) RequiresTransactionRef() bool {
	return t == TransitionExecutePayment
}

func deny(current ClaimState, reason string) Decision {
	return Decision{Next: current, Reason: reason}
}

func alreadyAppliedReason(t Transition, current ClaimState) string {
	switch t {
	case TransitionApprove:
		return "claim has already been approved"
	case TransitionReject:
		return "claim is already rejected"
	case TransitionStartRepair:
		return "repair has already started"
	case TransitionComplete:
		return "claim is already completed"
	case TransitionAuthorizePayment:
		if current.PaymentStatus == PaymentPaid {
			return "payment is already executed"
		}
		return "payment is already authorized"
	case TransitionExecutePayment:
		return "payment is already executed"
	}
	return "transition already applied"
}

func describeState(s ClaimState) string {
	if s.Status == StatusInProgress {
		return "in-progress"
	}
	return s.Status.String()
}

func withArticle(word string) string {
	if word != "" && strings.ContainsRune("aeiou", rune(word[0])) {
		return "an " + word
	}
	return "a " + word
}

func containsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func containsState(states []ClaimState, s ClaimState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}
