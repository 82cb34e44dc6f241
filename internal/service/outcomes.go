package service

// Outcomes are tagged values handed back to the HTTP layer, which is the
// only place they are translated into statuses and user-visible messages.
// Go errors are reserved for storage and infrastructure failure.

type TokenOutcome string

const (
	TokenValid    TokenOutcome = "valid"
	TokenNotFound TokenOutcome = "not_found"
	TokenExpired  TokenOutcome = "expired"
	TokenUsed     TokenOutcome = "used"
)

type SignupOutcome string

const (
	SignupCreated  SignupOutcome = "created"
	SignupResend   SignupOutcome = "resend"
	SignupReissued SignupOutcome = "reissued-after-reap"
	SignupExists   SignupOutcome = "exists"
	SignupFailed   SignupOutcome = "fail"
)

type LoginOutcome string

const (
	LoginInvalid    LoginOutcome = "invalid"
	LoginUnverified LoginOutcome = "unverified"
	LoginInactive   LoginOutcome = "inactive"
	LoginSuccess    LoginOutcome = "success"
)

type ResetRequestOutcome string

const (
	ResetRequestInvalid    ResetRequestOutcome = "invalid"
	ResetRequestReaped     ResetRequestOutcome = "reaped"
	ResetRequestUnverified ResetRequestOutcome = "unverified"
	ResetRequestSuccess    ResetRequestOutcome = "success"
	ResetRequestFailed     ResetRequestOutcome = "fail"
)

type ResendOutcome string

const (
	ResendInvalid         ResendOutcome = "invalid"
	ResendAlreadyVerified ResendOutcome = "already-verified"
	ResendSuccess         ResendOutcome = "success"
	ResendFailed          ResendOutcome = "fail"
)
