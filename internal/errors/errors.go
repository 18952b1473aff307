package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error so callers can branch on what went wrong
// without parsing messages.
type Kind int

const (
	KindUnknown Kind = iota

	// authentication
	KindInvalidCredentials
	KindOtpRequired
	KindOtpInvalid
	KindAccountRestricted
	KindAuthTransport
	KindMalformedResponse
	KindGateClosed
	KindMissingAccount
	KindGameNotInstalled
	KindUnknownBackend

	// provisioning
	KindProvisionTransport
	KindVerificationMismatch
	KindUnpack
	KindPartialDownload

	// launch
	KindMissingWrapper
	KindProcessStart
	KindRegistrySetup
	KindAlreadyRunning
	KindBusy
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindInvalidCredentials:   "invalid credentials",
	KindOtpRequired:          "one-time password required",
	KindOtpInvalid:           "one-time password invalid",
	KindAccountRestricted:    "account restricted",
	KindAuthTransport:        "login transport error",
	KindMalformedResponse:    "unexpected login response",
	KindGateClosed:           "login gate closed",
	KindMissingAccount:       "profile has no account",
	KindGameNotInstalled:     "game not installed",
	KindUnknownBackend:       "unknown login backend",
	KindProvisionTransport:   "download failed",
	KindVerificationMismatch: "verification mismatch",
	KindUnpack:               "unpack failed",
	KindPartialDownload:      "partial download",
	KindMissingWrapper:       "wrapper binary not found",
	KindProcessStart:         "process start failed",
	KindRegistrySetup:        "registry setup failed",
	KindAlreadyRunning:       "game already running",
	KindBusy:                 "launch already in progress",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Family is the stage an error kind belongs to.
type Family int

const (
	FamilyNone Family = iota
	FamilyAuth
	FamilyProvisioning
	FamilyLaunch
)

func (k Kind) Family() Family {
	switch {
	case k >= KindInvalidCredentials && k <= KindUnknownBackend:
		return FamilyAuth
	case k >= KindProvisionTransport && k <= KindPartialDownload:
		return FamilyProvisioning
	case k >= KindMissingWrapper && k <= KindBusy:
		return FamilyLaunch
	}
	return FamilyNone
}

type Error struct {
	Kind      Kind   `json:"kind"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
	Cause     error  `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Component != "" {
		b.WriteString(e.Component)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind, so sentinel values like ErrOtpRequired compare
// equal to any error of the same kind regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsAuth(err error) bool         { return KindOf(err).Family() == FamilyAuth }
func IsProvisioning(err error) bool { return KindOf(err).Family() == FamilyProvisioning }
func IsLaunch(err error) bool       { return KindOf(err).Family() == FamilyLaunch }

// Re-exported so callers only import one errors package.
func Is(err, target error) bool { return errors.Is(err, target) }
func As(err error, target any) bool {
	return errors.As(err, target)
}
