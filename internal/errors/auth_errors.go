package errors

var (
	ErrInvalidCredentials = New(KindInvalidCredentials, "", nil)
	ErrOtpRequired        = New(KindOtpRequired, "", nil)
	ErrOtpInvalid         = New(KindOtpInvalid, "", nil)
	ErrAccountRestricted  = New(KindAccountRestricted, "", nil)
	ErrAuthTransport      = New(KindAuthTransport, "", nil)
	ErrMalformedResponse  = New(KindMalformedResponse, "", nil)
	ErrGateClosed         = New(KindGateClosed, "", nil)
	ErrMissingAccount     = New(KindMissingAccount, "", nil)
	ErrGameNotInstalled   = New(KindGameNotInstalled, "", nil)
	ErrUnknownBackend     = New(KindUnknownBackend, "", nil)
)

func InvalidCredentials(message string) *Error {
	if message == "" {
		message = "invalid username or password"
	}
	return New(KindInvalidCredentials, message, nil)
}

func OtpRequired() *Error {
	return New(KindOtpRequired, "this account requires a one-time password", nil)
}

func OtpInvalid(message string) *Error {
	return New(KindOtpInvalid, message, nil)
}

func AccountRestricted(message string) *Error {
	return New(KindAccountRestricted, message, nil)
}

func AuthTransport(step string, cause error) *Error {
	return &Error{Kind: KindAuthTransport, Component: step, Message: "request failed", Cause: cause}
}

func MalformedResponse(step string, message string) *Error {
	return &Error{Kind: KindMalformedResponse, Component: step, Message: message}
}

func GateClosed() *Error {
	return New(KindGateClosed, "the login gate is closed, servers may be under maintenance", nil)
}

func MissingAccount(profile string) *Error {
	return Newf(KindMissingAccount, "profile %q has no account assigned", profile)
}

func GameNotInstalled(path string) *Error {
	return Newf(KindGameNotInstalled, "no game version found under %q", path)
}

func UnknownBackend(backend string) *Error {
	return Newf(KindUnknownBackend, "account uses unknown login backend %q", backend)
}
