package errors

var (
	ErrMissingWrapper = New(KindMissingWrapper, "", nil)
	ErrProcessStart   = New(KindProcessStart, "", nil)
	ErrRegistrySetup  = New(KindRegistrySetup, "", nil)
	ErrAlreadyRunning = New(KindAlreadyRunning, "", nil)
	ErrBusy           = New(KindBusy, "", nil)
)

func MissingWrapper(wrapper, path string, cause error) *Error {
	return &Error{Kind: KindMissingWrapper, Component: wrapper, Message: "cannot locate " + path, Cause: cause}
}

func ProcessStart(cause error) *Error {
	return New(KindProcessStart, "failed to start game process", cause)
}

func RegistrySetup(key string, cause error) *Error {
	return &Error{Kind: KindRegistrySetup, Component: "registry", Message: "failed to set " + key, Cause: cause}
}

func AlreadyRunning(pid int32) *Error {
	return Newf(KindAlreadyRunning, "game is already running from this install (pid %d)", pid)
}

func Busy(profile string) *Error {
	return Newf(KindBusy, "profile %q is already logging in or launching", profile)
}
