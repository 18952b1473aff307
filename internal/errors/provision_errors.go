package errors

var (
	ErrProvisionTransport   = New(KindProvisionTransport, "", nil)
	ErrVerificationMismatch = New(KindVerificationMismatch, "", nil)
	ErrUnpack               = New(KindUnpack, "", nil)
	ErrPartialDownload      = New(KindPartialDownload, "", nil)
)

// Provisioning builds an error attributed to one provisioned component.
func Provisioning(kind Kind, component string, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

func DownloadFailed(component string, cause error) *Error {
	return Provisioning(KindProvisionTransport, component, "download failed", cause)
}

func UnpackFailed(component string, cause error) *Error {
	return Provisioning(KindUnpack, component, "unpack failed", cause)
}

func VerificationMismatch(component, file, want, got string) *Error {
	return &Error{
		Kind:      KindVerificationMismatch,
		Component: component,
		Message:   "hash mismatch for " + file + ": want " + want + ", got " + got,
	}
}

func PartialDownload(component string, missing []string) *Error {
	msg := "missing files after install"
	if len(missing) > 0 {
		msg += ": " + missing[0]
		if len(missing) > 1 {
			msg += " and others"
		}
	}
	return &Error{Kind: KindPartialDownload, Component: component, Message: msg}
}
