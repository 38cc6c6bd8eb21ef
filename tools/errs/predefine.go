package errs

// Gateway error codes surfaced in acknowledgments. The 2xxx range is
// reserved for session/routing failures.
const (
	BadFrameCode       = 2001
	AuthFailedCode     = 2110
	UnauthSenderCode   = 2120
	AlreadyAuthedCode  = 2130
	UnreachableCode    = 2201
	ServerInternalCode = 2500
)

var (
	ErrBadFrame       = NewCodeError(BadFrameCode, "malformed frame")
	ErrAuthFailed     = NewCodeError(AuthFailedCode, "authentication failed")
	ErrUnauthSender   = NewCodeError(UnauthSenderCode, "sender not authenticated")
	ErrAlreadyAuthed  = NewCodeError(AlreadyAuthedCode, "connection already authenticated")
	ErrUnreachable    = NewCodeError(UnreachableCode, "endpoint unreachable")
	ErrServerInternal = NewCodeError(ServerInternalCode, "server internal error")
)
