package signal

import (
	"context"

	"github.com/1314wu/server-p2p-signal/tools/security"
)

// AuthResult is what the external credential validator hands back on
// success: the client identity and, optionally, the room it lands in.
type AuthResult struct {
	CID  string
	Room string
}

// Authenticator validates a handshake token. Called once per handshake
// attempt; a non-nil error means the token is rejected and its message is
// propagated verbatim to the client.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*AuthResult, error)
}

// DisconnectObserver is notified once per completed disconnect of an
// authenticated client. Fire and forget; failures never touch gateway state.
type DisconnectObserver interface {
	Notify(cid string)
}

// JWTAuthenticator is the default Authenticator: HMAC-signed JWT with the
// identity in `sub` and the optional room in a `room` claim.
type JWTAuthenticator struct {
	opts security.Options
}

func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{opts: security.DefaultOptions(secret)}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (*AuthResult, error) {
	sub, room, err := security.Verify(a.opts, token)
	if err != nil {
		return nil, err
	}
	return &AuthResult{CID: sub, Room: room}, nil
}
