/*
Package passwordless provides passwordless login backed by passwordless.dev.

The flow is the following:

 1. A user wants to sign up. He/she provides a username, name and email,
    which are saved as a PendingRegistration by Handler.Register().
 2. The returned token is registered with passwordless.dev as the user ID,
    and the user creates a passkey for it in the browser.
 3. Signing in with the passkey yields a one-time token, which is passed to
    Handler.Login() in an option bag: {"passwordlessDev": true, "token": "..."}.
 4. The token is verified by the passwordless.dev API. The verified user ID is
    looked up among users; if no user is linked to it yet, the pending
    registration is promoted to a User and deleted.
 5. Subsequent logins of the same identity return the same user.

Handler is one of possibly many login methods; Handler.Strategy() returns an
entry for a Registry which dispatches option bags to the method claiming them.

Expected failures are reported in LoginResult.Err as a *LoginError with an
ErrorKind, never as a panic or a Go error from Login.

Handler uses MongoDB as the persistent store, accessed via the official
mongo-go driver. The users collection must have a unique index on the
linkage field, see MongoUserStore.EnsureIndexes().
*/
package passwordless
