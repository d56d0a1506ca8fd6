// Package digest implements the client side of HTTP Digest access
// authentication (RFC 7616) for GET requests.
//
// A Negotiator performs the two round trips of the challenge/response flow:
//
//	n := digest.NewNegotiator(client, digest.Credentials{
//	    Username: "android-mpk",
//	    Password: os.Getenv("MPK_PASSWORD"),
//	})
//	resp, err := n.Get(ctx, "https://impk.mpk.wroc.pl:8088/mobile?function=getPositions")
//
// The first request is sent without credentials. A 401 carrying a Digest
// challenge is answered once; a response that is not 401 is returned as-is.
// The authenticated request must then succeed with a 2xx status.
// Challenges are never cached, so every Get performs a fresh negotiation and
// the nonce count is always 00000001.
//
// Supported algorithms are MD5, SHA-256 and SHA-512-256, each with its -sess
// variant, and the qop values auth and auth-int.
package digest
