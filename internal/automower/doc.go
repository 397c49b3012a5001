// Package automower provides a client for the Husqvarna Automower Connect API.
//
// The client authenticates with the OAuth2 client-credentials grant, lists the
// mowers on an account, polls their detailed status and sends commands
// (start, pause, park, resume, headlight, cutting height).
//
// # Token Lifecycle
//
// TokenManager holds one immutable Token at a time. A token is renewed once
// its effective expiry (expires_in minus a renewal margin, 600s by default)
// has been reached, so a request never goes out with a token that is about
// to lapse. TokenManager also implements oauth2.TokenSource.
//
// # Retry Policy
//
// Requester runs at most three attempts per operation with a linear backoff
// (2s * (n+1) after the n-th failure):
//   - 2xx: success, the body must be JSON
//   - 403 and 5xx: retried (the upstream intermittently answers 403)
//   - network errors and timeouts: retried
//   - 429: not retried, APILimitReached becomes true
//   - other 4xx and unknown statuses: not retried
//
// # Usage Example
//
//	client := automower.NewClient(appKey, appSecret, automower.WithLogger(logger))
//	defer client.Close()
//
//	if err := client.GetMowers(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.GetMowersInfo(); err != nil {
//	    log.Printf("status refresh failed: %s (rate limited: %v)",
//	        client.LastError(), client.APILimitReached())
//	}
//	_ = client.Start("Front lawn", 90)
//
// # Error Handling
//
// Every operation returns an *APIError (see ErrorType) and records its
// message, readable via LastError until the next operation runs.
package automower
