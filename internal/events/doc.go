// Package events subscribes to the Automower Connect websocket feed.
//
// A Stream authenticates with any oauth2.TokenSource (usually the
// automower TokenManager) and the application key, keeps the connection
// alive with periodic "ping" text frames, and hands every decoded Event to a
// Handler until the context is cancelled or the connection drops.
//
//	stream := events.NewStream(appKey, client.TokenSource(),
//	    events.WithLogger(logging.Named("events")))
//	err := stream.Run(ctx, func(ev events.Event) {
//	    if st, err := ev.Status(); err == nil {
//	        fmt.Println(ev.ID, st.Mower.Activity)
//	    }
//	})
//
// Reconnecting after a failure is left to the caller.
package events
