// Package board provides a client for the read-only imageboard JSON API
// (4chan-compatible) used to discover threads and their attachments.
//
// # Endpoints
//
//   - {api}/{board}/catalog.json: pages of thread summaries
//   - {api}/{board}/thread/{no}.json: the posts of a single thread
//   - {media}/{board}/{tim}{ext}: the binary attachment of a post
//
// # Usage
//
//	client, err := board.NewClient(board.Options{
//		Board:          "gif",
//		APIURL:         "https://a.4cdn.org",
//		MediaURL:       "https://i.4cdn.org",
//		ConnectTimeout: 10 * time.Second,
//		ReadTimeout:    30 * time.Second,
//	}, logger)
//	if err != nil {
//		return err
//	}
//
//	listings, err := client.FetchCatalog(ctx)
//	thread, err := client.FetchListing(ctx, listings[0].ID)
//	tasks := board.Extract(thread, board.NewExtensionSet(".webm"), listings[0].Title)
//
// # Error Handling
//
// Every error returned by the client is a *failure.Error. Network failures
// are split into timeout, transport, http-status and cancelled; decoding
// failures into malformed-json and schema-mismatch. The client never
// retries.
package board
