// Package monexa is a typed client for the Monexa personal finance API.
//
// All calls go through a client.Dispatcher, which attaches the access token,
// renews it ahead of expiry and replays requests that were held while a
// renewal was in flight. When renewal is impossible the dispatcher clears the
// stored credentials and reports the end of the session.
//
// # Basic Usage
//
//	storage, err := fs.NewFSStorage("", "monexa", baseURL)
//	if err != nil {
//	    return err
//	}
//	store := client.NewCredentialStore(storage)
//	d := client.NewDispatcher(baseURL, store)
//	d.OnSessionEnded(func(loginURL string) {
//	    fmt.Println("session ended, please log in again")
//	})
//
//	api := monexa.NewClient(d)
//	if _, err := api.Login(ctx, "ana@example.com", "secret"); err != nil {
//	    return err
//	}
//	records, err := api.ListRecords(ctx, monexa.RecordFilter{Search: "groceries"})
//
// # Errors
//
// Non-2xx responses are returned as *APIError carrying the HTTP status and the
// server's message. Requests rejected because the session could not be
// renewed fail with client.ErrTokenRefreshFailed.
package monexa
