/*
Package couchreq is a CouchDB client built around lazily-evaluated view
results.

Connecting

New connects to a server; DB selects a database without any network
traffic:

    server, err := couchreq.New(ctx, "http://localhost:5984/")
    if err != nil {
        // ...
    }
    db := server.DB("greetings")

Credentials embedded in the DSN are stripped and used for HTTP Basic
authentication. For cookie-based sessions or proxy authentication, use
the resource package's Authenticators with Server.Auth.

Views

AllDocs and View return a *View, a description of a query that has not
yet been sent. Filter derives a new View with additional parameters
without touching the original, so a base query can be shared and
specialized freely:

    people := db.View("people", "by_age", couchreq.IncludeDocs(true))
    adults := people.Filter(couchreq.StartKey(18))
    minors := people.Filter(couchreq.EndKey(18), couchreq.InclusiveEnd(false))

The HTTP request happens on first access (Rows, Count, Iter, First,
One), and the decoded rows are cached on the View for every later
access. A failed fetch caches nothing, so the same View may be retried.

Most view parameters are JSON-encoded, so keys may be of any JSON type:

    db.View("people", "by_name_and_age", couchreq.Key([]interface{}{"Alice", 30}))

Passing Keys switches the query to a POST with the key set in the body,
accommodating arbitrarily many keys.

Documents

SaveDoc writes a document, generating an _id from the server's UUID pool
when the document has none, and updates map documents in place with the
stored _id and _rev. SaveDocs batches through _bulk_docs and reports
per-document failures via BulkSaveError while still recording the
revisions of the documents that were accepted.
*/
package couchreq
