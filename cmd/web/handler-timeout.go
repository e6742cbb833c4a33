package main

import (
	"net/http"
	"time"
)

// timeoutBody links back to the home page, which renders the current step of the audit again.
const timeoutBody = `<!doctype html>
<html lang="fr">
<head><meta charset="utf-8"><title>Délai dépassé</title></head>
<body>
<h1>Délai dépassé</h1>
<p>Le serveur n'a pas répondu à temps. Les réponses déjà validées sont conservées.</p>
<p><a href="/">Reprendre l'audit</a></p>
</body>
</html>
`

// timeoutHandler responds with a 503 Service Unavailable error when the handler does not meet the deadline.
func timeoutHandler(h http.Handler, defaultTimeout time.Duration) http.Handler {
	// Shorter than the server's write timeout so that the page reaches the browser before the connection closes.
	httpHandlerTimeout := defaultTimeout - 500*time.Millisecond //nolint:mnd // 500ms
	return http.TimeoutHandler(h, httpHandlerTimeout, timeoutBody)
}
