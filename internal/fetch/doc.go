// Package fetch is the crawler's HTTP layer.
//
// A single Client is shared by the discover, collect and download stages so
// the configured request rate (http.requests_per_second, http.burst) holds
// across every task running in the process. Pages are parsed with goquery;
// downloads are read with a hard byte limit.
package fetch
