// Package http provides a single-session HTTP helper.
//
// A Session carries one cookie and a default charset across requests:
//   - GET parameters are appended to the URL, POST parameters form the body
//   - the Set-Cookie value of each response is sent back on the next request
//   - response bodies are decoded with the declared charset or the default
//   - the final URL is decomposed into protocol, host, port, path and so on
//   - FetchCompressed downloads and gunzips a raw payload
package http
