// Package builtin provides the functions available as {{fn(args)}} in
// request templates.
//
// Available functions:
//   - uuid(): random UUID v4
//   - timestamp(), timestampMs(): current Unix time
//   - now(): current time in RFC 3339
//   - randomString(length): random alphanumeric string
//   - urlEncode(value[, charset]): query-escape value, optionally after
//     converting it to charset (e.g. GBK)
//   - urlDecode(value)
//   - base64(value), md5(value), sha256(value)
package builtin
