// Package capture pulls values out of a response and checks its shape.
//
// It supports:
//   - Extracting a JSON path (gjson syntax) from the decoded content
//   - Reading a header or the status code by name
//   - Validating the content against a JSON schema file
package capture
