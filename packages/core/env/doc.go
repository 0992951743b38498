// Package env expands {{...}} templates in request URLs, parameters and
// headers before they are handed to a session.
//
// Three forms are understood:
//   - {{name}} looks up a variable (from a .env file or --var flags)
//   - {{$NAME}} reads the process environment
//   - {{fn(args)}} calls a builtin such as uuid() or urlEncode(a b)
package env
