// Package mpk is a client for the MPK Wrocław mobile API.
//
// Every call is a digest-authenticated GET of
// <BaseURL><Path>?function=<name>&<params>. The body is either the expected
// payload or an error object {info, message, stackTrace}, possibly with
// status 200, and is told apart by shape.
package mpk
