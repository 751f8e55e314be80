// Package runlog keeps harvest run history in a small SQLite database so
// past runs can be inspected from the command line.
package runlog
