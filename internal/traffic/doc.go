// Package traffic keeps the live table of traffic participants seen in
// Traffic Reports. Participants that stop reporting are removed after a
// configurable timeout.
package traffic
