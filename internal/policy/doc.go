// Package policy holds the read-only policy table and the request classifier.
//
// The table is immutable once built: a versioned set of blocked GraphQL
// operation names, blocked REST path fragments, and UI control descriptors
// mapping element selectors to a suppression mode. Both the network-side
// classifier and the DOM-side enforcer consult the same table; neither
// mutates it. Updating the table to follow upstream markup or API changes is
// an out-of-band configuration change.
//
// Classification is a pure predicate over (method, url). It is total: any
// input, including an empty or malformed URL, yields a verdict, and the
// absence of a match is the Allow outcome rather than an error. That
// fail-open choice is deliberate; the DOM layer is the redundant second line.
package policy
