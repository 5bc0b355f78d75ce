// Package span reconstructs a waterfall of timed spans from a flat log of
// start, end and event calls.
//
// Keys are path-like strings. "/a/b" names span b nested in a and anchored at
// the root of the tree; "a:warm" names the "warm" duration bucket of span a
// rather than a child span.
package span
