// Package testutil provides builders shared across test files for
// constructing agent definitions without repeating node/edge literals.
package testutil
