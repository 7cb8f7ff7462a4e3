// Package vm implements the lispgc runtime.
//
// This package contains:
//   - Tagged heap objects addressed by Ref handles
//   - The object heap (slot arena with a parallel mark array)
//   - Lexically scoped environments stored on the heap
//   - The evaluator for if, lambda, quote and define
//   - The primitive procedure catalogue
//   - A mark-and-sweep collector rooted at the root environment
package vm
