// Package pool lends fixed-shape value buffers so per-section pixel data is
// not reallocated for every request.
//
// A Pool keeps a free stack of reference-counted items. Obtain hands out an
// item with one reference; Retain adds a reference when an item is shared,
// and Free drops one. An item whose count reaches zero returns to the free
// stack while the stack is below its maximum and is released otherwise.
// Contents are not cleared on release.
package pool
