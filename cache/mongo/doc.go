// Package mongo implements cache.Store on MongoDB using mongo-driver v2.
// Sections live in one collection with a unique compound index on
// subdivision, block and iteration target. The caller owns the database
// handle; Close never disconnects it.
package mongo
