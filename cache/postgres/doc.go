// Package postgres implements cache.Store on PostgreSQL using pgx/v5.
// Each section is one row keyed by subdivision, block and iteration target;
// its values are stored as an encoded record. A batch lookup joins the
// table against the request keys passed as arrays, so one round trip
// serves a whole viewport.
package postgres
