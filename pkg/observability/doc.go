/*
Package observability provides tools for monitoring the thunder pipeline.

It includes prometheus metrics fed by lifecycle hooks and a helper to
compose several sets of hooks into one.
*/
package observability
