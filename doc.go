// Package statpack builds static analytical reports.  A report is a data
// model encoded to JSON by the stream package and delivered to a sink, such
// as a plain file, the on-disk cache or a standalone HTML page.
//
// The Pipeline type orchestrates the encoding of many models concurrently;
// the cmd/statpack command is a front-end over it.
package statpack
