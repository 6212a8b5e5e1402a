// Package logging builds the structured logger shared by the iotdash binaries.
//
// Output always goes to stderr; when a file is configured it is additionally
// written through a size-rotated lumberjack sink.
package logging
