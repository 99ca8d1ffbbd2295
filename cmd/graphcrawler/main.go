// Package main provides the graphcrawler CLI.
//
// Usage:
//
//	graphcrawler [flags] <start_label> <depth> <worker_count>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
