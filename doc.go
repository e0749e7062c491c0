// Package gglsbl is a command line client for gglsbl-rest services.
//
// # Overview
//
// A gglsbl-rest service (https://github.com/mlsecproject/gglsbl-rest) keeps a
// local copy of the Google Safe Browsing lists and answers two questions
// over HTTP: is the service up, and is a given URL on any list.
//
//	GET /gglsbl/status            service status document
//	GET /gglsbl/lookup/<url>      classification of <url>
//
// The URL of a lookup is percent-encoded byte by byte so that it travels as
// a single path segment.
//
// # Components
//
//   - pkg/gglsbl/client: the HTTP client and its result types
//   - internal/config: layered INI configuration with named profiles
//   - internal/commands: the cobra command tree of the gglsbl binary
//   - internal/mockserver: an in-memory stand-in for the service
//   - internal/logging: slog handler construction
//
// # Quick Start
//
// Write a configuration file:
//
//	gglsbl config init -r scanner.local -p 5000
//
// Check the service and look up a URL:
//
//	gglsbl --check-status
//	gglsbl --lookup-url http://testsafebrowsing.appspot.com/apiv4/ANY_PLATFORM/MALWARE/URL/
//
// Without flags the client prints its configuration followed by the
// service status.
//
// # Library Use
//
//	sbc := client.New("scanner.local", "5000", client.WithTimeout(5*time.Second))
//	res, err := sbc.Lookup(ctx, "http://example.com/")
//	if err != nil {
//		return err
//	}
//	switch res.Outcome {
//	case client.Found:
//		// listed
//	case client.NotFound:
//		// clean
//	}
package gglsbl
