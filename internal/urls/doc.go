// Package urls provides centralized constants for the documentation URLs
// shown in hints and help text.
//
// Usage:
//
//	import "github.com/muurk/mowerctl/internal/urls"
//
//	fmt.Printf("Create an application at %s\n", urls.DeveloperPortal)
package urls
