// Package pagination walks OTX cursor-paginated endpoints.
//
// OTX returns a top-level object with a "results" array and a "next" URL.
// The Paginator follows "next" one page at a time until the cursor runs out,
// a page ceiling is reached, or a fetch or payload problem ends the walk.
//
// Example usage:
//
//	p := pagination.New(otxClient, cfg.BaseURL, cfg.MaxPages)
//	for page := range p.Pages(ctx) {
//		inserted, err := loader.Load(ctx, page.Records)
//		...
//	}
//
// The paginator:
//   - Is single-pass: once it has ended, Next keeps returning false
//   - Never returns an error; every stop condition is logged
//   - Treats an empty "results" array as a valid page
//   - Ends after the current page when "next" is absent, null or empty
package pagination
