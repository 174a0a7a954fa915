// Package pagination collects cursor-paginated scheduling API listings.
//
// Listing endpoints answer with an envelope carrying one page of items and the
// number of the next page, or null on the last page:
//
//	{"data": [...], "next_page": 2}
//
// Example usage:
//
//	f := filter.Where("status").Eq("scheduled")
//	items, err := pagination.CollectAll[Appointment](ctx, apiClient, http.MethodGet, "/appointments", nil, f)
//
// The aggregator:
//   - Starts at page 1 and follows next_page until it is null
//   - Fetches pages sequentially, because each page supplies the next cursor
//   - Adds the rendered filter and the page number to every request payload
//   - Gives every page its own retry budget (one client call per page)
//   - Returns all pages or nothing; a 404 on the listing yields an empty slice
package pagination
