// Package filter builds query filter expressions for the scheduling API.
//
// A filter is a sequence of predicates joined by AND/OR connectors:
//
//	f := filter.Where("status").Eq("scheduled").And("name").Like("John Doe")
//	f.Render(false) // status EQ scheduled AND name LIKE "John Doe"
//	f.Render(true)  // status EQ scheduled AND name LIKE "John~Doe"
//
// Strings are quoted when they are empty or contain whitespace, a comma, a
// tilde, a double quote or a backslash; quotes and backslashes inside them are
// escaped with a backslash. Sequence values (In, NotIn) are joined with bare
// commas. The URL-encoded form, which String also returns, replaces whitespace
// inside quoted values with '~'.
//
// Builders created from an Entity prefix bare attribute names:
//
//	appointments := filter.ForEntity("appointment")
//	appointments.Where("status").Eq("scheduled").And("calendar.id").Eq(4)
//	// appointment.status EQ scheduled AND calendar.id EQ 4
//
// Calling methods out of order, passing an empty In sequence or rendering an
// empty filter yields an error wrapping ErrMisuse.
package filter
