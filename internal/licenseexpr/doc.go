// Package licenseexpr parses SPDX license expressions and renders them in a
// canonical form.
//
// Grammar (SPDX 2.3 annex D, operators matched in upper or lower case):
//
//	or       = and *( "OR" and )
//	and      = term *( "AND" term )
//	term     = "(" or ")" / license
//	license  = idstring ["+"] [ "WITH" idstring ]
//
// Parse checks syntax and then checks every non user-defined identifier
// against the SPDX license and exception lists (github.com/github/go-spdx).
// A WITH exception is checked even when it follows a LicenseRef. List
// identifiers match case-insensitively and Parse rewrites them to their list
// spelling, so "mit" and "MIT" share one canonical form. ParseSyntax skips
// the list check and keeps identifiers as written.
//
// Expression.String renders the canonical form: upper-case operators, single
// spaces, "+" attached to its identifier, and parentheses only where AND
// would otherwise bind an OR operand.
package licenseexpr
