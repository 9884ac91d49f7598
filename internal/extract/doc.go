// Package extract turns Metal Archives markup into the records the proxy serves.
//
// Everything here is a pure function of its input: the AJAX search payload
// (an "aaData" array of HTML fragments), or the HTML of an album or band page.
// Parsing is permissive. A field the page does not carry comes back as "",
// never as an error, because the tagging client treats a partially filled
// record as useful.
package extract
