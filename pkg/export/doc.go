// Package export renders listings as spreadsheets for download.
package export
