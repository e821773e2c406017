// Package html provides a Normaliser for HTML documentation.
//
// Uploads are sanitised with bluemonday, converted to Markdown with
// html-to-markdown, and the Markdown is then stripped to plain text so
// headings, lists and tables survive as readable lines.
package html
