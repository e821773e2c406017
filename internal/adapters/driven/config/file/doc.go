// Package file keeps testforge settings and prompt templates under the
// testforge home directory ($TESTFORGE_HOME or ~/.testforge).
//
// config.toml holds the dotted setting keys as nested TOML tables.
// prompts/ holds one editable template per prompt, seeded on first use.
package file
