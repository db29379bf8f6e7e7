// Package migrations embeds the SQL schema so binaries can migrate without
// shipping the ops directory.
package migrations

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed sql/*.sql
var files embed.FS

// SQL returns the migration files rooted at the sql directory.
func SQL() fs.FS {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Open returns the migrations in dir, or the embedded set when dir is empty.
func Open(dir string) fs.FS {
	if dir == "" {
		return SQL()
	}
	return os.DirFS(dir)
}
