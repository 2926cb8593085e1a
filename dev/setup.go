package main

import (
	"fmt"
	"forummigrate/internal/db"
	"os"
	"path/filepath"
	"strings"

	devenv "forummigrate/dev/env"
)

// writeTemplate writes a config template into the dev state directory unless
// a file is already there.
func writeTemplate(filename, template string) error {
	path, err := devenv.ResolvePath(filepath.Join("<dev_state>", filename))
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("config already created at", path)
		return nil
	}

	state := filepath.Dir(path)
	contents := strings.ReplaceAll(template, "<dev_state>", filepath.ToSlash(state))
	fmt.Println("writing config template to", path)
	return os.WriteFile(path, []byte(contents), 0644)
}

func CreateConfigTemplates() error {
	err := writeTemplate("crawl.json5", devenv.CrawlTemplate)
	if err != nil {
		return err
	}
	return writeTemplate("import.json5", devenv.ImportTemplate)
}

func CreateMappingDB() error {
	path, err := devenv.ResolvePath(filepath.Join("<dev_state>", "mapping.db"))
	if err != nil {
		return err
	}
	fmt.Println("creating mapping database at", path)
	database, err := db.Open(path)
	if err != nil {
		return err
	}
	return database.Close()
}

func PrintUsage() {
	fmt.Println("run the cli from dev/.state, for example:")
	fmt.Println("\tcd dev/.state && go run ../../cmd/forummigrate crawl")
	fmt.Println("\tcd dev/.state && go run ../../cmd/forummigrate import exports/<snapshot>.json --dry-run")
}
