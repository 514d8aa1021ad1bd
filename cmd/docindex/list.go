package main

import (
	"fmt"

	"github.com/fwojciec/docindex"
)

// Run executes the list command.
func (c *ListCmd) Run(deps *Dependencies) error {
	versions, err := deps.Store.FindVersions(deps.Ctx, c.Library)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docindex.ErrorMessage(err))
		return err
	}

	if len(versions) == 0 {
		fmt.Fprintln(deps.Stdout, "No libraries indexed. Use 'docindex scrape' to add one.")
		return nil
	}

	for _, v := range versions {
		fmt.Fprintf(deps.Stdout, "%s  %s  %d/%d pages  %s\n", label(v.Library, v.Name), v.Status, v.ProgressPages, v.ProgressMaxPages, v.SourceURL)
		if v.ErrorMessage != "" {
			fmt.Fprintf(deps.Stdout, "    error: %s\n", v.ErrorMessage)
		}
	}

	return nil
}
