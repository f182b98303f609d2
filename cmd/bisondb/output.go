package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"

	"github.com/bisondb/bison/internal/document"
)

// printDocuments writes docs to stdout, either as a Markdown-rendered
// fenced code block (cfg.Pretty) or as one compact JSON object per line
// for piping into jq or another CLI tool.
func printDocuments(rc *runContext, docs []*document.Object) error {
	if !rc.cfg.Pretty {
		for _, d := range docs {
			b, err := document.Marshal(d)
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, string(b))
		}

		return nil
	}

	return printPretty(docs)
}

func printPretty(docs []*document.Object) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}

	var md string

	if len(docs) == 0 {
		md = "_no matching documents_\n"
	}

	for i, d := range docs {
		b, err := document.Marshal(d)
		if err != nil {
			return err
		}

		md += fmt.Sprintf("**[%d]**\n\n```json\n%s\n```\n\n", i, string(b))
	}

	out, err := renderer.Render(md)
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, out)

	return nil
}
