package main

import (
	"fmt"
	"os"

	"github.com/bisondb/bison/internal/bisonerr"
	"github.com/bisondb/bison/internal/document"
)

type collectionsCmd struct{}

func (c *collectionsCmd) Run(rc *runContext) error {
	for _, name := range rc.engine.Collections(rc.ctx) {
		fmt.Fprintln(os.Stdout, name)
	}

	return nil
}

type createCollCmd struct {
	Name string `arg:"" help:"Collection name."`
}

func (c *createCollCmd) Run(rc *runContext) error {
	rc.engine.CreateCollection(rc.ctx, c.Name)
	return nil
}

type dropCollCmd struct {
	Name string `arg:"" help:"Collection name."`
}

func (c *dropCollCmd) Run(rc *runContext) error {
	return rc.engine.DropCollection(rc.ctx, c.Name)
}

type dropAllCmd struct{}

func (c *dropAllCmd) Run(rc *runContext) error {
	return rc.engine.DropAll(rc.ctx)
}

type insertCmd struct {
	Collection string `arg:"" help:"Collection name."`
	Document   string `arg:"" help:"Document as a JSON object."`
}

func (c *insertCmd) Run(rc *runContext) error {
	doc, err := document.UnmarshalObject([]byte(c.Document))
	if err != nil {
		return bisonerr.Wrap(bisonerr.ParseError, err, "parse document argument")
	}

	rc.engine.Insert(rc.ctx, c.Collection, doc)

	return nil
}

type insertFileCmd struct {
	Collection string `arg:"" help:"Collection name."`
	Path       string `arg:"" help:"Path to a JSON file containing an array of documents."`
}

func (c *insertFileCmd) Run(rc *runContext) error {
	return rc.engine.InsertManyFromDocument(rc.ctx, c.Collection, c.Path)
}

type findCmd struct {
	Collection string `arg:"" help:"Collection name."`
	Filter     string `arg:"" optional:"" help:"Filter as a JSON object, e.g. '{\"age\":{\"$gt\":18}}'."`
}

func (c *findCmd) Run(rc *runContext) error {
	var filter *document.Object

	if c.Filter != "" {
		parsed, err := document.UnmarshalObject([]byte(c.Filter))
		if err != nil {
			return bisonerr.Wrap(bisonerr.ParseError, err, "parse filter argument")
		}

		filter = parsed
	}

	docs, err := rc.engine.Find(rc.ctx, c.Collection, filter)
	if err != nil {
		return err
	}

	return printDocuments(rc, docs)
}

type updateCmd struct {
	Collection     string `arg:"" help:"Collection name."`
	Expression     string `arg:"" help:"Update expression as a JSON object."`
	Filter         string `help:"Filter as a JSON object; omitted means every document."`
	ReturnSnapshot bool   `name:"return-snapshot" help:"Return the whole collection instead of only the changed documents."`
}

func (c *updateCmd) Run(rc *runContext) error {
	expr, err := document.UnmarshalObject([]byte(c.Expression))
	if err != nil {
		return bisonerr.Wrap(bisonerr.ParseError, err, "parse update expression")
	}

	var filter *document.Object

	if c.Filter != "" {
		parsed, err := document.UnmarshalObject([]byte(c.Filter))
		if err != nil {
			return bisonerr.Wrap(bisonerr.ParseError, err, "parse filter option")
		}

		filter = parsed
	}

	returnSnapshot := c.ReturnSnapshot || rc.cfg.ReturnSnapshot

	result, err := rc.engine.Update(rc.ctx, c.Collection, expr, filter, returnSnapshot)
	if err != nil {
		return err
	}

	if returnSnapshot {
		return printDocuments(rc, result.Snapshot)
	}

	return printDocuments(rc, result.Mutated)
}

type writeCmd struct {
	Collection string `arg:"" help:"Collection name."`
}

func (c *writeCmd) Run(rc *runContext) error {
	return rc.engine.Write(rc.ctx, c.Collection)
}

type writeAllCmd struct{}

func (c *writeAllCmd) Run(rc *runContext) error {
	return rc.engine.WriteAll(rc.ctx)
}

type recentLogsCmd struct{}

func (c *recentLogsCmd) Run(rc *runContext) error {
	records, ok := rc.engine.RecentLogs()
	if !ok {
		fmt.Fprintln(os.Stdout, "recent-log buffer disabled (recent_log_entries is 0)")
		return nil
	}

	for _, r := range records {
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", r.Time.Format("2006-01-02T15:04:05"), r.Level, r.Message)
	}

	return nil
}
