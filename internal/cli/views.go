package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/console/internal/output"
	"github.com/telhawk-systems/console/internal/views"
	"github.com/telhawk-systems/console/pkg/listview"
)

var viewsCmd = &cobra.Command{
	Use:               "views [view]",
	Short:             "List the available list views or describe one",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeViewNames,
	RunE:              runViews,
}

func init() {
	rootCmd.AddCommand(viewsCmd)
}

type viewSummary struct {
	Name       string          `json:"name"`
	Title      string          `json:"title"`
	Mode       views.Mode      `json:"mode"`
	Resource   string          `json:"resource"`
	Search     []string        `json:"search_fields"`
	Sort       []string        `json:"sort_fields"`
	PageSizes  []int           `json:"page_sizes"`
	DefaultPer int             `json:"default_page_size"`
	Filters    []filterSummary `json:"filters"`
}

type filterSummary struct {
	Key     string   `json:"key"`
	Kind    string   `json:"kind"`
	Field   string   `json:"field"`
	Param   string   `json:"param"`
	Label   string   `json:"label"`
	Default string   `json:"default,omitempty"`
	Multi   string   `json:"multi,omitempty"`
	Options []string `json:"options,omitempty"`
}

func summarizeView(v *views.View) viewSummary {
	spec := v.Spec()
	s := viewSummary{
		Name:       v.Name,
		Title:      v.Title,
		Mode:       v.Mode,
		Resource:   v.Resource,
		Search:     spec.SearchFields,
		Sort:       spec.SortFields,
		PageSizes:  spec.PageSizes,
		DefaultPer: spec.DefaultPageSize,
	}
	for _, def := range spec.Filters {
		f := filterSummary{
			Key:     def.Key,
			Kind:    def.Kind.String(),
			Field:   def.FieldName(),
			Param:   def.ParamName(),
			Label:   def.DisplayLabel(),
			Options: def.Options,
		}
		if !def.DefaultValue().IsZero() {
			f.Default = listview.FormatFilterValue(def.DefaultValue())
		}
		if def.Kind == listview.KindMembership {
			f.Multi = "omit"
			if def.Multi == listview.MultiJoin {
				f.Multi = "join"
			}
		}
		s.Filters = append(s.Filters, f)
	}
	return s
}

func runViews(cmd *cobra.Command, args []string) error {
	format, err := currentFormat()
	if err != nil {
		return err
	}
	p := newPrinter(cmd)

	if len(args) == 1 {
		v, err := lookupView(args[0])
		if err != nil {
			return err
		}
		return describeView(p, format, summarizeView(v))
	}

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	summaries := make([]viewSummary, 0, len(catalog.All()))
	for _, v := range catalog.All() {
		summaries = append(summaries, summarizeView(v))
	}
	if format == output.FormatJSON {
		return p.JSON(summaries)
	}

	table := output.NewTable("NAME", "TITLE", "MODE", "FILTERS", "SORT")
	for _, s := range summaries {
		keys := make([]string, len(s.Filters))
		for i, f := range s.Filters {
			keys[i] = f.Key
		}
		table.AddRow(s.Name, s.Title, string(s.Mode), strings.Join(keys, ","), orDash(strings.Join(s.Sort, ",")))
	}
	p.Table(table)
	return nil
}

func describeView(p *output.Printer, format output.Format, s viewSummary) error {
	if format == output.FormatJSON {
		return p.JSON(s)
	}
	p.Info("%s (%s, %s)", s.Title, s.Name, s.Mode)
	p.Muted("search: %s", orDash(strings.Join(s.Search, ", ")))
	p.Muted("sort: %s", orDash(strings.Join(s.Sort, ", ")))
	p.Muted("page sizes: %s (default %d)", joinInts(s.PageSizes), s.DefaultPer)

	table := output.NewTable("KEY", "KIND", "FIELD", "PARAM", "DEFAULT", "OPTIONS")
	for _, f := range s.Filters {
		kind := f.Kind
		if f.Multi == "join" {
			kind += " (join)"
		}
		table.AddRow(f.Key, kind, f.Field, f.Param, orDash(f.Default), orDash(strings.Join(f.Options, ",")))
	}
	p.Table(table)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
