package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/fwd/internal/catalog"
	"github.com/leapstack-labs/fwd/internal/cli/output"
	"github.com/leapstack-labs/fwd/pkg/provider"
	"github.com/spf13/cobra"
)

// CatalogOptions holds options for the catalog command.
type CatalogOptions struct {
	Package string // Only list this package and its sub-packages
	Format  string // Output format
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand() *cobra.Command {
	opts := &CatalogOptions{}
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the packages and classes of the runtime catalog",
		Long: `List what the catalog runtime defines: its packages, and for each
package the classes declared in it.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # List the whole catalog
  fwd catalog

  # Only java.util and below
  fwd catalog --package java.util

  # Output as JSON
  fwd catalog --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCatalog(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Package, "package", "p", "", "Only list this package and its sub-packages")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json, markdown")

	return cmd
}

func runCatalog(cmd *cobra.Command, opts *CatalogOptions) error {
	c := NewCommandContext(cmd)
	r := c.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	rt, err := provider.New(c.Cfg.ProviderConfig(), c.Logger)
	if err != nil {
		return err
	}
	cat, ok := rt.(*catalog.Runtime)
	if !ok {
		return fmt.Errorf("runtime %q has no catalog to list", c.Cfg.Runtime.Type)
	}

	out := catalogOutput(cat, opts.Package)
	if opts.Package != "" && len(out.Packages) == 0 {
		return fmt.Errorf("package %q not found in catalog", opts.Package)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeText:
		renderCatalogText(r, out)
	default:
		renderCatalogMarkdown(r, out)
	}
	return nil
}

func catalogOutput(rt *catalog.Runtime, pkg string) output.CatalogOutput {
	out := output.CatalogOutput{Name: rt.Name()}
	for _, p := range rt.Packages() {
		if pkg != "" && p.Path() != pkg && !strings.HasPrefix(p.Path(), pkg+".") {
			continue
		}
		info := output.PackageInfo{Path: p.Path(), Classes: []output.ClassInfo{}}
		for _, c := range rt.ClassesIn(p.Path()) {
			info.Classes = append(info.Classes, classInfo(c))
		}
		out.Packages = append(out.Packages, info)
		out.Summary.Packages++
		out.Summary.Classes += len(info.Classes)
	}
	return out
}

func classInfo(c *catalog.Class) output.ClassInfo {
	info := output.ClassInfo{Name: c.Name(), Kind: classKind(c), Fields: c.Fields()}
	if s := c.Super(); s != nil {
		info.Super = s.Name()
	}
	for _, i := range c.Interfaces() {
		info.Interfaces = append(info.Interfaces, i.Name())
	}
	return info
}

func classKind(c *catalog.Class) string {
	switch {
	case c.IsInterface():
		return "interface"
	case c.IsEnum():
		return "enum"
	case c.IsAbstract():
		return "abstract class"
	default:
		return "class"
	}
}

func renderCatalogText(r *output.Renderer, out output.CatalogOutput) {
	styles := r.Styles()
	r.Header(1, fmt.Sprintf("Catalog %s", out.Name))
	for _, p := range out.Packages {
		r.Println(styles.Header2.Render(p.Path))
		for _, c := range p.Classes {
			line := fmt.Sprintf("  %s %s", styles.Muted.Render(c.Kind), styles.Symbol.Render(shortName(c.Name)))
			if c.Super != "" {
				line += styles.Muted.Render(" extends ") + c.Super
			}
			r.Println(line)
			if len(c.Fields) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("fields:"), strings.Join(c.Fields, ", "))
			}
		}
	}
	r.Println()
	r.Muted(fmt.Sprintf("Total: %d packages, %d classes", out.Summary.Packages, out.Summary.Classes))
}

func renderCatalogMarkdown(r *output.Renderer, out output.CatalogOutput) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Catalog %s", out.Name)))
	for _, p := range out.Packages {
		r.Println()
		r.Println(output.FormatHeader(2, p.Path))
		if len(p.Classes) == 0 {
			r.Println("_no classes_")
			continue
		}
		rows := make([][]string, len(p.Classes))
		for i, c := range p.Classes {
			rows[i] = []string{shortName(c.Name), c.Kind, c.Super, strings.Join(c.Fields, ", ")}
		}
		r.Table([]string{"Class", "Kind", "Super", "Fields"}, rows)
	}
	r.Println()
	r.Println(output.FormatKeyValue("Packages", fmt.Sprint(out.Summary.Packages)))
	r.Println(output.FormatKeyValue("Classes", fmt.Sprint(out.Summary.Classes)))
}

func shortName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
