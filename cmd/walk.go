package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/concept-modules/internal/curriculum"
	"github.com/JakeFAU/concept-modules/internal/lesson"
)

func newWalkCmd() *cobra.Command {
	var (
		catalogFile string
		steps       []string
	)
	cmd := &cobra.Command{
		Use:   "walk <module_id>",
		Short: "Run a scripted walk through a module and print each view",
		Long: `Drives a progress controller through a list of steps without a server and
prints the rendered view after each one. Steps are advance, retreat, next,
select:<unit_id>, and complete or complete:<unit_id>. A successful next
continues the walk in the target module.`,
		Example: `  concepts walk concurrency --steps advance,advance,complete,next`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := catalogFile
			if path == "" {
				p, err := catalogPath(cmd, nil)
				if err != nil {
					return err
				}
				path = p
			}
			cat, err := curriculum.LoadFile(path)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			return walk(cmd.OutOrStdout(), cat, args[0], steps)
		},
	}
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "catalog file (defaults to catalog.path)")
	cmd.Flags().StringSliceVar(&steps, "steps", []string{"advance"}, "comma-separated steps to apply")
	return cmd
}

func walk(out io.Writer, cat *curriculum.Catalog, moduleID string, steps []string) error {
	mod, err := cat.Module(moduleID)
	if err != nil {
		return err
	}
	var pending string
	newController := func(m curriculum.Module) *lesson.Controller {
		return lesson.New(m.Units, lesson.Hooks{
			OnModuleComplete: func() {
				fmt.Fprintf(out, "  * module %s complete\n", m.ID)
			},
			OnNavigateToNextModule: func(next string) {
				fmt.Fprintf(out, "  * navigate to %s\n", next)
				pending = next
			},
		})
	}
	ctrl := newController(mod)
	fmt.Fprintf(out, "open %s\n", mod.ID)
	printView(out, lesson.RenderController(ctrl))

	for _, step := range steps {
		fmt.Fprintf(out, "%s\n", step)
		op, arg, _ := strings.Cut(strings.TrimSpace(step), ":")
		switch op {
		case "advance":
			ctrl.Advance()
		case "retreat":
			ctrl.Retreat()
		case "select":
			ctrl.SelectUnit(arg)
		case "complete":
			ctrl.MarkComplete(arg)
		case "next":
			ctrl.RequestNextModule(mod.Next)
		default:
			return fmt.Errorf("unknown step %q", step)
		}
		printView(out, lesson.RenderController(ctrl))

		if pending != "" {
			next, err := cat.Module(pending)
			if err != nil {
				return err
			}
			pending = ""
			mod = next
			ctrl = newController(mod)
			fmt.Fprintf(out, "open %s\n", mod.ID)
			printView(out, lesson.RenderController(ctrl))
		}
	}
	return nil
}

func printView(out io.Writer, v lesson.View) {
	for _, tab := range v.Tabs {
		mark := " "
		if tab.Completed {
			mark = "x"
		}
		cursor := ""
		if tab.Active {
			cursor = " <"
		}
		fmt.Fprintf(out, "  [%s] %s%s\n", mark, tab.ID, cursor)
	}
	fmt.Fprintf(out, "  %d/%d (%.0f%%) retreat=%t advance=%t next=%t\n",
		v.CompletedCount, v.TotalCount, v.ProgressPercent,
		v.CanRetreat, v.CanAdvance, v.CanRequestNextModule)
}
