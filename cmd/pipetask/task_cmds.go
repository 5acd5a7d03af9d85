package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/aristath/pipetask/internal/render"
	"github.com/aristath/pipetask/internal/task"
)

func newTypesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered task types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, typ := range a.reg.Types() {
				inst, err := a.reg.Get(typ)
				if err != nil {
					return err
				}
				d := inst.Descriptor()

				fields := make([]string, len(d.Identity))
				for i, f := range d.Identity {
					fields[i] = f.Name
				}
				deps := make([]string, len(d.Dependencies))
				for i, dep := range d.Dependencies {
					deps[i] = dep.Role + "=" + dep.Type
				}
				if len(deps) == 0 {
					deps = []string{"-"}
				}

				fmt.Fprintln(out, render.Title(typ))
				fmt.Fprint(out, render.KeyValues(
					[]string{"name", "deps", "entry", "maxprocs"},
					map[string]string{
						"name":     strings.Join(fields, task.Separator),
						"deps":     strings.Join(deps, " "),
						"entry":    inst.Entry(),
						"maxprocs": fmt.Sprint(inst.RunMaxProcs(a.cfg.ProcsPerNode)),
					}))
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newNameCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "name",
		Short: "Encode and decode task names",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:     "encode <type> <field=value>...",
			Short:   "Build a task name from identity fields",
			Example: "  pipetask name encode extract night=20200101 band=r spec=3 expid=42",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				inst, err := a.instance(args[0], "")
				if err != nil {
					return err
				}
				f, err := parseFields(inst.Descriptor(), args[1:])
				if err != nil {
					return err
				}
				name, err := inst.Join(f)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "decode <type> <name>",
			Short: "Split a task name into identity fields",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				inst, err := a.instance(args[0], "")
				if err != nil {
					return err
				}
				f, err := inst.Split(args[1])
				if err != nil {
					return err
				}
				for _, field := range inst.Descriptor().Identity {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%v\n", field.Name, f[field.Name])
				}
				return nil
			},
		},
	)
	return cmd
}

func newFiletypesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "filetypes",
		Short: "List the filetypes the path layout resolves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, ft := range a.layout.Filetypes() {
				fmt.Fprintln(cmd.OutOrStdout(), ft)
			}
			return nil
		},
	}
}

func newPathsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "paths <type> <name>",
		Short: "Print the output files of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.instance(args[0], args[1])
			if err != nil {
				return err
			}
			paths, err := inst.Paths(args[1])
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newDepsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <type> <name>",
		Short: "Print the tasks a task depends on, one per role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.instance(args[0], args[1])
			if err != nil {
				return err
			}
			deps, err := inst.Deps(args[1])
			if err != nil {
				return err
			}
			for _, d := range deps {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", d.Role, d.Type, d.Name)
			}
			return nil
		},
	}
}

func newOptionsCommand(a *app) *cobra.Command {
	var sets []string
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "options <type> <name>",
		Short: "Print the assembled options of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.instance(args[0], args[1])
			if err != nil {
				return err
			}
			overrides, err := a.overrides(args[0], sets)
			if err != nil {
				return err
			}
			opts, err := inst.BuildOptions(args[1], overrides)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asYAML {
				data, err := optionsYAML(opts)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}
			for _, o := range opts {
				fmt.Fprintf(out, "%s=%s\n", o.Key, task.FormatValue(o.Value))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override an option (key=value, repeatable)")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print as a YAML mapping")
	return cmd
}

// optionsYAML renders opts as a mapping that keeps option order.
func optionsYAML(opts task.OptionList) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, o := range opts {
		var val yaml.Node
		if err := val.Encode(o.Value); err != nil {
			return nil, fmt.Errorf("encoding option %s: %w", o.Key, err)
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: o.Key}, &val)
	}
	return yaml.Marshal(doc)
}

func newCmdlineCommand(a *app) *cobra.Command {
	var sets []string
	var procs int
	cmd := &cobra.Command{
		Use:   "cmdline <type> <name>",
		Short: "Print the command line that runs a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.instance(args[0], args[1])
			if err != nil {
				return err
			}
			overrides, err := a.overrides(args[0], sets)
			if err != nil {
				return err
			}
			line, err := inst.RunCommandLine(args[1], overrides, procs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override an option (key=value, repeatable)")
	cmd.Flags().IntVar(&procs, "procs", 1, "worker count the task would run with")
	return cmd
}
