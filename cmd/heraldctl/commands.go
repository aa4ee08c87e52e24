package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"herald/internal/template"
	"herald/internal/utils"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errInvalid = errors.New("template has errors")

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "heraldctl",
		Short:        "Check and render Herald message templates",
		Long:         "Check and render Herald message templates offline, against fixture data instead of a live server.",
		SilenceUsage: true,
	}
	root.AddCommand(newCheckCmd(), newRenderCmd(), newSchemaCmd(), newFunctionsCmd(), newVersionCmd())
	return root
}

func newCheckCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "check [FILE]",
		Short: "Parse a message file or a single template",
		Long:  "Parse every text field of a YAML message file, or the template given with --text, and report errors with their position.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchema(args, text)
			if err != nil {
				return err
			}
			errs := template.Check(schema)
			out := cmd.OutOrStdout()
			for _, e := range errs {
				fmt.Fprintln(out, e.Error())
				fmt.Fprintln(out)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%w: %d field(s) failed", errInvalid, len(errs))
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "check a single template instead of a file")
	return cmd
}

type renderOptions struct {
	text        string
	contextPath string
	now         string
	mentions    bool
	watch       bool
	timeout     time.Duration
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render [FILE]",
		Short: "Render a message against fixture data",
		Long:  "Render a YAML message file, or the template given with --text, against the guild and member described in --context. Messages print as Discord JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.watch {
				return renderOnce(cmd, args, opts)
			}
			if err := renderOnce(cmd, args, opts); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			paths := append([]string(nil), args...)
			if opts.contextPath != "" {
				paths = append(paths, opts.contextPath)
			}
			if len(paths) == 0 {
				return errors.New("--watch needs a FILE or --context")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchFiles(ctx, paths, func() {
				fmt.Fprintln(cmd.ErrOrStderr(), "---")
				if err := renderOnce(cmd, args, opts); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
			})
		},
	}
	cmd.Flags().StringVar(&opts.text, "text", "", "render a single template instead of a file")
	cmd.Flags().StringVarP(&opts.contextPath, "context", "c", "", "YAML fixture with guild, member and role data")
	cmd.Flags().StringVar(&opts.now, "now", "", "evaluation time as RFC 3339 (default: current time)")
	cmd.Flags().BoolVar(&opts.mentions, "mentions", false, "allow mentions in the rendered message")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "render again whenever FILE or the fixture changes")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "render timeout")
	return cmd
}

func renderOnce(cmd *cobra.Command, args []string, opts renderOptions) error {
	schema, err := loadSchema(args, opts.text)
	if err != nil {
		return err
	}
	if errs := template.Check(schema); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(cmd.ErrOrStderr(), e.Error())
		}
		return errInvalid
	}

	at := time.Now()
	if opts.now != "" {
		if at, err = time.Parse(time.RFC3339, opts.now); err != nil {
			return fmt.Errorf("--now: %w", err)
		}
	}
	fix, err := loadFixture(opts.contextPath)
	if err != nil {
		return err
	}
	c, err := fix.toContext(at)
	if err != nil {
		return err
	}

	evaluator := template.NewEvaluator(nil, nil)
	evaluator.WithClock(fixedClock(at))
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	if opts.text != "" {
		parsed, err := template.ParseText(opts.text)
		if err != nil {
			return err
		}
		out, err := evaluator.EvaluateText(ctx, parsed, c)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}

	parsed, err := template.ParseMessage(schema, false)
	if err != nil {
		return err
	}
	send, err := evaluator.EvaluateMessage(ctx, parsed, c, opts.mentions)
	if err != nil {
		return err
	}
	utils.SanitizeEmbeds(send.Embeds)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(send)
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of message files",
		Long:  "Print the JSON Schema of YAML message files, for editor validation and completion.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &jsonschema.Reflector{
				FieldNameTag:   "yaml",
				DoNotReference: true,
				ExpandedStruct: true,
			}
			s := r.Reflect(&template.MessageSchema{})
			s.Title = "Herald message"
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List template functions by scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, scope := range []template.Scope{template.ScopeGlobal, template.ScopeMember, template.ScopeUser, template.ScopeRole, template.ScopeGuild} {
				fmt.Fprintf(out, "%s:\n", scope)
				for _, name := range template.Default().Names(scope) {
					fmt.Fprintf(out, "  %s\n", name)
				}
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "heraldctl %s\n", version)
		},
	}
}

func loadSchema(args []string, text string) (template.MessageSchema, error) {
	var schema template.MessageSchema
	switch {
	case text != "" && len(args) > 0:
		return schema, errors.New("give either FILE or --text, not both")
	case text != "":
		schema.Content = text
		return schema, nil
	case len(args) == 0:
		return schema, errors.New("give a FILE or --text")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return schema, err
	}
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return schema, fmt.Errorf("parse %s: %w", args[0], err)
	}
	return schema, nil
}
