package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"roster/internal/adapters/export"
	"roster/internal/core"
	"roster/pkg/domain"
)

type filterFlags struct {
	search string
	gender string
	status string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.search, "search", "s", "", "case-insensitive name search")
	fs.StringVar(&f.gender, "gender", core.FilterAll, "Male, Female, Other or All")
	fs.StringVar(&f.status, "status", core.FilterAll, "Active, Inactive or All")
}

func (f *filterFlags) criteria() (core.Criteria, error) {
	gender, err := core.ParseGenderFilter(f.gender)
	if err != nil {
		return core.Criteria{}, err
	}
	status, err := core.ParseStatusFilter(f.status)
	if err != nil {
		return core.Criteria{}, err
	}
	return core.Criteria{Search: f.search, Gender: gender, Status: status}, nil
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List employees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := filters.criteria()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				if _, err := a.requireLogin(ctx); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				sum := a.svc.Summary()
				fmt.Fprintf(out, "Total: %d  Active: %d  Inactive: %d\n\n", sum.Total, sum.Active, sum.Inactive)
				return writeTable(out, a.svc.ListEmployees(criteria))
			})
		},
	}
	filters.register(cmd.Flags())
	return cmd
}

func writeTable(w io.Writer, list []core.Employee) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No employees found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tGENDER\tDOB\tSTATE\tSTATUS")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.FullName, e.Gender, e.DOB, e.State, e.StatusLabel())
	}
	return tw.Flush()
}

type employeeFlags struct {
	name   string
	gender string
	dob    string
	state  string
	active bool
	image  string
}

func (f *employeeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "full name")
	fs.StringVar(&f.gender, "gender", "", "Male, Female or Other")
	fs.StringVar(&f.dob, "dob", "", "date of birth (YYYY-MM-DD)")
	fs.StringVar(&f.state, "state", "", "state of residence")
	fs.BoolVar(&f.active, "active", true, "whether the employee is active")
	fs.StringVar(&f.image, "image", "", "path to a profile image")
}

// apply overlays the flags the user set onto base.
func (f *employeeFlags) apply(fs *pflag.FlagSet, base core.EmployeeFields) core.EmployeeFields {
	if fs.Changed("name") {
		base.FullName = f.name
	}
	if fs.Changed("gender") {
		base.Gender = core.Gender(f.gender)
	}
	if fs.Changed("dob") {
		base.DOB = f.dob
	}
	if fs.Changed("state") {
		base.State = f.state
	}
	if fs.Changed("active") {
		base.IsActive = f.active
	}
	return base
}

func uploadImage(ctx context.Context, a *app, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return a.svc.UploadImage(ctx, file, mime.TypeByExtension(strings.ToLower(filepath.Ext(path))))
}

func reportMutation(w io.Writer, err error, res core.Result, message string) error {
	var verr core.ValidationError
	if errors.As(err, &verr) {
		for _, field := range verr.Errors.Fields() {
			fmt.Fprintf(w, "  %s: %s\n", field, verr.Errors[field])
		}
		return errors.New("employee is invalid")
	}
	if err != nil {
		return err
	}
	for _, v := range res.Violations {
		fmt.Fprintf(w, "warning: %s\n", v.Message)
	}
	fmt.Fprintln(w, message)
	return nil
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var fields employeeFlags
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add an employee",
		Example: `  roster add --name "Jane Roe" --gender Female --dob 1991-04-02 --state Ohio`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				ctx, err := a.requireLogin(ctx)
				if err != nil {
					return err
				}
				input := fields.apply(cmd.Flags(), domain.NewEmployeeFields())
				if fields.image != "" {
					if input.ProfileImage, err = uploadImage(ctx, a, fields.image); err != nil {
						return err
					}
				}
				created, res, err := a.svc.CreateEmployee(ctx, input)
				return reportMutation(cmd.OutOrStdout(), err, res, fmt.Sprintf("%s (id %s)", core.MsgEmployeeAdded, created.ID))
			})
		},
	}
	fields.register(cmd.Flags())
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		fields     employeeFlags
		clearImage bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an employee",
		Long:  "Updates the given employee. Only the flags provided change.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				ctx, err := a.requireLogin(ctx)
				if err != nil {
					return err
				}
				current, err := a.svc.Employee(id)
				if err != nil {
					return err
				}
				input := fields.apply(cmd.Flags(), current.Fields())
				switch {
				case clearImage:
					input.ProfileImage = ""
				case fields.image != "":
					if input.ProfileImage, err = uploadImage(ctx, a, fields.image); err != nil {
						return err
					}
				}
				_, res, err := a.svc.UpdateEmployee(ctx, id, input)
				return reportMutation(cmd.OutOrStdout(), err, res, core.MsgEmployeeUpdated)
			})
		},
	}
	fields.register(cmd.Flags())
	cmd.Flags().BoolVar(&clearImage, "clear-image", false, "remove the profile image")
	return cmd
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete an employee",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				ctx, err := a.requireLogin(ctx)
				if err != nil {
					return err
				}
				e, err := a.svc.Employee(id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Are you sure you want to delete %s?", e.FullName)) {
					fmt.Fprintln(out, "Cancelled")
					return nil
				}
				res, err := a.svc.DeleteEmployee(ctx, id)
				return reportMutation(out, err, res, core.MsgEmployeeDeleted)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func newPrintCmd(opts *rootOptions) *cobra.Command {
	var (
		filters filterFlags
		format  string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Render the filtered roster for printing or export",
		Long: `Renders the filtered roster as a printable HTML page or as CSV, JSON or
YAML. Output goes to stdout unless --output is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			criteria, err := filters.criteria()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				if _, err := a.requireLogin(ctx); err != nil {
					return err
				}
				art, err := export.Render(f, export.Document{Employees: a.svc.ListEmployees(criteria)})
				if err != nil {
					return err
				}
				if output == "" {
					_, err = cmd.OutOrStdout().Write(art.Payload)
					return err
				}
				if err := os.WriteFile(output, art.Payload, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
				return nil
			})
		},
	}
	filters.register(cmd.Flags())
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatHTML), "html, csv, json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file")
	return cmd
}
