package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/panyam/monexa"
)

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// dateRange registers -from and -to on fs
type dateRange struct {
	from, to string
}

func (r *dateRange) register(fs *flag.FlagSet) {
	fs.StringVar(&r.from, "from", "", "start date (YYYY-MM-DD)")
	fs.StringVar(&r.to, "to", "", "end date, inclusive (YYYY-MM-DD)")
}

// parse returns the range as times; a missing bound is the zero time
func (r *dateRange) parse() (start, end time.Time, err error) {
	if r.from != "" {
		if start, err = time.Parse(time.DateOnly, r.from); err != nil {
			return start, end, fmt.Errorf("invalid -from date %q", r.from)
		}
	}
	if r.to != "" {
		if end, err = time.Parse(time.DateOnly, r.to); err != nil {
			return start, end, fmt.Errorf("invalid -to date %q", r.to)
		}
		end = end.AddDate(0, 0, 1).Add(-time.Second)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("-to is before -from")
	}
	return start, end, nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (or MONEXA_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("MONEXA_PASSWORD")
	}
	if *email == "" || *password == "" {
		return errors.New("login requires -email and -password")
	}

	result, err := a.api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	name := *email
	if result.User != nil && result.User.Name != "" {
		name = result.User.Name
	}
	fmt.Fprintf(a.out, "logged in as %s\n", name)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if !a.store.IsAuthenticated() {
		// still clear whatever partial state is left
		if err := a.store.ClearTokens(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	if err := a.api.Logout(ctx); err != nil {
		a.logger.Warn("logout incomplete", zap.Error(err))
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	user, err := a.api.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> (id %d)\n", user.Name, user.Email, user.ID)
	return nil
}

func cmdRecords(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "records")
	var dr dateRange
	dr.register(fs)
	category := fs.Uint64("category", 0, "only records in this category id")
	search := fs.String("search", "", "only records whose description contains text")
	sortBy := fs.String("sort", monexa.SortByDate, "sort by date or amount")
	if err := fs.Parse(args); err != nil {
		return err
	}
	start, end, err := dr.parse()
	if err != nil {
		return err
	}

	records, err := a.api.ListRecords(ctx, monexa.RecordFilter{
		StartDate:  start,
		EndDate:    end,
		CategoryID: *category,
		Search:     *search,
		SortBy:     *sortBy,
	})
	if err != nil {
		return err
	}
	names, err := categoryNames(ctx, a)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION")
	for _, r := range records {
		description := ""
		if r.Description != nil {
			description = *r.Description
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f %s\t%s\n",
			r.ID, r.Date.Format(time.DateOnly), names[r.CategoryID], r.Amount, r.Currency, description)
	}
	return tw.Flush()
}

func categoryNames(ctx context.Context, a *app) (map[uint64]string, error) {
	categories, err := a.api.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

func cmdSummary(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "summary")
	var dr dateRange
	dr.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	start, end, err := dr.parse()
	if err != nil {
		return err
	}

	summary, err := a.api.RecordSummary(ctx, start, end)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "net balance: %.2f %s\n", summary.Amount, summary.Currency)
	return nil
}

func cmdCategories(ctx context.Context, a *app, args []string) error {
	categories, err := a.api.ListCategories(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE")
	for _, c := range categories {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Name, c.Type)
	}
	return tw.Flush()
}

func cmdStats(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "stats")
	var dr dateRange
	dr.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	start, end, err := dr.parse()
	if err != nil {
		return err
	}

	stats, err := a.api.CategoryStatistics(ctx, monexa.StatisticsFilter{StartDate: start, EndDate: end})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTYPE\tRECORDS\tTOTAL")
	for _, item := range stats.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\n", item.CategoryName, item.CategoryType, item.RecordCount, item.TotalAmount)
	}
	fmt.Fprintf(tw, "\nincome\t\t\t%.2f %s\n", stats.TotalIncome, stats.Currency)
	fmt.Fprintf(tw, "expense\t\t\t%.2f %s\n", stats.TotalExpense, stats.Currency)
	fmt.Fprintf(tw, "net\t\t\t%.2f %s\n", stats.NetBalance, stats.Currency)
	return tw.Flush()
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "export")
	var dr dateRange
	dr.register(fs)
	output := fs.String("o", "", "output file, or - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		return errors.New("export requires -o")
	}
	start, end, err := dr.parse()
	if err != nil {
		return err
	}

	export, err := a.api.ExportData(ctx, start, end)
	if err != nil {
		return err
	}
	defer export.Close()

	if *output == "-" {
		_, err := io.Copy(a.out, export)
		return err
	}

	f, err := os.OpenFile(*output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *output, err)
	}
	if _, err := io.Copy(f, export); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", *output, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "exported to %s\n", *output)
	return nil
}
