package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/homecharge/homecharge/app"
	"github.com/homecharge/homecharge/core/model"
	"github.com/homecharge/homecharge/infra/logger"
	"github.com/homecharge/homecharge/pkg/export"
)

var (
	reportMonth  string
	reportFrom   string
	reportTo     string
	reportFormat string
	reportOut    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize or export cached charging history",
	Long:  "report reads months already mirrored by sync; it never touches the vendor API.",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportMonth, "month", "", "target month (YYYY-MM, default current)")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "range start month (YYYY-MM)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "range end month (YYYY-MM, default current)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format: text, csv or json")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "write to file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	loc := cfg.Charge.Location()
	months, err := reportMonths(loc)
	if err != nil {
		return err
	}

	var (
		sess    []model.Session
		missing []string
	)
	for _, m := range months {
		got, ok := svc.CachedSessions(m.Year(), m.Month())
		if !ok {
			missing = append(missing, m.Format("2006-01"))
			continue
		}
		sess = append(sess, got...)
	}
	sort.Slice(sess, func(i, j int) bool { return sess[i].StartTime.Before(sess[j].StartTime) })
	for _, m := range missing {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: month %s not in cache, run sync first\n", m)
	}

	out := io.Writer(cmd.OutOrStdout())
	if reportOut != "" {
		f, err := os.Create(reportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", reportOut, err)
		}
		defer f.Close()
		out = f
	}

	switch reportFormat {
	case "csv":
		return export.WriteCSV(out, sess)
	case "json":
		return export.WriteJSON(out, sess)
	case "text":
		printSummary(out, sess)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, csv or json)", reportFormat)
	}
}

// reportMonths expands the month flags into the list of months to read,
// oldest first.
func reportMonths(loc *time.Location) ([]time.Time, error) {
	switch {
	case reportFrom != "":
		from, err := parseMonth(reportFrom, loc)
		if err != nil {
			return nil, err
		}
		to := time.Now().In(loc)
		if reportTo != "" {
			if to, err = parseMonth(reportTo, loc); err != nil {
				return nil, err
			}
		}
		if to.Before(from) {
			return nil, fmt.Errorf("report range: %s is before %s", to.Format("2006-01"), from.Format("2006-01"))
		}
		var out []time.Time
		cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, loc)
		end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, loc)
		for !cur.After(end) {
			out = append(out, cur)
			cur = cur.AddDate(0, 1, 0)
		}
		return out, nil
	case reportMonth != "":
		m, err := parseMonth(reportMonth, loc)
		if err != nil {
			return nil, err
		}
		return []time.Time{m}, nil
	default:
		now := time.Now().In(loc)
		return []time.Time{time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)}, nil
	}
}

func printSummary(w io.Writer, sess []model.Session) {
	if len(sess) == 0 {
		fmt.Fprintln(w, "no cached sessions")
		return
	}
	var (
		energies []float64
		total    float64
		home     int
	)
	for _, s := range sess {
		energies = append(energies, s.EnergyKWh)
		total += s.EnergyKWh
		if s.HomeCharger {
			home++
		}
	}
	sort.Float64s(energies)
	mean := stat.Mean(energies, nil)
	median := stat.Quantile(0.5, stat.Empirical, energies, nil)
	p90 := stat.Quantile(0.9, stat.Empirical, energies, nil)

	var first, last time.Time
	for _, s := range sess {
		if s.StartTime.IsZero() {
			continue
		}
		if first.IsZero() {
			first = s.StartTime
		}
		last = s.StartTime
	}

	fmt.Fprintf(w, "sessions:    %d (%d home, %d away)\n", len(sess), home, len(sess)-home)
	if !first.IsZero() {
		fmt.Fprintf(w, "period:      %s to %s\n", first.Format("2006-01-02"), last.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "energy:      %.1f kWh total\n", total)
	fmt.Fprintf(w, "per session: %.1f kWh mean, %.1f median, %.1f p90\n", mean, median, p90)
}
