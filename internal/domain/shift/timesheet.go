package shift

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rpggio/batchflow/internal/domain/batch"
)

const (
	dateLayout = "1/2/2006"
	timeLayout = "3:04:05 PM"
	activeMark = "Active"
)

// TimesheetColumns is the fixed export header.
var TimesheetColumns = []string{
	"Worker", "Date", "Clock In", "Clock Out", "Hours", "Units Produced", "Log Entries", "Notes",
}

// TimesheetRequest selects shifts for export. Dates are YYYY-MM-DD and
// EndDate includes the whole day. Empty values are unbounded.
type TimesheetRequest struct {
	StartDate string
	EndDate   string
	WorkerID  string
}

// TimesheetRow is one exported shift.
type TimesheetRow struct {
	Worker        string
	Date          string
	ClockIn       string
	ClockOut      string
	Hours         string
	UnitsProduced int
	LogEntries    int
	Notes         string
}

// Values returns the row in column order.
func (r TimesheetRow) Values() []string {
	return []string{
		r.Worker,
		r.Date,
		r.ClockIn,
		r.ClockOut,
		r.Hours,
		fmt.Sprint(r.UnitsProduced),
		fmt.Sprint(r.LogEntries),
		r.Notes,
	}
}

// Timesheet is a rendered export.
type Timesheet struct {
	StartDate string
	EndDate   string
	Rows      []TimesheetRow
}

// Filename names the attachment, e.g. timesheet-2024-01-01-to-all.csv.
func (t *Timesheet) Filename(ext string) string {
	return fmt.Sprintf("timesheet-%s-to-%s.%s", orAll(t.StartDate), orAll(t.EndDate), ext)
}

// Timesheet builds export rows for every matching shift, newest first.
// Units and log counts cover the worker's logs inside each shift window.
func (s *Service) Timesheet(ctx context.Context, req TimesheetRequest) (*Timesheet, error) {
	filter := Filter{WorkerID: req.WorkerID}
	if req.StartDate != "" {
		from, err := s.ParseDay(req.StartDate)
		if err != nil {
			return nil, err
		}
		filter.From = &from
	}
	if req.EndDate != "" {
		day, err := s.ParseDay(req.EndDate)
		if err != nil {
			return nil, err
		}
		before := day.AddDate(0, 0, 1)
		filter.Before = &before
	}

	shifts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing shifts: %w", err)
	}

	sheet := &Timesheet{StartDate: req.StartDate, EndDate: req.EndDate, Rows: []TimesheetRow{}}
	if len(shifts) == 0 {
		return sheet, nil
	}

	logsByWorker, err := s.logsSince(ctx, req.WorkerID, earliestStart(shifts))
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, sh := range shifts {
		row := TimesheetRow{
			Worker:   sh.WorkerName,
			Date:     sh.StartedAt.In(s.loc).Format(dateLayout),
			ClockIn:  sh.StartedAt.In(s.loc).Format(timeLayout),
			ClockOut: activeMark,
			Hours:    activeMark,
			Notes:    sh.Notes,
		}
		if !sh.Open() {
			row.ClockOut = sh.EndedAt.In(s.loc).Format(timeLayout)
			row.Hours = HoursBetween(sh.StartedAt, *sh.EndedAt).StringFixed(2)
		}

		end := sh.End(now)
		for _, l := range logsByWorker[sh.WorkerID] {
			if l.CreatedAt.Before(sh.StartedAt) || l.CreatedAt.After(end) {
				continue
			}
			row.UnitsProduced += l.Quantity
			row.LogEntries++
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

func (s *Service) logsSince(ctx context.Context, workerID string, since time.Time) (map[string][]batch.LogEntry, error) {
	out := make(map[string][]batch.LogEntry)
	if s.logs == nil {
		return out, nil
	}
	entries, err := s.logs.Logs(ctx, batch.LogFilter{WorkerID: workerID, Since: &since})
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}
	for _, e := range entries {
		out[e.WorkerID] = append(out[e.WorkerID], e)
	}
	return out, nil
}

func earliestStart(shifts []Shift) time.Time {
	starts := make([]time.Time, len(shifts))
	for i, sh := range shifts {
		starts[i] = sh.StartedAt
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts[0]
}

func orAll(v string) string {
	if v == "" {
		return "all"
	}
	return v
}
