// Package export renders daily plans as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-planner/internal/planner"
)

// Sheet names.
const (
	SheetSchedule = "Schedule"
	SheetTasks    = "Tasks"
)

// ContentType is the media type of a written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	scheduleHeader = []any{"Start", "End", "Activity", "Topic", "Minutes", "Difficulty", "Status", "Objectives"}
	taskHeader     = []any{"Topic", "Title", "Instructions", "Success criteria", "Minutes", "Difficulty", "Status", "Synthetic"}
)

// slot is one row of the schedule sheet.
type slot struct {
	offset int
	row    []any
}

// Workbook builds a workbook with the plan's wall-clock schedule and its
// tasks. The caller closes the returned file.
func Workbook(plan *planner.DailyPlan, tasks []planner.Task) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSchedule); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetTasks); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("add tasks sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}

	if err := writeSchedule(f, plan, bold); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeTasks(f, plan, tasks, bold); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Write renders the workbook to w.
func Write(w io.Writer, plan *planner.DailyPlan, tasks []planner.Task) error {
	f, err := Workbook(plan, tasks)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSchedule(f *excelize.File, plan *planner.DailyPlan, bold int) error {
	meta := [][]any{
		{"Student", plan.StudentID},
		{"Date", plan.Date},
		{"Version", plan.Version},
		{"Budget (min)", plan.BudgetMinutes},
		{"Study (min)", plan.StudyMinutes()},
		{"Breaks (min)", plan.BreakMinutes()},
		{"Level", string(plan.Parameters.StudentLevel)},
		{"Pace", string(plan.Parameters.OptimalPace)},
		{"Degraded stages", strings.Join(plan.Metadata.DegradedStages, ", ")},
	}
	if plan.Metadata.Note != "" {
		meta = append(meta, []any{"Note", plan.Metadata.Note})
	}
	for i, r := range meta {
		if err := setRow(f, SheetSchedule, 1, i+1, r); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetSchedule, "A1", cell(1, len(meta)), bold); err != nil {
		return fmt.Errorf("style metadata: %w", err)
	}

	headerRow := len(meta) + 2
	if err := setRow(f, SheetSchedule, 1, headerRow, scheduleHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSchedule, cell(1, headerRow), cell(len(scheduleHeader), headerRow), bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	slots := make([]slot, 0, len(plan.Allocations)+len(plan.Breaks))
	for _, a := range plan.Allocations {
		slots = append(slots, slot{
			offset: a.StartOffset,
			row: []any{
				clock(a.StartOffset), clock(studyEnd(a, plan.Breaks)), "study", a.TopicName, a.Minutes,
				string(a.Difficulty), string(a.Status), strings.Join(a.Objectives, "; "),
			},
		})
	}
	for _, b := range plan.Breaks {
		slots = append(slots, slot{
			offset: b.OffsetMinutes,
			row: []any{
				clock(b.OffsetMinutes), clock(b.OffsetMinutes + b.DurationMinutes),
				string(b.Kind) + " break", "", b.DurationMinutes, "", "", "",
			},
		})
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].offset < slots[j].offset })

	for i, s := range slots {
		if err := setRow(f, SheetSchedule, 1, headerRow+1+i, s.row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetSchedule, "A", "C", 14); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(SheetSchedule, "D", "D", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func writeTasks(f *excelize.File, plan *planner.DailyPlan, tasks []planner.Task, bold int) error {
	if err := setRow(f, SheetTasks, 1, 1, taskHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetTasks, "A1", cell(len(taskHeader), 1), bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, t := range tasks {
		topic := t.TopicID
		if a, ok := plan.Allocation(t.TopicID); ok {
			topic = a.TopicName
		}
		minutes := 0
		for _, b := range t.TimeBreakdown {
			minutes += b.Minutes
		}
		row := []any{
			topic, t.Title, t.Instructions, strings.Join(t.SuccessCriteria, "; "),
			minutes, string(t.Settings.InitialDifficulty), string(t.Status), t.Synthetic,
		}
		if err := setRow(f, SheetTasks, 1, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetTasks, "A", "D", 30); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

// studyEnd is the wall-clock minute at which a's study time runs out,
// counting the breaks that interrupt it.
func studyEnd(a planner.TopicAllocation, breaks []planner.BreakSlot) int {
	end := a.StartOffset + a.Minutes
	for _, b := range breaks {
		if b.OffsetMinutes >= a.StartOffset && b.OffsetMinutes < end {
			end += b.DurationMinutes
		}
	}
	return end
}

func setRow(f *excelize.File, sheet string, col, row int, values []any) error {
	if err := f.SetSheetRow(sheet, cell(col, row), &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// cell returns the A1 reference of (col, row); both are 1-based and always
// in range here.
func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// clock formats a minute offset from the start of the study day as H:MM.
func clock(offset int) string {
	return fmt.Sprintf("+%d:%02d", offset/60, offset%60)
}
