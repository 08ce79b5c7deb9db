package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bustogether/pkg/types"
)

var dayNames = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// parseDays accepts weekday numbers (0 = Sunday) or three-letter names, comma separated
func parseDays(raw string) ([]int, error) {
	var days []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		day := -1
		if n, err := strconv.Atoi(part); err == nil {
			day = n
		} else {
			for i, name := range dayNames {
				if strings.HasPrefix(part, name) {
					day = i
					break
				}
			}
		}
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("%w: %q", types.ErrInvalidDays, part)
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return nil, types.ErrInvalidDays
	}
	return days, nil
}

func formatDays(days []int) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d < len(dayNames) {
			names = append(names, dayNames[d])
		}
	}
	return strings.Join(names, ",")
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule management commands",
	}

	cmd.AddCommand(newScheduleAddCmd())
	cmd.AddCommand(newScheduleListCmd())
	cmd.AddCommand(newScheduleRmCmd())
	return cmd
}

func newScheduleAddCmd() *cobra.Command {
	var (
		routeID  string
		days     string
		start    string
		end      string
		chatName string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a weekly chat window to a route",
		Long:  "Adds a recurring window. Times are HH:MM in the configured timezone and the window must end on the day it starts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseDays(days)
			if err != nil {
				return err
			}

			repo, err := openRepository(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			schedule := &types.Schedule{
				RouteID:  routeID,
				Days:     parsed,
				Start:    start,
				End:      end,
				ChatName: chatName,
				Active:   !inactive,
			}
			if err := repo.CreateSchedule(cmd.Context(), schedule); err != nil {
				return fmt.Errorf("add schedule: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added schedule %s for route %s (%s %s-%s)\n",
				schedule.ID, schedule.RouteID, formatDays(schedule.Days), schedule.Start, schedule.End)
			return nil
		},
	}

	cmd.Flags().StringVar(&routeID, "route", "", "route id (required)")
	cmd.Flags().StringVar(&days, "days", "mon,tue,wed,thu,fri", "weekdays as numbers (0=Sunday) or names")
	cmd.Flags().StringVar(&start, "start", "", "window start HH:MM (required)")
	cmd.Flags().StringVar(&end, "end", "", "window end HH:MM (required)")
	cmd.Flags().StringVar(&chatName, "name", "", "chat room name (required)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the schedule disabled")
	cmd.MarkFlagRequired("route")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newScheduleListCmd() *cobra.Command {
	var routeID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			var schedules []*types.Schedule
			if routeID != "" {
				schedules, err = repo.GetSchedulesForRoute(cmd.Context(), routeID)
			} else {
				schedules, err = repo.GetAllSchedules(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("list schedules: %w", err)
			}
			if len(schedules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No schedules.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tROUTE\tDAYS\tWINDOW\tCHAT\tACTIVE")
			for _, s := range schedules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s-%s\t%s\t%t\n",
					s.ID, s.RouteID, formatDays(s.Days), s.Start, s.End, s.ChatName, s.Active)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&routeID, "route", "", "only schedules for this route")
	return cmd
}

func newScheduleRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <schedule-id>",
		Short: "Remove a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.DeleteSchedule(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("remove schedule: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed schedule %s\n", args[0])
			return nil
		},
	}
}
