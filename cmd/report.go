package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/farm-ledger/internal/model"
	"github.com/sells-group/farm-ledger/internal/workflow"
)

var reportCmd = &cobra.Command{
	Use:   "report <project-id>",
	Short: "Print a project's cost and harvest summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("invalid project id %q", args[0])
		}
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		ctx := cmd.Context()
		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()
		return writeReport(ctx, cmd.OutOrStdout(), e.Service, id)
	},
}

// writeReport renders the project summary followed by one row per house
// assignment.
func writeReport(ctx context.Context, out io.Writer, svc *workflow.Service, projectID int64) error {
	rc := model.RequestContext{}
	p, err := svc.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	sum, err := svc.ProjectSummary(ctx, rc, projectID)
	if err != nil {
		return err
	}
	assignments, err := svc.Assignments(ctx, projectID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Project\t%s (%s)\n", p.Name, p.Status)
	fmt.Fprintf(w, "Houses\t%d\n", sum.HouseCount)
	fmt.Fprintf(w, "Area (m²)\t%.2f\n", sum.TotalArea)
	fmt.Fprintf(w, "Direct cost\t%.2f\n", sum.DirectCost)
	fmt.Fprintf(w, "Indirect cost\t%.2f\n", sum.IndirectCost)
	fmt.Fprintf(w, "Total cost\t%.2f\n", sum.TotalCost)
	fmt.Fprintf(w, "Cost per m²\t%.4f\n", sum.CostPerSqm)
	if sum.Unallocated > 0 {
		fmt.Fprintf(w, "Unallocated cost\t%.2f\n", sum.Unallocated)
	}
	fmt.Fprintf(w, "Progress days\t%d\n", sum.ProgressDays)
	fmt.Fprintf(w, "Remaining days\t%d\n", sum.RemainingDays)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "HOUSE\tHARVESTED\tPROGRESS %\tHOUSE COST\tALLOCATED\tREMAINING\tAVG UNIT COST")
	for _, a := range assignments {
		st, err := svc.AssignmentStats(ctx, a.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%.2f\t%.1f\t%.2f\t%.2f\t%.2f\t%.4f\n",
			a.HouseID, st.TotalHarvested, st.Progress, st.TotalHouseCost, st.TotalAllocated, st.RemainingCost, st.AverageUnitCost)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
