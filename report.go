package causalimpact

import (
	"fmt"
	"io"
	"time"

	"github.com/gabriellapppaixao/causal-impact-mvp/effect"
	"github.com/gabriellapppaixao/causal-impact-mvp/event"
	"github.com/gabriellapppaixao/causal-impact-mvp/forecast"
	"github.com/gabriellapppaixao/causal-impact-mvp/forecast/util"
	"github.com/gabriellapppaixao/causal-impact-mvp/period"
	"github.com/gabriellapppaixao/causal-impact-mvp/stats"
	"github.com/gabriellapppaixao/causal-impact-mvp/timedataset"
	"github.com/goccy/go-json"
)

// Preview is a glimpse of the input handed to the presentation layer
type Preview struct {
	Head        *timedataset.TimeDataset `json:"head"`
	Description stats.Description        `json:"description"`
}

// Report is everything a presentation layer needs to render one analysis run
type Report struct {
	RunID  string `json:"run_id"`
	Metric string `json:"metric,omitempty"`

	Preview      Preview        `json:"preview"`
	Periods      period.PrePost `json:"periods"`
	Intervention time.Time      `json:"intervention"`
	Summary      effect.Summary `json:"summary"`
	Holidays     []event.Event  `json:"holidays"`
	Model        forecast.Model `json:"model"`

	// Series is the full normalized series and Counterfactual its forecast over the post
	// period
	Series         *timedataset.TimeDataset `json:"series"`
	Counterfactual *forecast.Results        `json:"counterfactual"`
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode report, %w", err)
	}
	_, err = w.Write(append(out, '\n'))
	return err
}

func (r *Report) TablePrint(w io.Writer, prefix, indent string) error {
	if r == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%s%sCausal Impact: %s\n", prefix, util.IndentExpand(indent, 0), r.RunID); err != nil {
		return err
	}
	if r.Metric != "" {
		if _, err := fmt.Fprintf(w, "%s%sMetric: %s\n", prefix, util.IndentExpand(indent, 1), r.Metric); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%s%sPre Period: %s    Post Period: %s    Intervention: %s\n",
		prefix, util.IndentExpand(indent, 1),
		r.Periods.Pre, r.Periods.Post, r.Intervention.Format(time.DateOnly)); err != nil {
		return err
	}

	d := r.Preview.Description
	if _, err := fmt.Fprintf(w, "%s%sPreview:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sCount: %d    Missing: %d    Outliers: %d\n",
		prefix, util.IndentExpand(indent, 1), d.Count, d.Missing, d.Outliers); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sMean: %.3f    Std Dev: %.3f    Min: %.3f    Median: %.3f    Max: %.3f\n",
		prefix, util.IndentExpand(indent, 1), d.Mean, d.StdDev, d.Min, d.Median, d.Max); err != nil {
		return err
	}
	if head := r.Preview.Head; head != nil {
		for i := range head.T {
			if _, err := fmt.Fprintf(w, "%s%s%s  %.3f\n",
				prefix, util.IndentExpand(indent, 2), head.T[i].Format(time.DateOnly), head.Y[i]); err != nil {
				return err
			}
		}
	}

	if err := r.Summary.TablePrint(w, prefix, indent, 0); err != nil {
		return err
	}

	if len(r.Holidays) > 0 {
		if _, err := fmt.Fprintf(w, "%s%sHolidays in Post Period:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
			return err
		}
		for _, h := range r.Holidays {
			if _, err := fmt.Fprintf(w, "%s%s%s\n", prefix, util.IndentExpand(indent, 1), h); err != nil {
				return err
			}
		}
	}

	return r.Model.TablePrint(w, prefix, indent)
}
