package forecast

import (
	"fmt"
	"io"
	"time"

	"github.com/gabriellapppaixao/causal-impact-mvp/forecast/util"
	"github.com/gabriellapppaixao/causal-impact-mvp/statespace"
)

// Model represents a serializeable format of a forecast storing the forecast options, fit
// scores, fitted variances and the final filtered state
type Model struct {
	TrainStartTime time.Time         `json:"train_start_time"`
	TrainEndTime   time.Time         `json:"train_end_time"`
	Options        *Options          `json:"options"`
	Params         statespace.Params `json:"params"`
	State          *statespace.State `json:"state"`
	Scores         *Scores           `json:"scores"`
}

func (m Model) TablePrint(w io.Writer, prefix, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%sForecast:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s%sTraining: %s to %s\n", prefix, util.IndentExpand(indent, 1),
		m.TrainStartTime.Format(time.DateOnly), m.TrainEndTime.Format(time.DateOnly)); err != nil {
		return err
	}

	if err := m.Options.TablePrint(w, prefix, indent, 1); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s%sLocal Level:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sLevel Variance: %.3f    Observation Variance: %.3f\n",
		prefix, util.IndentExpand(indent, 1),
		m.Params.LevelVariance, m.Params.ObsVariance); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sLog Likelihood: %.3f    Iterations: %d    Status: %s\n",
		prefix, util.IndentExpand(indent, 1),
		m.Params.LogLikelihood, m.Params.Iterations, m.Params.Status); err != nil {
		return err
	}
	if m.State != nil {
		if _, err := fmt.Fprintf(w, "%s%sLevel: %.3f    Level Variance: %.3f\n",
			prefix, util.IndentExpand(indent, 1),
			m.State.Level, m.State.Variance); err != nil {
			return err
		}
	}

	if m.Scores != nil {
		if _, err := fmt.Fprintf(w, "%s%sScores:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s%sMAPE: %.3f    MSE: %.3f    R2: %.3f\n",
			prefix, util.IndentExpand(indent, 1),
			m.Scores.MAPE,
			m.Scores.MSE,
			m.Scores.R2,
		); err != nil {
			return err
		}
	}
	return nil
}
