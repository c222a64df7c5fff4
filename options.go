package causalimpact

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriellapppaixao/causal-impact-mvp/event"
	"github.com/gabriellapppaixao/causal-impact-mvp/forecast"
	"github.com/gabriellapppaixao/causal-impact-mvp/forecast/util"
	"github.com/gabriellapppaixao/causal-impact-mvp/ingest"
	"github.com/gabriellapppaixao/causal-impact-mvp/timedataset"
	"github.com/rickar/cal/v2"
)

const DefaultPreviewRows = 5

var ErrNegativePreviewRows = errors.New("preview rows must be non-negative")

// Options configures every stage of an analysis run
type Options struct {
	ForecastOptions *forecast.Options      `json:"forecast_options"`
	FillPolicy      timedataset.FillPolicy `json:"fill_policy"`

	// PreviewRows is the number of leading rows of the normalized series copied into the
	// report preview
	PreviewRows int `json:"preview_rows"`

	// Holidays observed within the post period are attached to the report. Nil uses the US
	// federal holidays, an empty slice disables the annotation.
	Holidays []*cal.Holiday `json:"-"`

	// Resolver picks the date column of tabular input
	Resolver *ingest.ColumnResolver `json:"-"`

	Logger *slog.Logger `json:"-"`
}

// NewDefaultOptions returns options for a maximum likelihood local level fit with a 95%
// interval and forward then backward gap filling
func NewDefaultOptions() *Options {
	return &Options{
		ForecastOptions: forecast.NewDefaultOptions(),
		FillPolicy:      timedataset.FillForwardBackward,
		PreviewRows:     DefaultPreviewRows,
		Holidays:        event.USHolidays(),
		Resolver:        ingest.NewDefaultColumnResolver(),
	}
}

// Validate fills defaults for unset fields and checks the rest. The receiver is not
// modified.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	res := *o

	fopt, err := res.ForecastOptions.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid forecast options, %w", err)
	}
	res.ForecastOptions = fopt

	if res.FillPolicy == "" {
		res.FillPolicy = timedataset.FillForwardBackward
	}
	if err := res.FillPolicy.Fill(nil); err != nil {
		return nil, err
	}

	if res.PreviewRows < 0 {
		return nil, fmt.Errorf("got %d, %w", res.PreviewRows, ErrNegativePreviewRows)
	}
	if res.PreviewRows == 0 {
		res.PreviewRows = DefaultPreviewRows
	}
	if res.Holidays == nil {
		res.Holidays = event.USHolidays()
	}
	if res.Resolver == nil {
		res.Resolver = ingest.NewDefaultColumnResolver()
	}
	if res.Logger == nil {
		res.Logger = slog.Default()
	}
	return &res, nil
}

func (o *Options) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	if o == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%s%sAnalysis Options:\n", prefix, util.IndentExpand(indent, indentGrowth)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sFill Policy: %s    Holidays: %d\n",
		prefix, util.IndentExpand(indent, indentGrowth+1),
		o.FillPolicy, len(o.Holidays)); err != nil {
		return err
	}
	return o.ForecastOptions.TablePrint(w, prefix, indent, indentGrowth+1)
}
