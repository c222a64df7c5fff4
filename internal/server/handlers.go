package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"time"

	causalimpact "github.com/gabriellapppaixao/causal-impact-mvp"
	"github.com/gabriellapppaixao/causal-impact-mvp/ingest"
	"github.com/gabriellapppaixao/causal-impact-mvp/statespace"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

var (
	ErrMissingFile = errors.New("missing file upload")
	ErrBadRequest  = errors.New("invalid request")
)

// AnalyzeRequest holds the form fields of an analysis upload. Dates are YYYY-MM-DD.
type AnalyzeRequest struct {
	Metric       string `json:"metric"`
	Sheet        string `json:"sheet"`
	Intervention string `json:"intervention" validate:"omitempty,datetime=2006-01-02"`
	PreStart     string `json:"pre_start" validate:"omitempty,datetime=2006-01-02"`
	PreEnd       string `json:"pre_end" validate:"omitempty,datetime=2006-01-02"`
	PostStart    string `json:"post_start" validate:"omitempty,datetime=2006-01-02"`
	PostEnd      string `json:"post_end" validate:"omitempty,datetime=2006-01-02"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Window converts the request dates into an analysis window
func (req AnalyzeRequest) Window() (causalimpact.Window, error) {
	return causalimpact.ParseWindow(req.Intervention, req.PreStart, req.PreEnd, req.PostStart, req.PostEnd)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an analysis error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrMissingFile), causalimpact.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, statespace.ErrFitConvergence), errors.Is(err, context.DeadlineExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.logger.WarnContext(r.Context(), "analysis failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:     err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (s *Server) parseRequest(w http.ResponseWriter, r *http.Request) (AnalyzeRequest, multipart.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return AnalyzeRequest{}, nil, "", fmt.Errorf("unable to parse form, %v, %w", err, ErrBadRequest)
	}

	req := AnalyzeRequest{
		Metric:       r.FormValue("metric"),
		Sheet:        r.FormValue("sheet"),
		Intervention: r.FormValue("intervention"),
		PreStart:     r.FormValue("pre_start"),
		PreEnd:       r.FormValue("pre_end"),
		PostStart:    r.FormValue("post_start"),
		PostEnd:      r.FormValue("post_end"),
	}
	if err := s.validate.Struct(req); err != nil {
		return AnalyzeRequest{}, nil, "", fmt.Errorf("%v, %w", err, ErrBadRequest)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return AnalyzeRequest{}, nil, "", ErrMissingFile
	}
	return req, file, header.Filename, nil
}

// analyze reads the uploaded table and runs the analyzer on the requested metric. An
// empty metric selects the first metric column.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*causalimpact.Report, error) {
	req, file, filename, err := s.parseRequest(w, r)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	window, err := req.Window()
	if err != nil {
		return nil, err
	}

	resolver := s.analyzer.Options().Resolver
	var tbl *ingest.Table
	if req.Sheet != "" {
		tbl, err = ingest.ReadXLSX(file, req.Sheet, resolver)
	} else {
		tbl, err = ingest.Read(file, filename, resolver)
	}
	if err != nil {
		return nil, err
	}

	metric := req.Metric
	if metric == "" {
		metric = tbl.MetricNames[0]
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	report, err := s.analyzer.RunTable(ctx, tbl, metric, window)
	s.metrics.ObserveRun(report, err, time.Since(start))
	return report, err
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	report, err := s.analyze(w, r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteJSON(w); err != nil {
		s.logger.ErrorContext(r.Context(), "unable to write report", slog.String("error", err.Error()))
	}
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	report, err := s.analyze(w, r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.PlotFit(w); err != nil {
		s.logger.ErrorContext(r.Context(), "unable to render chart", slog.String("error", err.Error()))
	}
}
