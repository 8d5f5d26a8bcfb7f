package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/encbench/internal/api/models"
	"github.com/smazurov/encbench/internal/bench"
	"github.com/smazurov/encbench/internal/jobs"
	"github.com/smazurov/encbench/internal/metrics"
	"github.com/smazurov/encbench/internal/stats"
)

func (s *Server) registerJobRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/api/jobs",
		Summary:     "List Jobs",
		Description: "List configured jobs with their latest execution status",
		Tags:        []string{"jobs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.JobListResponse, error) {
		list := s.options.Jobs.List()
		data := models.JobListData{Jobs: make([]models.JobData, 0, len(list))}
		for _, j := range list {
			data.Jobs = append(data.Jobs, s.jobData(j))
		}
		data.Count = len(data.Jobs)
		return &models.JobListResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/api/jobs/{name}",
		Summary:     "Get Job",
		Description: "Get a job and its latest execution status",
		Tags:        []string{"jobs"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.JobInput) (*models.JobResponse, error) {
		j, ok := s.options.Jobs.Get(input.Name)
		if !ok {
			return nil, huma.Error404NotFound(fmt.Sprintf("job %s not found", input.Name))
		}
		return &models.JobResponse{Body: s.jobData(j)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "run-job",
		Method:        http.MethodPost,
		Path:          "/api/jobs/{name}/run",
		Summary:       "Run Job",
		Description:   "Queue a job for execution",
		Tags:          []string{"jobs"},
		DefaultStatus: http.StatusAccepted,
		Security:      withAuth(),
		Errors:        []int{401, 404, 409, 429, 503},
	}, func(_ context.Context, input *models.JobInput) (*models.RunJobResponse, error) {
		if err := s.options.Runner.Submit(input.Name); err != nil {
			return nil, runnerError(err)
		}
		s.logger.Info("Job queued via API", "job", input.Name)
		return &models.RunJobResponse{
			Body: models.RunJobData{
				Job:     input.Name,
				Status:  bench.StatusQueued,
				Message: "Job queued",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-job-results",
		Method:      http.MethodGet,
		Path:        "/api/jobs/{name}/results",
		Summary:     "Get Job Results",
		Description: "Get the run reports of a job's latest execution",
		Tags:        []string{"jobs"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.JobInput) (*models.ResultsResponse, error) {
		if _, ok := s.options.Jobs.Get(input.Name); !ok {
			return nil, huma.Error404NotFound(fmt.Sprintf("job %s not found", input.Name))
		}
		info := s.options.Runner.Status(input.Name)
		data := models.ResultsData{
			Job:     input.Name,
			Status:  info.Status,
			Results: info.Results,
		}
		if data.Results == nil {
			data.Results = []stats.Report{}
		}
		return &models.ResultsResponse{Body: data}, nil
	})
}

func (s *Server) jobData(j jobs.Job) models.JobData {
	info := s.options.Runner.Status(j.Name)
	return models.JobData{
		Job:        j,
		Status:     info.Status,
		LastError:  info.LastError,
		Runs:       info.Runs,
		Aggregates: metrics.GetJobMetrics(j.Name),
	}
}

// runnerError maps runner failures to HTTP errors.
func runnerError(err error) error {
	switch {
	case bench.HasCode(err, bench.CodeJobNotFound):
		return huma.Error404NotFound(err.Error())
	case bench.HasCode(err, bench.CodeJobBusy):
		return huma.Error409Conflict(err.Error())
	case bench.HasCode(err, bench.CodeQueueFull):
		return huma.Error429TooManyRequests(err.Error())
	case bench.HasCode(err, bench.CodeClosed):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError("failed to queue job", err)
	}
}
