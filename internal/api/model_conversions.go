package api

import (
	"garment-lab/internal/guard"
	"garment-lab/internal/pipeline"
	"garment-lab/pkg/api"
)

func convertMatches(ms []guard.Match) []api.PolicyMatch {
	matches := make([]api.PolicyMatch, 0, len(ms))
	for _, m := range ms {
		matches = append(matches, api.PolicyMatch{Term: m.Term, Group: m.Group})
	}
	return matches
}

func convertRun(run pipeline.Run) api.PipelineRun {
	out := api.PipelineRun{
		Id:            run.ID,
		Input:         run.Input,
		Stage:         string(run.Stage),
		Status:        string(run.Status),
		Description:   run.Description,
		Specification: run.Specification,
		ImageURL:      run.ImageURL,
		Validation:    string(run.Validation),
	}
	if run.Failure != nil {
		out.Failure = &api.PipelineFailure{
			Stage:   string(run.Failure.Stage),
			Code:    run.Failure.Code,
			Message: run.Failure.Message,
		}
	}
	return out
}
