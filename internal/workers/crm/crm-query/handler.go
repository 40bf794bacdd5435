// Package crmquery is the Zeebe worker that answers a free-text CRM question
// with the resolved client records and the instruction block built from them.
package crmquery

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/metrics"
	"dibs-assistant/internal/common/observability"
	"dibs-assistant/internal/common/validation"
	"dibs-assistant/internal/crm/augment"
	"dibs-assistant/internal/crm/intent"
	"dibs-assistant/internal/crm/resolver"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "crm-query"

type Handler struct {
	config       *Config
	extractor    *intent.Extractor
	resolver     *resolver.Resolver
	augmenter    *augment.Augmenter
	validator    *validation.Validator
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

func NewHandler(
	cfg *Config,
	extractor *intent.Extractor,
	res *resolver.Resolver,
	validator *validation.Validator,
	obs *observability.Observability,
	log logger.Logger,
) *Handler {
	scoped := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       cfg,
		extractor:    extractor,
		resolver:     res,
		augmenter:    augment.New(cfg.MaxRecords, scoped),
		validator:    validator,
		errorHandler: apperrors.NewErrorHandler(scoped),
		obs:          obs,
		logger:       scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	output := h.Execute(ctx, input)

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, apperrors.NewInternalError(err), start)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		h.record(ctx, start, "send_failed")
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.record(ctx, start, "completed")
}

// Execute answers input.Question. Store failures are absorbed by the resolver,
// so it always produces an output.
func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	q := h.extractor.Extract(input.Question)
	result := h.resolver.Resolve(ctx, q)
	hadCandidate := intent.LooksLikeLookup(input.Question)

	h.logger.Info("crm question resolved", map[string]interface{}{
		"resolution":          string(result.Kind),
		"records":             len(result.Records()),
		"hadCandidatePattern": hadCandidate,
	})

	return &Output{
		Intent:              q,
		Resolution:          result,
		ContextBlock:        strings.TrimSpace(h.augmenter.Augment("", result, hadCandidate, input.Question)),
		HadCandidatePattern: hadCandidate,
	}
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, apperrors.NewInvalidRequestError("parse job variables: " + err.Error())
	}
	if err := h.validator.ValidateValue(validation.CRMQueryJobVariable, raw); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	question, _ := raw["question"].(string)
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.NewInvalidRequestError("question must not be blank")
	}
	return &Input{Question: question}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	std := apperrors.AsStandard(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(std.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, std)
	h.record(ctx, start, "failed")
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.obs.RecordJobProcessed(ctx, elapsed, status)
}
