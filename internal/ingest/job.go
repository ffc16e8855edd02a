package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-insights/internal/domain"
	"github.com/dvloznov/finance-insights/internal/jobs"
	"github.com/dvloznov/finance-insights/internal/logger"
)

// HandleJob is a jobs.JobHandler running queued import jobs. Schema errors
// and missing sources fail the job immediately; anything else (a flaky
// bucket or store) is left to the queue's retry policy.
func (i *Importer) HandleJob(ctx context.Context, job jobs.Job) error {
	importJob, ok := job.(*jobs.ImportJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("HandleJob: unexpected job type: %T", job))
	}

	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"job_id": importJob.JobID,
		"source": importJob.Source,
	})
	ctx = logger.WithContext(ctx, log)
	log.Info().Int("retry_count", importJob.RetryCount).Msg("Processing import job")

	importer := i
	if importJob.DefaultUserID != "" {
		opts := i.opts
		opts.DefaultUserID = importJob.DefaultUserID
		importer = NewImporter(i.source, i.store, opts)
	}

	res, err := importer.Import(ctx, importJob.Source)
	if err != nil {
		var ingestErr *domain.IngestionError
		if errors.As(err, &ingestErr) || errors.Is(err, ErrSourceNotFound) {
			return jobs.Permanent(err)
		}
		return err
	}

	importJob.RowsImported = res.Rows
	importJob.Users = res.Users
	return nil
}
