package jobs

import (
	"context"
	"time"

	"github.com/wonny/tradecycle/internal/report"
	"github.com/wonny/tradecycle/pkg/logger"
)

// Publisher sends a periodic report; implemented by report.Publisher
type Publisher interface {
	Publish(ctx context.Context, kind report.Kind, now time.Time) (*report.Summary, bool, error)
}

var reportSchedules = map[report.Kind]string{
	report.Daily:   "0 0 17 * * MON-FRI", // 장 마감 후
	report.Weekly:  "0 0 9 * * SUN",
	report.Monthly: "0 0 10 1 * *",
}

// ReportJob publishes one kind of performance report
type ReportJob struct {
	kind      report.Kind
	publisher Publisher
	now       func() time.Time
	logger    *logger.Logger
}

// NewReportJob creates a report job
func NewReportJob(kind report.Kind, p Publisher, log *logger.Logger) *ReportJob {
	return &ReportJob{kind: kind, publisher: p, now: time.Now, logger: log.WithComponent("jobs")}
}

// NewReportJobs creates the daily, weekly and monthly report jobs
func NewReportJobs(p Publisher, log *logger.Logger) []*ReportJob {
	return []*ReportJob{
		NewReportJob(report.Daily, p, log),
		NewReportJob(report.Weekly, p, log),
		NewReportJob(report.Monthly, p, log),
	}
}

// Name returns the job name
func (j *ReportJob) Name() string {
	return string(j.kind) + "_report"
}

// Schedule returns the cron schedule
func (j *ReportJob) Schedule() string {
	return reportSchedules[j.kind]
}

// Retries asks the scheduler to retry transient failures
func (j *ReportJob) Retries() (int, time.Duration) {
	return 2, time.Minute
}

// Run publishes the report for the current period
func (j *ReportJob) Run(ctx context.Context) error {
	summary, sent, err := j.publisher.Publish(ctx, j.kind, j.now())
	if err != nil {
		return err
	}
	if !sent {
		j.logger.WithField("kind", j.kind).Info("Report already published for this period")
		return nil
	}

	j.logger.WithFields(map[string]interface{}{
		"kind":   j.kind,
		"period": summary.Period.Label,
		"trades": summary.TradeCount,
	}).Info("Report published")
	return nil
}
