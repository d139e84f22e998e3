package middlewares

const (
	CtxCorrelationID = "correlation_id"
	CtxReportID      = "report_id"
)
