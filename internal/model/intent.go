package model

// Intent is the closed classification of what a user message asks for.
type Intent string

const (
	IntentStatusReport    Intent = "STATUS_REPORT"
	IntentActionProposal  Intent = "ACTION_PROPOSAL"
	IntentFinancialStatus Intent = "FINANCIAL_STATUS"
	IntentUpload          Intent = "UPLOAD_INTENT"
	IntentTrafficAnalysis Intent = "TRAFFIC_ANALYSIS"
	IntentIRDeduction     Intent = "IR_DEDUCTION"
	IntentIRDeadline      Intent = "IR_DEADLINE"
	IntentIRRefund        Intent = "IR_REFUND"
	IntentIRGeneral       Intent = "IR_GENERAL"
	IntentUnknown         Intent = "UNKNOWN"
)

// AllIntents lists every tag the classifier can produce.
func AllIntents() []Intent {
	return []Intent{
		IntentStatusReport,
		IntentActionProposal,
		IntentFinancialStatus,
		IntentUpload,
		IntentTrafficAnalysis,
		IntentIRDeduction,
		IntentIRDeadline,
		IntentIRRefund,
		IntentIRGeneral,
		IntentUnknown,
	}
}

// IsTax reports whether the intent belongs to the income-tax family.
func (i Intent) IsTax() bool {
	switch i {
	case IntentIRDeduction, IntentIRDeadline, IntentIRRefund, IntentIRGeneral:
		return true
	}
	return false
}
