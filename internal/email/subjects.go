package email

const (
	subjectLeadFollowUp     = "Let's talk about your project"
	subjectHighValueLeadFmt = "High-value lead: %s (score %d)"
	subjectProposalFmt      = "Proposal %s from %s"
	subjectMonthlyReportFmt = "Your %s report from %s"
)
