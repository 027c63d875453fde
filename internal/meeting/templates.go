package meeting

// agendaTemplates seeds a newly created meeting's agenda when the caller
// supplies none. Text mirrors the standard quality-audit forms.
var agendaTemplates = map[Kind][]string{
	KindPlanning: {
		"Review audit objectives and scope",
		"Confirm audit criteria and reference documents",
		"Agree audit timetable and responsibilities",
		"Identify required resources and records",
	},
	KindOpening: {
		"Introduce audit team and confirm attendance",
		"Confirm audit objectives, scope and criteria",
		"Walk through the audit timetable",
		"Confirm communication and reporting channels",
		"Clarify confidentiality and access arrangements",
	},
	KindClosing: {
		"Summarize audit activity and coverage",
		"Present findings and observations",
		"Agree nonconformities and follow-up actions",
		"Confirm reporting timeline",
	},
	KindManagementReview: {
		"Status of actions from previous reviews",
		"Audit results and process performance",
		"Customer feedback and complaints",
		"Resource adequacy and improvement opportunities",
	},
}

// templateAgenda materializes the kind's template as ordered agenda items.
func templateAgenda(kind Kind) []AgendaItem {
	texts := agendaTemplates[kind]
	items := make([]AgendaItem, 0, len(texts))
	for i, text := range texts {
		items = append(items, AgendaItem{Text: text, Order: i + 1})
	}
	return items
}
