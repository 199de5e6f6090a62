package search

import "fmt"

const collectionSystemPrompt = "You are an expert on a business record system. " +
	"You are given a user request and the list of available collections. " +
	"Identify the single most relevant collection for the request. " +
	"Reply ONLY with the technical collection name (e.g. invoice), with no explanation."

func collectionPrompt(question, collections string) string {
	return fmt.Sprintf(
		"User request:\n%s\n\nAvailable collections:\n%s\n\nWhich collection is the most relevant?",
		question, collections)
}

func filterSystemPrompt(today string) string {
	return "You are an expert on a business record system. You must generate a valid filter " +
		"expression as a Python-style list of tuples. " +
		"Reply ONLY with the filter between ```python and ```, with no explanation. " +
		"A filter is a list of (field, operator, value) tuples. " +
		"Valid operators are: =, !=, >, >=, <, <=, like, ilike, in, not in, " +
		"child_of, parent_of, =like, =ilike, not like, not ilike. " +
		"Logical operators are: '&' (AND, the default), '|' (OR), '!' (NOT). " +
		"Use ONLY fields that exist in the collection. " +
		"IMPORTANT for relation (many2one) fields: " +
		"- To filter a relation field by its name/label, ALWAYS use the 'ilike' operator " +
		"directly on the field (e.g. ('partner_id', 'ilike', 'sefam')). " +
		"The record store resolves label search on relation fields with ilike. " +
		"- NEVER use '=' with a text value on a relation field. " +
		"- '=' on a relation field expects a numeric id. " +
		"For dates, use ONLY datetime.datetime and datetime.timedelta. " +
		"Today's date is: " + today + ". " +
		"IMPORTANT for date computations: " +
		"- First day of the current month: datetime.datetime.now().strftime('%Y-%m-01') " +
		"- For the current month, use the first-day-of-next-month technique with <: " +
		"('date', '>=', datetime.datetime.now().strftime('%Y-%m-01')), " +
		"('date', '<', (datetime.datetime.now().replace(day=1) + datetime.timedelta(days=32)).replace(day=1).strftime('%Y-%m-%d')) " +
		"- NEVER use a fixed day like 28, 30 or 31 as the last day of a month. " +
		"- Do NOT use the calendar module, it is not available. " +
		"- ONLY datetime.datetime, datetime.timedelta and datetime.date are available. " +
		"IMPORTANT for periodic breakdowns: if the request asks for results by period " +
		"('by year', 'by month', 'by quarter'), do NOT restrict the date in the filter at all; " +
		"the period handling belongs to the grouping, not the filter. " +
		"In that case only exclude rows without a date, e.g. ('date', '!=', None)."
}

func filterPrompt(collection, fields, question string) string {
	return fmt.Sprintf(
		"Collection: %s\n\nAvailable fields in this collection:\n%s\n\nUser request:\n%s\n\nGenerate the filter expression for this request.",
		collection, fields, question)
}

const presentationSystemPrompt = "You decide how search results should be displayed. " +
	"Given a user request, reply with exactly one word: " +
	"'tree' for a plain list, 'graph' for a chart, or 'pivot' for a cross-tab. " +
	"No explanation."

func presentationPrompt(question string) string {
	return fmt.Sprintf("User request:\n%s\n\nWhich display fits best: tree, graph or pivot?", question)
}

const groupingSystemPrompt = "You pick the grouping key for a chart or cross-tab of search results. " +
	"Reply with exactly one grouping key and nothing else. " +
	"For date fields, append a period: field:year, field:quarter, field:month, field:week or field:day. " +
	"For non-date fields, reply with the bare field name. " +
	"Reply 'none' if no grouping applies."

func groupingPrompt(question, fields string) string {
	return fmt.Sprintf(
		"Available fields:\n%s\n\nUser request:\n%s\n\nWhich single grouping key applies?",
		fields, question)
}
