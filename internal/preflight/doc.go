// Package preflight provides readiness checks for the directories and
// external services DailyBrief depends on.
//
// These checks run in three places:
//   - The daemon logs a snapshot when it starts.
//   - GET /api/status reports them (without network checks).
//   - The CLI "dailybrief status" command runs the full set, including the
//     synthesis LLM health check.
//
// A failing check never blocks generation; it only surfaces the problem.
package preflight
