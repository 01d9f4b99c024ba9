// ABOUTME: Dashboard endpoints: academic stats, announcements and the calendar
// ABOUTME: Calendar merges linked Moodle assignments with the fixed academic events

package mockapi

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/uvci/campus-assistant/internal/api"
	"github.com/uvci/campus-assistant/internal/auth"
)

// calendarLayout is the local date-time format of calendar entries
const calendarLayout = "2006-01-02T15:04:05"

var academicStats = api.Stats{
	OverallProgress:  65,
	CoursesCompleted: 4,
	CoursesOngoing:   6,
	AverageGrade:     14.5,
	CreditsEarned:    18,
	CreditsTotal:     30,
}

var announcements = []api.Announcement{
	{
		ID:       "1",
		Title:    "Paiement des frais de scolarité 2025",
		Date:     "22 Déc. 2024",
		Category: "Administration",
		Content:  "Le Trésor Money est désormais le seul canal officiel...",
		Priority: "high",
	},
	{
		ID:       "2",
		Title:    "Maintenance plateforme Licences 5",
		Date:     "24 Déc. 2024",
		Category: "Technique",
		Content:  "Une maintenance est prévue entre 02h et 04h du matin.",
		Priority: "medium",
	},
	{
		ID:       "3",
		Title:    "Cérémonie de remise de diplômes",
		Date:     "15 Jan. 2025",
		Category: "Événement",
		Content:  "La cérémonie aura lieu au siège du CAMES...",
		Priority: "low",
	},
}

var academicEvents = []api.CalendarEvent{
	{ID: "fixed-1", Title: "Fin du Semestre 1", Start: "2025-01-20T00:00:00", Type: "academic", Source: "UVCI"},
	{ID: "fixed-2", Title: "Début des Examens", Start: "2025-01-15T08:30:00", Type: "exam", Source: "UVCI"},
	{ID: "fixed-3", Title: "Congés de Noël", Start: "2024-12-23T00:00:00", Type: "holiday", Source: "UVCI"},
	{ID: "fixed-4", Title: "Session de Rattrapage", Start: "2025-02-10T09:00:00", Type: "exam", Source: "UVCI"},
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, academicStats)
}

func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, announcements)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	var events []api.CalendarEvent
	if user.UVCIUsername != "" {
		assignments, err := s.moodle.Assignments(r.Context(), user.UVCIUsername)
		if err != nil {
			// Moodle being down must not break the calendar
			s.logger.Warn("loading moodle assignments", "error", err, "user_id", user.ID)
		}
		now := s.now()
		events = lo.Map(assignments, func(a Assignment, i int) api.CalendarEvent {
			return api.CalendarEvent{
				ID:     fmt.Sprintf("moodle-%d", i),
				Title:  a.Title,
				Start:  assignmentStart(now, i).Format(calendarLayout),
				Type:   "assignment",
				Source: "Moodle",
			}
		})
	}

	events = append(events, academicEvents...)
	slices.SortStableFunc(events, func(a, b api.CalendarEvent) int {
		return strings.Compare(a.Start, b.Start)
	})
	writeJSON(w, http.StatusOK, events)
}
