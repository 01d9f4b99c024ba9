// ABOUTME: Moodle (UVCI platform) collaborator used by the settings and calendar endpoints
// ABOUTME: SimulatedMoodle stands in for the scraper of the production backend

package mockapi

import (
	"context"
	"time"
)

// Assignment is an upcoming Moodle deadline
type Assignment struct {
	Title  string
	Course string
}

// Moodle verifies UVCI accounts and lists their upcoming assignments
type Moodle interface {
	VerifyCredentials(ctx context.Context, username, password string) (bool, error)
	Assignments(ctx context.Context, username string) ([]Assignment, error)
}

// SimulatedMoodle accepts the accounts in Accounts, or when Accounts is nil
// any password of at least six characters.
type SimulatedMoodle struct {
	Accounts map[string]string
}

// VerifyCredentials checks username and password against the simulated accounts
func (m *SimulatedMoodle) VerifyCredentials(_ context.Context, username, password string) (bool, error) {
	if m.Accounts == nil {
		return username != "" && len(password) >= 6, nil
	}
	want, ok := m.Accounts[username]
	return ok && want == password, nil
}

// Assignments returns a fixed list of coursework
func (m *SimulatedMoodle) Assignments(context.Context, string) ([]Assignment, error) {
	return []Assignment{
		{Title: "Devoir : Algorithmique avancée", Course: "INF301"},
		{Title: "Quiz : Réseaux informatiques", Course: "INF305"},
		{Title: "Projet : Base de données", Course: "INF310"},
	}, nil
}

// assignmentStart spreads assignments over the next days at the current
// time of day, as the calendar of the production backend does.
func assignmentStart(now time.Time, i int) time.Time {
	return now.AddDate(0, 0, i%5)
}
