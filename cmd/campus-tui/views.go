// ABOUTME: Account, history, dashboard, settings and document views of the terminal client
// ABOUTME: Each view prompts for what is missing, calls the API and prints the result

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/uvci/campus-assistant/internal/api"
)

// promptIfEmpty returns value or asks for it
func (a *app) promptIfEmpty(ctx context.Context, value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.prompt(ctx, label)
}

func (a *app) login(ctx context.Context, email string) error {
	email, err := a.promptIfEmpty(ctx, email, "Email : ")
	if err != nil {
		return err
	}
	password, err := a.readSecret(ctx, "Mot de passe : ")
	if err != nil {
		return err
	}

	if err := a.session.Login(ctx, api.Credentials{Email: email, Password: password}, ""); err != nil {
		return err
	}
	a.chat.Reset()
	a.printf("%s\n", okText("Bienvenue "+a.session.User().DisplayName()+" !"))
	return nil
}

func (a *app) register(ctx context.Context, email string) error {
	email, err := a.promptIfEmpty(ctx, email, "Email : ")
	if err != nil {
		return err
	}
	fullName, err := a.prompt(ctx, "Nom complet (facultatif) : ")
	if err != nil {
		return err
	}
	password, err := a.readSecret(ctx, "Mot de passe (8 caractères minimum) : ")
	if err != nil {
		return err
	}

	req := api.RegisterRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
		Role:     api.RoleStudent,
	}
	if err := a.session.Register(ctx, req); err != nil {
		return err
	}
	a.chat.Reset()
	a.printf("%s\n", okText("Compte créé. Bienvenue "+a.session.User().DisplayName()+" !"))
	return nil
}

func (a *app) showMe() {
	user := a.session.User()
	if user == nil {
		a.printf("Non connecté.\n")
		return
	}
	a.printf("%s <%s>\n", bold(user.DisplayName()), user.Email)
	a.printf("Rôle : %s\n", user.Role)
	if !user.CreatedAt.IsZero() {
		a.printf("Inscrit le %s\n", user.CreatedAt.Local().Format("02/01/2006"))
	}
}

func (a *app) forgotPassword(ctx context.Context, email string) error {
	email, err := a.promptIfEmpty(ctx, email, "Email : ")
	if err != nil {
		return err
	}
	msg, err := a.client.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}
	a.printf("%s\n", msg)
	return nil
}

func (a *app) resetPassword(ctx context.Context, token string) error {
	token, err := a.promptIfEmpty(ctx, token, "Jeton de réinitialisation : ")
	if err != nil {
		return err
	}
	password, err := a.readSecret(ctx, "Nouveau mot de passe : ")
	if err != nil {
		return err
	}
	confirm, err := a.readSecret(ctx, "Confirmez le mot de passe : ")
	if err != nil {
		return err
	}

	msg, err := a.client.ResetPassword(ctx, api.ResetPasswordRequest{
		Token:           token,
		NewPassword:     password,
		ConfirmPassword: confirm,
	})
	if err != nil {
		return err
	}
	a.printf("%s\n", okText(msg))
	return nil
}

func (a *app) showHistory(ctx context.Context) error {
	convs, err := a.client.Conversations(ctx)
	if err != nil {
		return err
	}
	a.conversations = convs

	if len(convs) == 0 {
		a.printf("Vous n'avez pas encore de conversations enregistrées.\n")
		return nil
	}

	a.printf("%d conversation(s) :\n", len(convs))
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for i, c := range convs {
		fmt.Fprintf(tw, "  %d.\t%s\t%s\t%d messages\n",
			i+1, c.Title, c.UpdatedAt.Local().Format("02/01 15:04"), c.MessageCount)
	}
	return tw.Flush()
}

func (a *app) deleteConversation(ctx context.Context, arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(a.conversations) {
		a.printf("Usage : /delete <n> avec n tiré de /history\n")
		return nil
	}
	target := a.conversations[n-1]

	if err := a.client.DeleteConversation(ctx, target.ID); err != nil {
		return err
	}
	// Drop it locally only once the server confirmed
	a.conversations = append(a.conversations[:n-1:n-1], a.conversations[n:]...)
	if a.chat.ConversationID() == target.ID {
		a.chat.Reset()
	}
	a.printf("Conversation « %s » supprimée.\n", target.Title)
	return nil
}

func (a *app) showDashboard(ctx context.Context) {
	snap, err := a.dashboard.Load(ctx)
	if err != nil {
		a.printErr(err)
		return
	}

	st := snap.Stats
	a.printf("%s\n", bold("Tableau de bord"))
	a.printf("  Progression  %s %d%%\n", progressBar(st.OverallProgress, 20), st.OverallProgress)
	a.printf("  Cours        %d terminés, %d en cours\n", st.CoursesCompleted, st.CoursesOngoing)
	a.printf("  Moyenne      %.1f/20\n", st.AverageGrade)
	a.printf("  Crédits      %d/%d\n", st.CreditsEarned, st.CreditsTotal)

	a.printf("\n%s\n", bold("Annonces"))
	for _, ann := range snap.ByPriority() {
		marker := dim("·")
		if ann.Priority == "high" {
			marker = errText("!")
		}
		a.printf("  %s %s %s\n", marker, ann.Title, dim("("+ann.Date+", "+ann.Category+")"))
	}

	a.printf("\n%s\n", bold("Prochaines échéances"))
	upcoming := snap.Upcoming(time.Now(), 5)
	if len(upcoming) == 0 {
		a.printf("  Aucune échéance à venir.\n")
	}
	for _, ev := range upcoming {
		a.printf("  %s  %s %s\n", formatStart(ev.Start), ev.Title, dim("["+ev.Type+"]"))
	}
}

func progressBar(percent, width int) string {
	percent = max(0, min(percent, 100))
	filled := percent * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// formatStart shortens an ISO local date-time for display
func formatStart(start string) string {
	t, err := time.Parse("2006-01-02T15:04:05", start)
	if err != nil {
		return start
	}
	return t.Format("02/01/2006 15:04")
}

func (a *app) settings(ctx context.Context, args string) error {
	action, rest, _ := strings.Cut(args, " ")
	switch action {
	case "":
		st, err := a.client.UVCIStatus(ctx)
		if err != nil {
			return err
		}
		if st.IsConnected {
			a.printf("Compte UVCI : %s (%s)\n", okText(st.Message), st.Username)
		} else {
			a.printf("Compte UVCI : %s\n", st.Message)
			a.printf("Liez votre compte avec /settings connect <identifiant>.\n")
		}
		return nil

	case "connect":
		username, err := a.promptIfEmpty(ctx, strings.TrimSpace(rest), "Identifiant UVCI : ")
		if err != nil {
			return err
		}
		password, err := a.readSecret(ctx, "Mot de passe UVCI : ")
		if err != nil {
			return err
		}
		st, err := a.client.ConnectUVCI(ctx, api.UVCICredentials{Username: username, Password: password})
		if err != nil {
			return err
		}
		a.printf("%s\n", okText(st.Message))
		return nil

	case "disconnect":
		msg, err := a.client.DisconnectUVCI(ctx)
		if err != nil {
			return err
		}
		a.printf("%s\n", msg)
		return nil

	default:
		a.printf("Usage : /settings [connect <identifiant> | disconnect]\n")
		return nil
	}
}

func (a *app) showDocuments(ctx context.Context) {
	docs, err := a.client.Documents(ctx)
	if err != nil {
		a.printErr(err)
		return
	}
	if len(docs) == 0 {
		a.printf("Aucun document indexé. Utilisez campus-admin docs upload <fichier.pdf>.\n")
		return
	}

	a.printf("%s\n", bold("Documents indexés"))
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, d := range docs {
		fmt.Fprintf(tw, "  %s\t%s\t%d segments\t%s\n",
			d.ID, d.Filename, d.ChunkCount, d.UploadedAt.Local().Format("02/01/2006"))
	}
	_ = tw.Flush()
}
