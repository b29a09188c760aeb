package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"fablab-backend-go/internal/models"
	"fablab-backend-go/internal/services"
)

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "registration"}}<p>Bonjour {{.Name}},</p>
<p>Votre inscription à l'atelier <b>{{.Workshop}}</b> du {{.Date}} a bien été reçue.
Elle est en attente de confirmation par notre équipe.</p>
<p>À bientôt au Fablab.</p>{{end}}
{{define "contact"}}<p>Bonjour {{.Name}},</p>
<p>Nous avons bien reçu votre message « {{.Subject}} » et reviendrons vers vous rapidement.</p>{{end}}
{{define "project"}}<p>Bonjour {{.Name}},</p>
<p>Le statut de votre projet <b>{{.Title}}</b> est maintenant : <b>{{.Status}}</b>.</p>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}{{end}}
`))

func render(name string, data any) string {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return ""
	}
	return buf.String()
}

func UserRegistered(user models.User) Event {
	return Event{
		Type:       services.NotifyUserRegistered,
		Title:      "Nouvel utilisateur",
		Message:    fmt.Sprintf("%s (%s) vient de créer un compte.", user.FullName, user.Email),
		Link:       fmt.Sprintf("/admin/users/%d", user.ID),
		Resource:   "users",
		ResourceID: user.ID,
	}
}

// WorkshopRegistration also emails the registrant when mail is enabled.
func WorkshopRegistration(reg models.WorkshopRegistration, workshop models.Workshop) Event {
	return Event{
		Type:  services.NotifyWorkshopRegistration,
		Title: "Nouvelle inscription",
		Message: fmt.Sprintf("%s s'est inscrit à « %s » (%d/%d places).",
			reg.Name, workshop.Title, workshop.Registered, workshop.Capacity),
		Link:       fmt.Sprintf("/admin/workshops/%d/registrations", workshop.ID),
		Resource:   "workshops",
		ResourceID: workshop.ID,
		Email: &Email{
			To:      reg.Email,
			Subject: "Inscription à l'atelier " + workshop.Title,
			HTML: render("registration", map[string]string{
				"Name":     reg.Name,
				"Workshop": workshop.Title,
				"Date":     workshop.Date.Format("02/01/2006 15:04"),
			}),
		},
	}
}

func ContactMessage(msg models.ContactMessage) Event {
	subject := msg.Subject
	if subject == "" {
		subject = "(sans objet)"
	}
	return Event{
		Type:       services.NotifyContactMessage,
		Title:      "Nouveau message de contact",
		Message:    fmt.Sprintf("%s : %s", msg.Name, subject),
		Link:       fmt.Sprintf("/admin/contacts/%d", msg.ID),
		Resource:   "contacts",
		ResourceID: msg.ID,
		Email: &Email{
			To:      msg.Email,
			Subject: "Nous avons bien reçu votre message",
			HTML:    render("contact", map[string]string{"Name": msg.Name, "Subject": subject}),
		},
	}
}

func ProjectSubmitted(project models.ProjectSubmission) Event {
	return Event{
		Type:       services.NotifyProjectSubmission,
		Title:      "Nouveau projet soumis",
		Message:    fmt.Sprintf("%s a soumis « %s ».", project.Name, project.Title),
		Link:       fmt.Sprintf("/admin/projects/%d", project.ID),
		Resource:   "projects",
		ResourceID: project.ID,
	}
}

func ProjectStatusChanged(project models.ProjectSubmission) Event {
	return Event{
		Type:       services.NotifyProjectStatus,
		Title:      "Statut de projet mis à jour",
		Message:    fmt.Sprintf("« %s » est passé à %s.", project.Title, project.Status),
		Link:       fmt.Sprintf("/admin/projects/%d", project.ID),
		Resource:   "projects",
		ResourceID: project.ID,
		Email: &Email{
			To:      project.Email,
			Subject: "Mise à jour de votre projet " + project.Title,
			HTML: render("project", map[string]string{
				"Name":   project.Name,
				"Title":  project.Title,
				"Status": project.Status,
				"Notes":  project.AdminNotes,
			}),
		},
	}
}

func InnovationSubmitted(item models.Innovation) Event {
	return Event{
		Type:       services.NotifyInnovationSubmitted,
		Title:      "Nouvelle innovation soumise",
		Message:    fmt.Sprintf("%s a proposé « %s ».", item.CreatorName, item.Title),
		Link:       fmt.Sprintf("/admin/innovations/%d", item.ID),
		Resource:   "innovations",
		ResourceID: item.ID,
	}
}

func InnovationStatusChanged(item models.Innovation) Event {
	return Event{
		Type:       services.NotifyInnovationStatus,
		Title:      "Innovation modérée",
		Message:    fmt.Sprintf("« %s » est maintenant %s.", item.Title, item.Status),
		Link:       fmt.Sprintf("/admin/innovations/%d", item.ID),
		Resource:   "innovations",
		ResourceID: item.ID,
	}
}
