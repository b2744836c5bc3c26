package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

var esc = templ.EscapeString[string]

// layout wraps body with the shared document shell and footer.
func layout(d emailData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.5; color: #222;">
`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		footer := esc(d.ProductName)
		if d.SupportEmail != "" {
			footer += fmt.Sprintf(` · <a href="mailto:%s">%s</a>`, esc(d.SupportEmail), esc(d.SupportEmail))
		}
		_, err := fmt.Fprintf(w, `
<p style="color: #777; font-size: 12px;">%s</p>
</body>
</html>`, footer)
		return err
	})
}

func button(url, color, label string) string {
	return fmt.Sprintf(
		`<p><a href="%s" style="background: %s; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">%s</a></p>`,
		esc(string(templ.URL(url))), color, esc(label),
	)
}

func days(n int) string {
	if n == 1 {
		return "1 día"
	}
	return fmt.Sprintf("%d días", n)
}

var pages = map[string]func(d emailData) templ.Component{
	"trial_started": func(d emailData) templ.Component {
		return templ.Raw(fmt.Sprintf(`<h2>¡Bienvenido a %[1]s!</h2>
<p>Tu período de prueba de %[2]d días ha comenzado.</p>
<p>Durante este tiempo, tendrás acceso completo a todas las funciones del plan %[3]s.</p>
<p><strong>Tu prueba expira el:</strong> %[4]s</p>
%[5]s
<p>¡Esperamos que disfrutes usando %[1]s!</p>`,
			esc(d.ProductName), d.TrialDays, esc(d.PlanName), esc(d.TrialEndsAt),
			button(d.PricingURL, "#0066cc", "Ver Planes")))
	},
	"trial_expiring": func(d emailData) templ.Component {
		return templ.Raw(fmt.Sprintf(`<h2>Tu prueba expira pronto</h2>
<p>Te quedan <strong>%s</strong> de tu período de prueba.</p>
<p>No pierdas acceso a tu cuenta. Selecciona un plan ahora:</p>
%s`, days(d.DaysLeft), button(d.PricingURL, "#ff6600", "Actualizar Ahora")))
	},
	"trial_expired": func(d emailData) templ.Component {
		return templ.Raw(fmt.Sprintf(`<h2>Tu período de prueba ha finalizado</h2>
<p>Tu prueba de %d días ha expirado. Tienes %d días de acceso de solo lectura.</p>
<p>Para continuar usando %s, selecciona un plan:</p>
%s`, d.TrialDays, d.GraceDays, esc(d.ProductName), button(d.PricingURL, "#cc0000", "Suscribirse Ahora")))
	},
	"activated": func(d emailData) templ.Component {
		next := ""
		if d.PeriodEnd != "" {
			next = " Tu próximo cobro será el " + esc(d.PeriodEnd) + "."
		}
		return templ.Raw(fmt.Sprintf(`<h2>¡Tu suscripción está activa!</h2>
<p>Gracias por suscribirte al plan <strong>%s</strong>.</p>
<p>Tu pago ha sido procesado exitosamente.%s</p>
%s`, esc(d.PlanName), next, button(d.DashboardURL, "#00cc66", "Ir al Dashboard")))
	},
	"canceled": func(d emailData) templ.Component {
		access := "<p>Tu acceso ha finalizado.</p>"
		if d.PeriodEnd != "" {
			access = "<p>Conservarás el acceso hasta el " + esc(d.PeriodEnd) + ".</p>"
		}
		reason := ""
		if d.Reason != "" {
			reason = "\n<p><strong>Motivo:</strong> " + esc(d.Reason) + "</p>"
		}
		return templ.Raw(fmt.Sprintf(`<h2>Tu suscripción ha sido cancelada</h2>
%s%s
<p>Puedes reactivar tu plan en cualquier momento.</p>
%s`, access, reason, button(d.PricingURL, "#0066cc", "Ver Planes")))
	},
	"suspended": func(d emailData) templ.Component {
		return templ.Raw(fmt.Sprintf(`<h2>Tu cuenta ha sido suspendida</h2>
<p>El acceso a tu cuenta está bloqueado porque no hay un plan activo.</p>
<p>Tus datos se conservan. Suscríbete para recuperar el acceso:</p>
%s`, button(d.PricingURL, "#cc0000", "Suscribirse Ahora")))
	},
	"payment_failed": func(d emailData) templ.Component {
		reason := ""
		if d.Reason != "" {
			reason = "\n<p><strong>Detalle:</strong> " + esc(d.Reason) + "</p>"
		}
		return templ.Raw(fmt.Sprintf(`<h2>Problema con tu pago</h2>
<p>No pudimos procesar tu pago automático.</p>%s
<p>Por favor, actualiza tu método de pago para evitar la suspensión de tu cuenta.</p>
%s`, reason, button(d.BillingURL, "#cc0000", "Actualizar Método de Pago")))
	},
}
