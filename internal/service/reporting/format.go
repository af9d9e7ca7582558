package reporting

import (
	"fmt"
	"strings"

	"github.com/mamadbah2/orchard/internal/service/movements"
)

// FormatClosureSummary renders a closure for a WhatsApp reply.
func FormatClosureSummary(r ClosureReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cierre %s (%s)\n", r.Name, r.Estado)
	fmt.Fprintf(&b, "Cerrada el %s. %d árboles en %d lotes.\n", r.ClosedAt.Format(dateLayout), r.TotalTrees, len(r.Lots))

	for _, p := range r.Products {
		fmt.Fprintf(&b, "- %s: plan %.2f, real %.2f %s (%+.2f%%)\n", p.ProductName, p.Planned, p.Actual, p.Unit, p.DeviationPct)
	}

	fmt.Fprintf(&b, "Jornales %.0f. Insumos $%.2f, mano de obra $%.2f, total $%.2f ($%.2f por árbol).\n",
		r.LaborDays, r.TotalInputCost, r.TotalLaborCost, r.TotalCost, r.CostPerTree)
	fmt.Fprintf(&b, "Desviación máxima %.2f%%.", r.MaxDeviationPct)

	switch {
	case r.ApprovedBy != "":
		fmt.Fprintf(&b, " Aprobada por %s.", r.ApprovedBy)
	case r.RequiresApproval:
		b.WriteString(" Requiere aprobación del gerente.")
	}
	if r.Observations != "" {
		fmt.Fprintf(&b, "\nObservaciones: %s", r.Observations)
	}
	return b.String()
}

// FormatProgress renders consumption against plan, followed by the active alerts.
func FormatProgress(appName string, p movements.Progress) string {
	if len(p.Products) == 0 {
		return fmt.Sprintf("Avance %s: sin productos planificados.", appName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Avance %s\n", appName)
	for _, u := range p.Products {
		fmt.Fprintf(&b, "- %s: %.2f de %.2f %s (%.2f%%)\n", u.ProductName, u.Consumed, u.Planned, u.Unit, u.PercentageUsed)
	}
	if len(p.Alerts) > 0 {
		b.WriteString(FormatAlerts(p.Alerts))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatAlerts renders alerts one per line with their severity.
func FormatAlerts(alerts []movements.Alert) string {
	var b strings.Builder
	for _, a := range alerts {
		fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(a.Level)), a.Message)
	}
	return b.String()
}
